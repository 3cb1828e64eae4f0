package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type createPatientRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	DocumentID   string `json:"document_id"`
	BirthDate    string `json:"birth_date"`
	Gender       string `json:"gender"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	Allergies    string `json:"allergies"`
	MedicalNotes string `json:"medical_notes"`
}

type updatePatientRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	DocumentID   *string `json:"document_id"`
	BirthDate    *string `json:"birth_date"`
	Gender       *string `json:"gender"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Address      *string `json:"address"`
	Allergies    *string `json:"allergies"`
	MedicalNotes *string `json:"medical_notes"`
}

type listPatientsQuery struct {
	pagination.Pagination
	Query string `form:"q"`
}

func (s *Server) CreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		AbortWithError(c, patientdomain.ErrInvalidBirthDate)
		return
	}

	resp, err := s.patientSvc.Create(c.Request.Context(), patientdomain.CreatePatientRequest{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DocumentID:   req.DocumentID,
		BirthDate:    birthDate,
		Gender:       req.Gender,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		Allergies:    req.Allergies,
		MedicalNotes: req.MedicalNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	patientID := resp.ID.String()
	setPatientLogField(c, patientID)
	s.recordAudit(c, "patient.create", "patient", patientID, map[string]any{
		"document_id": req.DocumentID,
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPatientByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	setPatientLogField(c, id)

	resp, err := s.patientSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPatients(c *gin.Context) {
	var query listPatientsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.patientSvc.List(c.Request.Context(), patientdomain.ListPatientRequest{
		Pagination: query.Pagination,
		Query:      strings.TrimSpace(query.Query),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Patients, "page_info": resp.PageInfo})
}

func (s *Server) UpdatePatient(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	setPatientLogField(c, id)

	var req updatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var birthDate *time.Time
	if req.BirthDate != nil {
		parsed, err := parseDate(*req.BirthDate)
		if err != nil || parsed == nil {
			AbortWithError(c, patientdomain.ErrInvalidBirthDate)
			return
		}
		birthDate = parsed
	}

	resp, err := s.patientSvc.Update(c.Request.Context(), id, patientdomain.UpdatePatientRequest{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DocumentID:   req.DocumentID,
		BirthDate:    birthDate,
		Gender:       req.Gender,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		Allergies:    req.Allergies,
		MedicalNotes: req.MedicalNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "patient.update", "patient", id, map[string]any{
		"fields": changedFields(map[string]bool{
			"first_name":    req.FirstName != nil,
			"last_name":     req.LastName != nil,
			"document_id":   req.DocumentID != nil,
			"birth_date":    req.BirthDate != nil,
			"gender":        req.Gender != nil,
			"phone":         req.Phone != nil,
			"email":         req.Email != nil,
			"address":       req.Address != nil,
			"allergies":     req.Allergies != nil,
			"medical_notes": req.MedicalNotes != nil,
		}),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePatient(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	setPatientLogField(c, id)

	if err := s.patientSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "patient.delete", "patient", id, nil)
	c.Status(http.StatusNoContent)
}
