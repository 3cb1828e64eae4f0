package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dentaldesk/internal/providers/pdf"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type createTreatmentRequest struct {
	PatientID   string                       `json:"patient_id"`
	EmployeeID  string                       `json:"employee_id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Items       []treatmentdomain.BudgetItem `json:"items"`
}

type updateBudgetRequest struct {
	Name        *string                      `json:"name"`
	Description *string                      `json:"description"`
	Items       []treatmentdomain.BudgetItem `json:"items"`
}

type listTreatmentsQuery struct {
	pagination.Pagination
	PatientID string `form:"patient_id"`
	Status    string `form:"status"`
	Settled   string `form:"settled"`
}

func (s *Server) CreateTreatment(c *gin.Context) {
	var req createTreatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	setPatientLogField(c, req.PatientID)
	resp, err := s.treatmentSvc.Create(c.Request.Context(), treatmentdomain.CreateTreatmentRequest{
		PatientID:   req.PatientID,
		EmployeeID:  req.EmployeeID,
		Name:        req.Name,
		Description: req.Description,
		Items:       req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "treatment.create", "treatment", resp.ID.String(), map[string]any{
		"patient_id":   resp.PatientID.String(),
		"total_budget": resp.TotalBudget.StringFixed(2),
		"items":        len(resp.Items),
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTreatmentByID(c *gin.Context) {
	resp, err := s.treatmentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTreatments(c *gin.Context) {
	var query listTreatmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settled, err := parseOptionalBool(query.Settled)
	if err != nil {
		AbortWithError(c, newValidationError("settled", "invalid_settled", "invalid settled"))
		return
	}

	setPatientLogField(c, query.PatientID)
	resp, err := s.treatmentSvc.List(c.Request.Context(), treatmentdomain.ListTreatmentRequest{
		Pagination: query.Pagination,
		PatientID:  strings.TrimSpace(query.PatientID),
		Status:     strings.TrimSpace(query.Status),
		Settled:    settled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Treatments, "page_info": resp.PageInfo})
}

// ListPendingTreatments feeds the payment form with accounts that still owe.
func (s *Server) ListPendingTreatments(c *gin.Context) {
	patientID := strings.TrimSpace(c.Query("patient_id"))
	setPatientLogField(c, patientID)

	resp, err := s.treatmentSvc.ListPending(c.Request.Context(), patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTreatmentBudget(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.treatmentSvc.UpdateBudget(c.Request.Context(), id, treatmentdomain.UpdateBudgetRequest{
		Name:        req.Name,
		Description: req.Description,
		Items:       req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	s.recordAudit(c, "treatment.budget_update", "treatment", id, map[string]any{
		"total_budget":   resp.TotalBudget.StringFixed(2),
		"amount_pending": resp.AmountPending.StringFixed(2),
		"items":          len(resp.Items),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) FinishTreatment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.treatmentSvc.Finish(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	s.recordAudit(c, "treatment.finish", "treatment", id, map[string]any{
		"amount_pending": resp.AmountPending.StringFixed(2),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadBudgetPDF(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := s.treatmentSvc.GetByID(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	setPatientLogField(c, t.PatientID.String())

	patient, err := s.patientSvc.GetByID(ctx, t.PatientID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issued := s.clock.Now().In(s.scheduling.Get().Location())
	doc, err := s.pdf.GenerateBudget(ctx, pdf.NewBudgetData(t, patient.FullName(), issued))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := pdf.FileName("presupuesto", patient.FullName(), t.ID.String())
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": `attachment; filename="` + filename + `"`,
	})
}
