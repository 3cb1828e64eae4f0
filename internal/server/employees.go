package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type createEmployeeRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Role          string `json:"role"`
	Specialty     string `json:"specialty"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number"`
	HiredAt       string `json:"hired_at"`
}

type updateEmployeeRequest struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Role          *string `json:"role"`
	Specialty     *string `json:"specialty"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	LicenseNumber *string `json:"license_number"`
	HiredAt       *string `json:"hired_at"`
	Active        *bool   `json:"active"`
}

type listEmployeesQuery struct {
	pagination.Pagination
	Query  string `form:"q"`
	Role   string `form:"role"`
	Active string `form:"active"`
}

func (s *Server) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	hiredAt, err := parseDate(req.HiredAt)
	if err != nil {
		AbortWithError(c, newValidationError("hired_at", "invalid_hired_at", "invalid hired_at"))
		return
	}

	resp, err := s.employeeSvc.Create(c.Request.Context(), employeedomain.CreateEmployeeRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		Specialty:     req.Specialty,
		Phone:         req.Phone,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		HiredAt:       hiredAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "employee.create", "employee", resp.ID.String(), map[string]any{
		"role": string(resp.Role),
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetEmployeeByID(c *gin.Context) {
	resp, err := s.employeeSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEmployees(c *gin.Context) {
	var query listEmployeesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.employeeSvc.List(c.Request.Context(), employeedomain.ListEmployeeRequest{
		Pagination: query.Pagination,
		Query:      strings.TrimSpace(query.Query),
		Role:       strings.TrimSpace(query.Role),
		Active:     active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Employees, "page_info": resp.PageInfo})
}

func (s *Server) UpdateEmployee(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var hiredAt *time.Time
	if req.HiredAt != nil {
		parsed, err := parseDate(*req.HiredAt)
		if err != nil || parsed == nil {
			AbortWithError(c, newValidationError("hired_at", "invalid_hired_at", "invalid hired_at"))
			return
		}
		hiredAt = parsed
	}

	resp, err := s.employeeSvc.Update(c.Request.Context(), id, employeedomain.UpdateEmployeeRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		Specialty:     req.Specialty,
		Phone:         req.Phone,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		HiredAt:       hiredAt,
		Active:        req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "employee.update", "employee", id, map[string]any{
		"fields": changedFields(map[string]bool{
			"first_name":     req.FirstName != nil,
			"last_name":      req.LastName != nil,
			"role":           req.Role != nil,
			"specialty":      req.Specialty != nil,
			"phone":          req.Phone != nil,
			"email":          req.Email != nil,
			"license_number": req.LicenseNumber != nil,
			"hired_at":       req.HiredAt != nil,
			"active":         req.Active != nil,
		}),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateEmployee(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.employeeSvc.Deactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "employee.deactivate", "employee", id, nil)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
