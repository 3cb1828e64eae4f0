package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
)

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	EmployeeID  string `json:"employee_id"`
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
}

func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.authsvc.ListUsers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employeeID, err := parseOptionalSnowflakeID(req.EmployeeID)
	if err != nil {
		AbortWithError(c, newValidationError("employee_id", "invalid_employee", "invalid employee_id"))
		return
	}
	if employeeID != nil {
		if _, err := s.employeeSvc.GetByID(c.Request.Context(), employeeID.String()); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	user, err := s.authsvc.CreateUser(c.Request.Context(), authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		EmployeeID:  employeeID,
		IsDefault:   true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "user.create", "user", user.ID.String(), map[string]any{
		"email": user.Email,
		"role":  string(user.Role),
	})

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

func (s *Server) UpdateUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.UpdateUser(c.Request.Context(), id, authdomain.UpdateUserRequest{
		DisplayName: req.DisplayName,
		Role:        req.Role,
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	metadata := map[string]any{"role": string(user.Role), "is_active": user.IsActive}
	s.recordAudit(c, "user.update", "user", id, metadata)

	c.JSON(http.StatusOK, gin.H{"data": user})
}
