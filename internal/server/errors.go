package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	auditdomain "github.com/smallbiznis/dentaldesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/authorization"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationErrs are rejected input. The code doubles as the error text.
var validationErrs = []error{
	ErrInvalidRequest,
	authdomain.ErrInvalidEmail,
	authdomain.ErrWeakPassword,
	authdomain.ErrInvalidRole,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	patientdomain.ErrInvalidFirstName,
	patientdomain.ErrInvalidLastName,
	patientdomain.ErrInvalidEmail,
	patientdomain.ErrInvalidBirthDate,
	patientdomain.ErrInvalidID,
	employeedomain.ErrInvalidFirstName,
	employeedomain.ErrInvalidLastName,
	employeedomain.ErrInvalidRole,
	employeedomain.ErrInvalidEmail,
	employeedomain.ErrInvalidID,
	appointmentdomain.ErrInvalidPatient,
	appointmentdomain.ErrInvalidEmployee,
	appointmentdomain.ErrInvalidTreatment,
	appointmentdomain.ErrInvalidScheduledAt,
	appointmentdomain.ErrInvalidDuration,
	appointmentdomain.ErrInvalidPrice,
	appointmentdomain.ErrInvalidStatus,
	appointmentdomain.ErrInvalidID,
	treatmentdomain.ErrInvalidPatient,
	treatmentdomain.ErrInvalidEmployee,
	treatmentdomain.ErrInvalidName,
	treatmentdomain.ErrInvalidStatus,
	treatmentdomain.ErrEmptyBudget,
	treatmentdomain.ErrInvalidItemDescription,
	treatmentdomain.ErrInvalidItemQuantity,
	treatmentdomain.ErrInvalidItemUnitPrice,
	treatmentdomain.ErrInvalidID,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrAmountExceedsPending,
	paymentdomain.ErrAmountExceedsPrice,
	paymentdomain.ErrInvalidMethod,
	paymentdomain.ErrInvalidTargetKind,
	paymentdomain.ErrInvalidTarget,
	paymentdomain.ErrInvalidPatient,
	paymentdomain.ErrInvalidPaidAt,
	paymentdomain.ErrInvalidID,
}

// conflictErrs are valid requests the current state cannot accept.
var conflictErrs = []error{
	ErrConflict,
	authdomain.ErrUserExists,
	authdomain.ErrLastAdmin,
	patientdomain.ErrDuplicateDocument,
	patientdomain.ErrPatientInUse,
	appointmentdomain.ErrSlotUnavailable,
	appointmentdomain.ErrAppointmentTerminal,
	appointmentdomain.ErrAppointmentCancelled,
	appointmentdomain.ErrAlreadyPaid,
	treatmentdomain.ErrBudgetBelowPaid,
	treatmentdomain.ErrTreatmentFinished,
	paymentdomain.ErrAccountSettled,
}

var notFoundErrs = []error{
	ErrNotFound,
	authdomain.ErrUserNotFound,
	patientdomain.ErrNotFound,
	employeedomain.ErrNotFound,
	appointmentdomain.ErrNotFound,
	treatmentdomain.ErrNotFound,
	paymentdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

var unauthorizedErrs = []error{
	ErrUnauthorized,
	authdomain.ErrInvalidCredentials,
	authdomain.ErrInvalidSession,
	authdomain.ErrSessionNotFound,
	authdomain.ErrSessionExpired,
	authdomain.ErrSessionRevoked,
	authorization.ErrInvalidActor,
}

var forbiddenErrs = []error{
	ErrForbidden,
	authorization.ErrForbidden,
	authdomain.ErrUserInactive,
}

var errorMessages = map[string]string{
	"invalid_request":          "invalid request",
	"forbidden":                "no tiene permisos para esta acción",
	"invalid_credentials":      "correo o contraseña incorrectos",
	"weak_password":            "la contraseña debe tener al menos 8 caracteres",
	"empty_budget":             "el presupuesto debe tener al menos un ítem",
	"amount_exceeds_pending":   "el monto supera el saldo pendiente",
	"amount_exceeds_price":     "el monto supera el precio de la cita",
	"slot_unavailable":         "el horario ya está ocupado",
	"duplicate_document_id":    "ya existe un paciente con ese documento",
	"patient_in_use":           "el paciente tiene citas, tratamientos o pagos registrados",
	"appointment_terminal":     "la cita ya fue completada o cancelada",
	"appointment_cancelled":    "la cita está cancelada",
	"appointment_already_paid": "la cita ya está pagada",
	"account_settled":          "el tratamiento no tiene saldo pendiente",
	"budget_below_paid":        "el presupuesto no puede ser menor a lo ya pagado",
	"treatment_finished":       "el tratamiento está finalizado",
	"last_admin":               "debe quedar al menos un administrador activo",
	"user_exists":              "ya existe un usuario con ese correo",
	"user_inactive":            "el usuario está desactivado",
	"rate_limited":             "demasiados intentos, intente más tarde",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var itemErr *treatmentdomain.ItemError
	if errors.As(err, &itemErr) {
		code := itemErr.Err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: itemErr.Path(), Code: code, Message: errorMessage(code)},
			},
		}
	}

	if matched := matchAny(err, validationErrs); matched != nil {
		code := matched.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: validationErrorField(code), Code: code, Message: errorMessage(code)},
			},
		}
	}

	switch {
	case matchAny(err, unauthorizedErrs) != nil:
		code := matchAny(err, unauthorizedErrs).Error()
		message := "unauthorized"
		if code == authdomain.ErrInvalidCredentials.Error() {
			message = errorMessage(code)
		}
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: message,
		}
	case matchAny(err, forbiddenErrs) != nil:
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: errorMessage(matchAny(err, forbiddenErrs).Error()),
		}
	case matchAny(err, notFoundErrs) != nil:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case matchAny(err, conflictErrs) != nil:
		code := matchAny(err, conflictErrs).Error()
		return http.StatusConflict, errorPayload{
			Type:    code,
			Message: errorMessage(code),
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: errorMessage("rate_limited"),
		}
	case errors.Is(err, ErrServiceUnavailable), db.IsLockContentionErr(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the same taxonomy the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "empty_budget":
		return "items"
	case "amount_exceeds_pending", "amount_exceeds_price":
		return "amount"
	case "weak_password":
		return "password"
	case "invalid_time_range":
		return "end_at"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func errorMessage(code string) string {
	if message, ok := errorMessages[code]; ok {
		return message
	}
	return "invalid value"
}
