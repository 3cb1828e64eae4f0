package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

const slotLayout = "15:04"

type createAppointmentRequest struct {
	PatientID       string           `json:"patient_id"`
	EmployeeID      string           `json:"employee_id"`
	TreatmentID     string           `json:"treatment_id"`
	ScheduledAt     string           `json:"scheduled_at"`
	Date            string           `json:"date"`
	Time            string           `json:"time"`
	DurationMinutes int              `json:"duration_minutes"`
	Reason          string           `json:"reason"`
	Notes           string           `json:"notes"`
	Status          string           `json:"status"`
	Price           *decimal.Decimal `json:"price"`
}

type updateAppointmentRequest struct {
	EmployeeID      *string          `json:"employee_id"`
	TreatmentID     *string          `json:"treatment_id"`
	DurationMinutes *int             `json:"duration_minutes"`
	Reason          *string          `json:"reason"`
	Notes           *string          `json:"notes"`
	Price           *decimal.Decimal `json:"price"`
}

type updateAppointmentStatusRequest struct {
	Status       string `json:"status"`
	ScheduledAt  string `json:"scheduled_at"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	CancelReason string `json:"cancel_reason"`
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type rescheduleAppointmentRequest struct {
	ScheduledAt string `json:"scheduled_at"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type listAppointmentsQuery struct {
	pagination.Pagination
	PatientID  string `form:"patient_id"`
	EmployeeID string `form:"employee_id"`
	Status     string `form:"status"`
	From       string `form:"from"`
	To         string `form:"to"`
}

type availableSlotsQuery struct {
	Date       string `form:"date"`
	EmployeeID string `form:"employee_id"`
}

func (s *Server) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scheduledAt, err := s.parseSchedule(req.ScheduledAt, req.Date, req.Time)
	if err != nil || scheduledAt == nil {
		AbortWithError(c, appointmentdomain.ErrInvalidScheduledAt)
		return
	}

	setPatientLogField(c, req.PatientID)
	resp, err := s.appointmentSvc.Create(c.Request.Context(), appointmentdomain.CreateAppointmentRequest{
		PatientID:       req.PatientID,
		EmployeeID:      req.EmployeeID,
		TreatmentID:     req.TreatmentID,
		ScheduledAt:     *scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          req.Status,
		Price:           req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "appointment.create", "appointment", resp.ID.String(), map[string]any{
		"patient_id":   resp.PatientID.String(),
		"scheduled_at": resp.ScheduledAt,
		"status":       resp.Status.String(),
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAppointmentByID(c *gin.Context) {
	resp, err := s.appointmentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAppointments(c *gin.Context) {
	var query listAppointmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := s.parseLocalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := s.parseLocalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	setPatientLogField(c, query.PatientID)
	resp, err := s.appointmentSvc.List(c.Request.Context(), appointmentdomain.ListAppointmentRequest{
		Pagination: query.Pagination,
		PatientID:  strings.TrimSpace(query.PatientID),
		EmployeeID: strings.TrimSpace(query.EmployeeID),
		Status:     strings.TrimSpace(query.Status),
		From:       from,
		To:         to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Appointments, "page_info": resp.PageInfo})
}

func (s *Server) UpdateAppointment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.appointmentSvc.Update(c.Request.Context(), id, appointmentdomain.UpdateAppointmentRequest{
		EmployeeID:      req.EmployeeID,
		TreatmentID:     req.TreatmentID,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Price:           req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	s.recordAudit(c, "appointment.update", "appointment", id, map[string]any{
		"fields": changedFields(map[string]bool{
			"employee_id":      req.EmployeeID != nil,
			"treatment_id":     req.TreatmentID != nil,
			"duration_minutes": req.DurationMinutes != nil,
			"reason":           req.Reason != nil,
			"notes":            req.Notes != nil,
			"price":            req.Price != nil,
		}),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAppointmentStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scheduledAt, err := s.parseSchedule(req.ScheduledAt, req.Date, req.Time)
	if err != nil {
		AbortWithError(c, appointmentdomain.ErrInvalidScheduledAt)
		return
	}

	resp, err := s.appointmentSvc.UpdateStatus(c.Request.Context(), id, appointmentdomain.UpdateStatusRequest{
		Status:       req.Status,
		ScheduledAt:  scheduledAt,
		CancelReason: req.CancelReason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditStatusChange(c, resp)
	c.JSON(http.StatusOK, gin.H{"data": resp.Appointment})
}

func (s *Server) ConfirmAppointment(c *gin.Context) {
	s.transitionAppointment(c, s.appointmentSvc.Confirm)
}

func (s *Server) CompleteAppointment(c *gin.Context) {
	s.transitionAppointment(c, s.appointmentSvc.Complete)
}

func (s *Server) CancelAppointment(c *gin.Context) {
	var req cancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	reason := strings.TrimSpace(req.Reason)
	s.transitionAppointment(c, func(ctx context.Context, id string) (appointmentdomain.StatusChange, error) {
		return s.appointmentSvc.Cancel(ctx, id, reason)
	})
}

func (s *Server) RescheduleAppointment(c *gin.Context) {
	var req rescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scheduledAt, err := s.parseSchedule(req.ScheduledAt, req.Date, req.Time)
	if err != nil || scheduledAt == nil {
		AbortWithError(c, appointmentdomain.ErrInvalidScheduledAt)
		return
	}

	s.transitionAppointment(c, func(ctx context.Context, id string) (appointmentdomain.StatusChange, error) {
		return s.appointmentSvc.Reschedule(ctx, id, *scheduledAt)
	})
}

type markAppointmentPaidRequest struct {
	PaidAt string `json:"paid_at"`
}

// MarkAppointmentPaid settles a single visit that was paid outside the
// payments register.
func (s *Server) MarkAppointmentPaid(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req markAppointmentPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	paidAt, err := s.parseLocalTime(req.PaidAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("paid_at", "invalid_paid_at", "invalid paid_at"))
		return
	}

	resp, err := s.appointmentSvc.MarkPaid(c.Request.Context(), id, paidAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	s.recordAudit(c, "appointment.mark_paid", "appointment", resp.ID.String(), map[string]any{
		"paid_at": resp.PaidAt,
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSlots(c *gin.Context) {
	cfg := s.scheduling.Get()
	c.JSON(http.StatusOK, gin.H{
		"data": s.appointmentSvc.Slots(c.Request.Context()),
		"config": gin.H{
			"start_hour":  cfg.StartHour,
			"end_hour":    cfg.EndHour,
			"granularity": cfg.Granularity,
			"timezone":    cfg.Timezone,
		},
	})
}

func (s *Server) ListAvailableSlots(c *gin.Context) {
	var query availableSlotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var date time.Time
	if strings.TrimSpace(query.Date) != "" {
		parsed, err := time.ParseInLocation(dateOnlyLayout, strings.TrimSpace(query.Date), s.scheduling.Get().Location())
		if err != nil {
			AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
			return
		}
		date = parsed
	}

	resp, err := s.appointmentSvc.AvailableSlots(c.Request.Context(), appointmentdomain.AvailableSlotsRequest{
		Date:       date,
		EmployeeID: strings.TrimSpace(query.EmployeeID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) transitionAppointment(c *gin.Context, apply func(ctx context.Context, id string) (appointmentdomain.StatusChange, error)) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := apply(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditStatusChange(c, resp)
	c.JSON(http.StatusOK, gin.H{"data": resp.Appointment})
}

// auditStatusChange records only transitions that changed the stored status.
func (s *Server) auditStatusChange(c *gin.Context, change appointmentdomain.StatusChange) {
	appt := change.Appointment
	setPatientLogField(c, appt.PatientID.String())
	if !change.Changed {
		return
	}
	metadata := map[string]any{
		"from":         change.From.String(),
		"status":       appt.Status.String(),
		"scheduled_at": appt.ScheduledAt,
	}
	if appt.CancelReason != "" {
		metadata["cancel_reason"] = appt.CancelReason
	}
	s.recordAudit(c, "appointment.status_change", "appointment", appt.ID.String(), metadata)
}

// parseSchedule reads either an RFC3339 timestamp or a clinic-local date
// plus slot ("2024-05-03" and "09:30"). Nothing given yields nil.
func (s *Server) parseSchedule(scheduledAt, date, slot string) (*time.Time, error) {
	if value := strings.TrimSpace(scheduledAt); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	}

	date, slot = strings.TrimSpace(date), strings.TrimSpace(slot)
	if date == "" && slot == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateOnlyLayout+" "+slotLayout, date+" "+slot, s.scheduling.Get().Location())
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLocalTime is parseOptionalTime with calendar dates read in the
// clinic's timezone.
func (s *Server) parseLocalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	day, err := time.ParseInLocation(dateOnlyLayout, trimmed, s.scheduling.Get().Location())
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
