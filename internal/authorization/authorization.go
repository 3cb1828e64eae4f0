package authorization

import (
	"context"
	"errors"
)

const (
	ObjectPatient     = "patient"
	ObjectEmployee    = "employee"
	ObjectAppointment = "appointment"
	ObjectTreatment   = "treatment"
	ObjectPayment     = "payment"
	ObjectDashboard   = "dashboard"
	ObjectAuditLog    = "audit_log"
	ObjectUser        = "user"
)

const (
	ActionView   = "view"
	ActionManage = "manage"
)

// Service decides whether a staff member may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, userID string, role string, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
