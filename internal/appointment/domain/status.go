package domain

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
)

// Status is the canonical appointment status. Values read from or written to
// the database always pass through NormalizeStatus.
type Status string

const (
	StatusConfirmed   Status = "confirmada"
	StatusPending     Status = "pendiente"
	StatusCompleted   Status = "completada"
	StatusCancelled   Status = "cancelada"
	StatusRescheduled Status = "reprogramada"
)

var AllStatuses = []Status{
	StatusConfirmed,
	StatusPending,
	StatusCompleted,
	StatusCancelled,
	StatusRescheduled,
}

var statusAliases = map[string]Status{
	"confirmada":   StatusConfirmed,
	"confirmado":   StatusConfirmed,
	"confirmed":    StatusConfirmed,
	"pendiente":    StatusPending,
	"pending":      StatusPending,
	"completada":   StatusCompleted,
	"completado":   StatusCompleted,
	"completed":    StatusCompleted,
	"cancelada":    StatusCancelled,
	"cancelado":    StatusCancelled,
	"cancelled":    StatusCancelled,
	"canceled":     StatusCancelled,
	"reprogramada": StatusRescheduled,
	"reprogramado": StatusRescheduled,
	"rescheduled":  StatusRescheduled,
}

// ParseStatus maps a raw value onto the canonical set. ok is false for
// values outside every known vocabulary.
func ParseStatus(raw string) (Status, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// NormalizeStatus never fails: unknown or empty input becomes pendiente.
func NormalizeStatus(raw string) Status {
	if status, ok := ParseStatus(raw); ok {
		return status
	}
	return StatusPending
}

// StoredValues lists every lowercase spelling that normalizes to one of
// statuses, sorted.
func StoredValues(statuses ...Status) []string {
	values := make([]string, 0, len(statusAliases))
	for alias, status := range statusAliases {
		if slices.Contains(statuses, status) {
			values = append(values, alias)
		}
	}
	slices.Sort(values)
	return values
}

// ExcludeStatuses returns the canonical statuses not in statuses.
func ExcludeStatuses(statuses ...Status) []Status {
	rest := make([]Status, 0, len(AllStatuses))
	for _, status := range AllStatuses {
		if !slices.Contains(statuses, status) {
			rest = append(rest, status)
		}
	}
	return rest
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

func (s *Status) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = StatusPending
	case string:
		*s = NormalizeStatus(v)
	case []byte:
		*s = NormalizeStatus(string(v))
	default:
		return fmt.Errorf("appointment status: unsupported type %T", value)
	}
	return nil
}

func (s Status) Value() (driver.Value, error) {
	return string(NormalizeStatus(string(s))), nil
}

// Transition validates moving from one status to another. changed is false
// when the move is a no-op.
func Transition(from, to Status) (changed bool, err error) {
	from = NormalizeStatus(string(from))
	if from.IsTerminal() {
		return false, ErrAppointmentTerminal
	}
	if _, ok := ParseStatus(string(to)); !ok {
		return false, ErrInvalidStatus
	}
	if from == to && to != StatusRescheduled {
		return false, nil
	}
	return true, nil
}
