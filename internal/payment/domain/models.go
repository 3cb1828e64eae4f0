package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash     Method = "efectivo"
	MethodCard     Method = "tarjeta"
	MethodTransfer Method = "transferencia"
	MethodOther    Method = "otro"
)

var methodAliases = map[string]Method{
	"efectivo":      MethodCash,
	"cash":          MethodCash,
	"tarjeta":       MethodCard,
	"card":          MethodCard,
	"credit_card":   MethodCard,
	"debit_card":    MethodCard,
	"transferencia": MethodTransfer,
	"transfer":      MethodTransfer,
	"bank_transfer": MethodTransfer,
	"otro":          MethodOther,
	"other":         MethodOther,
}

func ParseMethod(raw string) (Method, bool) {
	m, ok := methodAliases[strings.ToLower(strings.TrimSpace(raw))]
	return m, ok
}

// TargetKind tells what a payment settles.
type TargetKind string

const (
	TargetAppointment TargetKind = "cita"
	TargetTreatment   TargetKind = "tratamiento"
)

func ParseTargetKind(raw string) (TargetKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cita", "appointment", "visit":
		return TargetAppointment, true
	case "tratamiento", "treatment":
		return TargetTreatment, true
	default:
		return "", false
	}
}

// Payment is an immutable record of money received.
type Payment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	ReceiptNumber string          `gorm:"column:receipt_number;not null;uniqueIndex" json:"receipt_number"`
	PatientID     snowflake.ID    `gorm:"not null;index" json:"patient_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method        Method          `gorm:"type:text;not null" json:"method"`
	TargetKind    TargetKind      `gorm:"type:text;not null;index:idx_payments_target,priority:1" json:"target_kind"`
	TargetID      snowflake.ID    `gorm:"not null;index:idx_payments_target,priority:2" json:"target_id"`
	Note          string          `json:"note,omitempty"`
	RecordedBy    string          `gorm:"column:recorded_by" json:"recorded_by,omitempty"`
	PaidAt        time.Time       `gorm:"not null;index" json:"paid_at"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
