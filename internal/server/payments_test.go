package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/internal/providers/pdf"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePDFBody = "%PDF-1.4 test"

type fakePDF struct {
	budget  *pdf.BudgetData
	receipt *pdf.ReceiptData
}

func (f *fakePDF) GenerateBudget(ctx context.Context, data pdf.BudgetData) (io.Reader, error) {
	f.budget = &data
	return strings.NewReader(fakePDFBody), nil
}

func (f *fakePDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) (io.Reader, error) {
	f.receipt = &data
	return strings.NewReader(fakePDFBody), nil
}

type fakePaymentService struct {
	recordErr  error
	lastRecord paymentdomain.RecordPaymentRequest
}

func samplePayment() paymentdomain.Payment {
	return paymentdomain.Payment{
		ID:            snowflake.ID(700),
		ReceiptNumber: "R-0001",
		PatientID:     snowflake.ID(500),
		Amount:        decimal.RequireFromString("150.50"),
		Method:        paymentdomain.MethodCash,
		TargetKind:    paymentdomain.TargetTreatment,
		TargetID:      snowflake.ID(800),
		PaidAt:        time.Date(2024, 7, 15, 15, 0, 0, 0, time.UTC),
	}
}

func (f *fakePaymentService) Record(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResponse, error) {
	f.lastRecord = req
	if f.recordErr != nil {
		return paymentdomain.RecordPaymentResponse{}, f.recordErr
	}
	payment := samplePayment()
	payment.Amount = req.Amount
	account := treatmentdomain.Account{
		TotalBudget:   decimal.NewFromInt(500),
		AmountPaid:    req.Amount,
		AmountPending: decimal.NewFromInt(500).Sub(req.Amount),
	}
	return paymentdomain.RecordPaymentResponse{Payment: payment, Account: &account}, nil
}

func (f *fakePaymentService) GetByID(ctx context.Context, id string) (paymentdomain.Payment, error) {
	if id != "700" {
		return paymentdomain.Payment{}, paymentdomain.ErrNotFound
	}
	return samplePayment(), nil
}

func (f *fakePaymentService) List(ctx context.Context, req paymentdomain.ListPaymentRequest) (paymentdomain.ListPaymentResponse, error) {
	return paymentdomain.ListPaymentResponse{Payments: []paymentdomain.Payment{samplePayment()}}, nil
}

func (f *fakePaymentService) Receipt(ctx context.Context, id string) (paymentdomain.Receipt, error) {
	payment, err := f.GetByID(ctx, id)
	if err != nil {
		return paymentdomain.Receipt{}, err
	}
	return paymentdomain.Receipt{Payment: payment, PatientName: "Ana López", Concept: "Ortodoncia"}, nil
}

func TestRecordPaymentBindsDecimalAmount(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	for _, amount := range []any{"150.50", 150.5} {
		w := ts.do(http.MethodPost, "/api/payments", map[string]any{
			"patient_id":  "500",
			"amount":      amount,
			"method":      "efectivo",
			"target_kind": "tratamiento",
			"target_id":   "800",
		}, true)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.True(t, ts.payments.lastRecord.Amount.Equal(decimal.RequireFromString("150.50")), ts.payments.lastRecord.Amount.String())
		assert.Nil(t, ts.payments.lastRecord.PaidAt)
	}
	assert.Equal(t, []string{"payment.record", "payment.record"}, ts.audit.actions)
}

func TestRecordPaymentRejectsMalformedAmount(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodPost, "/api/payments", map[string]any{"patient_id": "500", "amount": "mucho"}, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeError(t, w).Type)
	assert.Empty(t, ts.audit.actions)
}

func TestRecordPaymentOverpaymentIsAmountFieldError(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)
	ts.payments.recordErr = paymentdomain.ErrAmountExceedsPending

	w := ts.do(http.MethodPost, "/api/payments", map[string]any{
		"patient_id":  "500",
		"amount":      "900",
		"method":      "efectivo",
		"target_kind": "tratamiento",
		"target_id":   "800",
	}, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "amount", payload.Errors[0].Field)
	assert.Equal(t, "amount_exceeds_pending", payload.Errors[0].Code)
	assert.Empty(t, ts.audit.actions)
}

func TestRecordPaymentRejectsBadPaidAt(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodPost, "/api/payments", map[string]any{"patient_id": "500", "amount": "10", "paid_at": "ayer"}, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "paid_at", payload.Errors[0].Field)
}

func TestReceiptPDFHeaders(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodGet, "/api/payments/700/receipt.pdf", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="recibo-r-0001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, fakePDFBody, w.Body.String())
	require.NotNil(t, ts.pdf.receipt)
	assert.Equal(t, "R-0001", ts.pdf.receipt.ReceiptNumber)
	assert.Equal(t, "150.50", ts.pdf.receipt.Amount)
}

func TestReceiptPDFUnknownPayment(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodGet, "/api/payments/701/receipt.pdf", nil, true)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, ts.pdf.receipt)
}
