package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/internal/providers/pdf"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type recordPaymentRequest struct {
	PatientID  string          `json:"patient_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	TargetKind string          `json:"target_kind"`
	TargetID   string          `json:"target_id"`
	Note       string          `json:"note"`
	PaidAt     string          `json:"paid_at"`
}

type listPaymentsQuery struct {
	pagination.Pagination
	PatientID  string `form:"patient_id"`
	TargetKind string `form:"target_kind"`
	TargetID   string `form:"target_id"`
	Method     string `form:"method"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidAt, err := s.parseLocalTime(req.PaidAt, false)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPaidAt)
		return
	}

	setPatientLogField(c, req.PatientID)
	resp, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		PatientID:  req.PatientID,
		Amount:     req.Amount,
		Method:     req.Method,
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		Note:       req.Note,
		PaidAt:     paidAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	metadata := map[string]any{
		"patient_id":     resp.Payment.PatientID.String(),
		"amount":         resp.Payment.Amount.StringFixed(2),
		"method":         string(resp.Payment.Method),
		"target_kind":    string(resp.Payment.TargetKind),
		"target_id":      resp.Payment.TargetID.String(),
		"receipt_number": resp.Payment.ReceiptNumber,
	}
	if resp.Account != nil {
		metadata["amount_pending"] = resp.Account.AmountPending.StringFixed(2)
	}
	s.recordAudit(c, "payment.record", "payment", resp.Payment.ID.String(), metadata)

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.paymentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	setPatientLogField(c, resp.PatientID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query listPaymentsQuery
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
	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		Pagination: query.Pagination,
		PatientID:  strings.TrimSpace(query.PatientID),
		TargetKind: strings.TrimSpace(query.TargetKind),
		TargetID:   strings.TrimSpace(query.TargetID),
		Method:     strings.TrimSpace(query.Method),
		From:       from,
		To:         to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payments, "page_info": resp.PageInfo})
}

func (s *Server) DownloadReceiptPDF(c *gin.Context) {
	ctx := c.Request.Context()

	receipt, err := s.paymentSvc.Receipt(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	setPatientLogField(c, receipt.Payment.PatientID.String())

	doc, err := s.pdf.GenerateReceipt(ctx, pdf.NewReceiptData(receipt, s.scheduling.Get().Location()))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := pdf.FileName("recibo", receipt.Payment.ReceiptNumber)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": `attachment; filename="` + filename + `"`,
	})
}
