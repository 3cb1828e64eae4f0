package pdf

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTreatment() treatmentdomain.Treatment {
	items := []treatmentdomain.BudgetItem{
		{Description: "Limpieza", Quantity: 2, UnitPrice: decimal.RequireFromString("20")},
		{
			Description: "Ortodoncia",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString("999"),
			SubItems: []treatmentdomain.BudgetSubItem{
				{Description: "Brackets", Quantity: 1, UnitPrice: decimal.RequireFromString("80")},
				{Description: "Revisión", Quantity: 2, UnitPrice: decimal.RequireFromString("10")},
			},
		},
	}
	t := treatmentdomain.Treatment{ID: 1234, Name: "Plan anual", Items: items}
	t.SetAccount(treatmentdomain.NewAccount(treatmentdomain.GrandTotal(items)))
	return t
}

func TestNewBudgetDataFlattensSubItems(t *testing.T) {
	data := NewBudgetData(sampleTreatment(), "Ana López", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "09/03/2024", data.IssueDate)
	assert.Equal(t, "140.00", data.Total)
	assert.Equal(t, "140.00", data.Pending)
	require.Len(t, data.Lines, 4)

	assert.Equal(t, "2", data.Lines[0].Qty)
	assert.Equal(t, "40.00", data.Lines[0].Amount)

	assert.Equal(t, "Ortodoncia", data.Lines[1].Description)
	assert.Empty(t, data.Lines[1].Qty)
	assert.Equal(t, "100.00", data.Lines[1].Amount)

	assert.True(t, data.Lines[3].SubItem)
	assert.Equal(t, "20.00", data.Lines[3].Amount)
}

func TestGenerateBudgetProducesPDF(t *testing.T) {
	provider := NewWithClinic(Clinic{Name: "Clínica Sonrisa"})
	data := NewBudgetData(sampleTreatment(), "Ana López", time.Now())

	reader, err := provider.GenerateBudget(context.Background(), data)
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestGenerateReceiptProducesPDF(t *testing.T) {
	account := treatmentdomain.Account{
		TotalBudget:   decimal.RequireFromString("500"),
		AmountPaid:    decimal.RequireFromString("200"),
		AmountPending: decimal.RequireFromString("300"),
	}
	receipt := paymentdomain.Receipt{
		Payment: paymentdomain.Payment{
			ReceiptNumber: "01HV0000000000000000000000",
			Amount:        decimal.RequireFromString("200"),
			Method:        paymentdomain.MethodCard,
			PaidAt:        time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC),
		},
		PatientName: "Ana López",
		Concept:     "Plan anual",
		Account:     &account,
	}

	data := NewReceiptData(receipt, nil)
	assert.Equal(t, "Tarjeta", data.Method)
	assert.Equal(t, "09/03/2024 10:30", data.DatePaid)
	assert.Equal(t, "300.00", data.Pending)

	reader, err := NewWithClinic(Clinic{}).GenerateReceipt(context.Background(), data)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "presupuesto-ana-lopez-1234.pdf", FileName("presupuesto", "Ana López", "1234"))
	assert.Equal(t, "recibo.pdf", FileName("recibo"))
	assert.Equal(t, "documento.pdf", FileName(""))
}
