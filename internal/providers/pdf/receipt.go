package pdf

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
)

type ReceiptData struct {
	ReceiptNumber string
	DatePaid      string
	PatientName   string
	Concept       string
	Method        string
	Amount        string
	Note          string

	// Account figures are empty for visit payments.
	TotalBudget string
	Paid        string
	Pending     string
}

var methodLabels = map[paymentdomain.Method]string{
	paymentdomain.MethodCash:     "Efectivo",
	paymentdomain.MethodCard:     "Tarjeta",
	paymentdomain.MethodTransfer: "Transferencia",
	paymentdomain.MethodOther:    "Otro",
}

func NewReceiptData(r paymentdomain.Receipt, loc *time.Location) ReceiptData {
	if loc == nil {
		loc = time.UTC
	}
	method, ok := methodLabels[r.Payment.Method]
	if !ok {
		method = string(r.Payment.Method)
	}
	data := ReceiptData{
		ReceiptNumber: r.Payment.ReceiptNumber,
		DatePaid:      r.Payment.PaidAt.In(loc).Format(dateLayout + " 15:04"),
		PatientName:   r.PatientName,
		Concept:       r.Concept,
		Method:        method,
		Amount:        money(r.Payment.Amount),
		Note:          r.Payment.Note,
	}
	if r.Account != nil {
		data.TotalBudget = money(r.Account.TotalBudget)
		data.Paid = money(r.Account.AmountPaid)
		data.Pending = money(r.Account.AmountPending)
	}
	return data
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	m := maroto.New(documentConfig())

	p.addHeader(m, "Recibo")

	m.AddRow(20,
		col.New(6).Add(
			text.New("Recibo nº: "+data.ReceiptNumber, props.Text{Top: 0}),
			text.New("Fecha de pago: "+data.DatePaid, props.Text{Top: 5}),
			text.New("Forma de pago: "+data.Method, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Paciente", props.Text{Style: fontstyle.Bold}),
			text.New(data.PatientName, props.Text{Top: 5}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.Amount+" recibidos el "+data.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(10, "Concepto", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Importe", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(10, data.Concept, props.Text{Size: 9}),
		text.NewCol(2, data.Amount, props.Text{Size: 9, Align: align.Right}),
	)
	if data.Note != "" {
		m.AddRow(8, text.NewCol(12, data.Note, props.Text{Size: 8, Style: fontstyle.Italic}))
	}

	if data.TotalBudget != "" {
		addTotal(m, "Presupuesto", data.TotalBudget, false)
		addTotal(m, "Pagado", data.Paid, false)
		addTotal(m, "Pendiente", data.Pending, true)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
