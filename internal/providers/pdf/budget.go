package pdf

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
)

const dateLayout = "02/01/2006"

type BudgetData struct {
	Number        string
	IssueDate     string
	PatientName   string
	TreatmentName string
	Description   string

	Lines []BudgetLine

	Total   string
	Paid    string
	Pending string
}

// BudgetLine is one printed row. Sub-item rows are indented and carry no
// amount of their own on the parent line.
type BudgetLine struct {
	Description string
	Qty         string
	UnitPrice   string
	Amount      string
	SubItem     bool
}

// NewBudgetData flattens a treatment into printable rows.
func NewBudgetData(t treatmentdomain.Treatment, patientName string, issued time.Time) BudgetData {
	data := BudgetData{
		Number:        t.ID.String(),
		IssueDate:     issued.Format(dateLayout),
		PatientName:   patientName,
		TreatmentName: t.Name,
		Description:   t.Description,
		Total:         money(t.TotalBudget),
		Paid:          money(t.AmountPaid),
		Pending:       money(t.AmountPending),
	}

	for _, item := range t.Items {
		line := BudgetLine{
			Description: item.Description,
			Amount:      money(treatmentdomain.LineTotal(item)),
		}
		if len(item.SubItems) == 0 {
			line.Qty = strconv.Itoa(item.Quantity)
			line.UnitPrice = money(item.UnitPrice)
		}
		data.Lines = append(data.Lines, line)

		for _, sub := range item.SubItems {
			data.Lines = append(data.Lines, BudgetLine{
				Description: sub.Description,
				Qty:         strconv.Itoa(sub.Quantity),
				UnitPrice:   money(sub.UnitPrice),
				Amount:      money(sub.UnitPrice.Mul(decimal.NewFromInt(int64(sub.Quantity)))),
				SubItem:     true,
			})
		}
	}
	return data
}

func (p *PDFProvider) GenerateBudget(ctx context.Context, data BudgetData) (io.Reader, error) {
	m := maroto.New(documentConfig())

	p.addHeader(m, "Presupuesto")

	m.AddRow(20,
		col.New(6).Add(
			text.New("Presupuesto nº: "+data.Number, props.Text{Top: 0}),
			text.New("Fecha: "+data.IssueDate, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Paciente", props.Text{Style: fontstyle.Bold}),
			text.New(data.PatientName, props.Text{Top: 5}),
		),
	)

	m.AddRow(12,
		text.NewCol(12, data.TreatmentName, props.Text{Size: 13, Style: fontstyle.Bold, Top: 3}),
	)
	if data.Description != "" {
		m.AddRow(10, text.NewCol(12, data.Description, props.Text{Size: 9}))
	}

	m.AddRow(10,
		text.NewCol(6, "Concepto", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Cant.", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Precio", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Importe", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range data.Lines {
		descProps := props.Text{Size: 9}
		if line.SubItem {
			descProps.Left = 6
			descProps.Size = 8
		}
		m.AddRow(8,
			text.NewCol(6, line.Description, descProps),
			text.NewCol(2, line.Qty, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	addTotal(m, "Total", data.Total, true)
	addTotal(m, "Pagado", data.Paid, false)
	addTotal(m, "Pendiente", data.Pending, true)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func (p *PDFProvider) addHeader(m core.Maroto, title string) {
	m.AddRow(24,
		col.New(8).Add(
			text.New(p.clinic.Name, props.Text{Size: 16, Style: fontstyle.Bold}),
			text.New(p.clinic.Address, props.Text{Top: 8, Size: 9}),
			text.New(p.clinic.Phone, props.Text{Top: 13, Size: 9}),
		),
		text.NewCol(4, title, props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Right}),
	)
}

func addTotal(m core.Maroto, label string, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}
