package pdf

import (
	"context"
	"io"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	appconfig "github.com/smallbiznis/dentaldesk/internal/config"
)

// Provider renders printable clinic documents.
type Provider interface {
	GenerateBudget(ctx context.Context, data BudgetData) (io.Reader, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

// Clinic is printed in the header of every document.
type Clinic struct {
	Name    string
	Address string
	Phone   string
}

type PDFProvider struct {
	clinic Clinic
}

func New(cfg appconfig.Config) Provider {
	return NewWithClinic(Clinic{
		Name:    cfg.ClinicName,
		Address: cfg.ClinicAddress,
		Phone:   cfg.ClinicPhone,
	})
}

func NewWithClinic(clinic Clinic) *PDFProvider {
	if strings.TrimSpace(clinic.Name) == "" {
		clinic.Name = "DentalDesk"
	}
	return &PDFProvider{clinic: clinic}
}

// FileName builds a download name such as "presupuesto-ana-lopez-1234.pdf".
func FileName(kind string, parts ...string) string {
	name := slug.Make(strings.Join(append([]string{kind}, parts...), " "))
	if name == "" {
		name = "documento"
	}
	return name + ".pdf"
}

func documentConfig() *entity.Config {
	return config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()
}
