package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	PatientRepo  patientdomain.Repository
	EmployeeRepo employeedomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	patientRepo  patientdomain.Repository
	employeeRepo employeedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("treatment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		patientRepo:  p.PatientRepo,
		employeeRepo: p.EmployeeRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTreatmentRequest) (domain.Treatment, error) {
	patientID, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
	if err != nil {
		return domain.Treatment{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Treatment{}, domain.ErrInvalidName
	}
	if err := domain.ValidateItems(req.Items); err != nil {
		return domain.Treatment{}, err
	}

	patient, err := s.patientRepo.FindByID(ctx, s.db, patientID)
	if err != nil {
		return domain.Treatment{}, err
	}
	if patient == nil {
		return domain.Treatment{}, domain.ErrInvalidPatient
	}

	employeeID, err := s.resolveEmployee(ctx, req.EmployeeID)
	if err != nil {
		return domain.Treatment{}, err
	}

	items := domain.NormalizeItems(req.Items)
	now := s.clock.Now()
	treatment := domain.Treatment{
		ID:          s.genID.Generate(),
		PatientID:   patientID,
		EmployeeID:  employeeID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      domain.StatusActive,
		Items:       datatypes.JSONSlice[domain.BudgetItem](items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	treatment.SetAccount(domain.NewAccount(domain.GrandTotal(items)))

	if err := s.repo.Insert(ctx, s.db, &treatment); err != nil {
		return domain.Treatment{}, err
	}

	s.log.Info("treatment created",
		zap.String("treatment_id", treatment.ID.String()),
		zap.String("patient_id", patientID.String()),
		zap.String("total_budget", treatment.TotalBudget.StringFixed(2)),
	)
	return treatment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Treatment, error) {
	treatmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Treatment{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, treatmentID)
	if err != nil {
		return domain.Treatment{}, err
	}
	if item == nil {
		return domain.Treatment{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTreatmentRequest) (domain.ListTreatmentResponse, error) {
	filter := domain.ListTreatmentFilter{Settled: req.Settled}
	if strings.TrimSpace(req.PatientID) != "" {
		patientID, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
		if err != nil {
			return domain.ListTreatmentResponse{}, err
		}
		filter.PatientID = &patientID
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := parseStatus(raw)
		if !ok {
			return domain.ListTreatmentResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	settled := ""
	if filter.Settled != nil {
		if *filter.Settled {
			settled = "settled"
		} else {
			settled = "pending"
		}
	}
	fingerprint := pagination.Fingerprint(strings.TrimSpace(req.PatientID), string(filter.Status), settled)
	page := pagination.Resolve(req.Pagination, fingerprint)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListTreatmentResponse{}, err
	}

	return domain.ListTreatmentResponse{
		PageInfo:   pagination.BuildPageInfo(page, total, fingerprint),
		Treatments: deref(items),
	}, nil
}

func (s *Service) ListPending(ctx context.Context, patientID string) ([]domain.Treatment, error) {
	var filter *snowflake.ID
	if strings.TrimSpace(patientID) != "" {
		id, err := parseRef(patientID, domain.ErrInvalidPatient)
		if err != nil {
			return nil, err
		}
		filter = &id
	}

	items, err := s.repo.ListPending(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// UpdateBudget recomputes the total from the new items. Payments already
// received are kept, so the pending amount is total minus paid.
func (s *Service) UpdateBudget(ctx context.Context, id string, req domain.UpdateBudgetRequest) (domain.Treatment, error) {
	treatmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Treatment{}, err
	}
	if err := domain.ValidateItems(req.Items); err != nil {
		return domain.Treatment{}, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return domain.Treatment{}, domain.ErrInvalidName
	}

	var updated domain.Treatment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		treatment, err := s.repo.FindByIDForUpdate(ctx, tx, treatmentID)
		if err != nil {
			return err
		}
		if treatment == nil {
			return domain.ErrNotFound
		}
		if treatment.Status == domain.StatusFinished {
			return domain.ErrTreatmentFinished
		}

		items := domain.NormalizeItems(req.Items)
		account := domain.Rebudget(treatment.Account(), domain.GrandTotal(items))
		if account.AmountPending.IsNegative() {
			return domain.ErrBudgetBelowPaid
		}

		if req.Name != nil {
			treatment.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			treatment.Description = strings.TrimSpace(*req.Description)
		}
		treatment.Items = datatypes.JSONSlice[domain.BudgetItem](items)
		treatment.SetAccount(account)
		treatment.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateBudget(ctx, tx, treatment); err != nil {
			return err
		}
		updated = *treatment
		return nil
	})
	if err != nil {
		return domain.Treatment{}, err
	}
	return updated, nil
}

func (s *Service) Finish(ctx context.Context, id string) (domain.Treatment, error) {
	treatment, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Treatment{}, err
	}
	if treatment.Status == domain.StatusFinished {
		return treatment, nil
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, treatment.ID, domain.StatusFinished, &now, now); err != nil {
		return domain.Treatment{}, err
	}
	treatment.Status = domain.StatusFinished
	treatment.FinishedAt = &now
	treatment.UpdatedAt = now
	return treatment, nil
}

func (s *Service) resolveEmployee(ctx context.Context, raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseRef(raw, domain.ErrInvalidEmployee)
	if err != nil {
		return nil, err
	}
	employee, err := s.employeeRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if employee == nil || !employee.Active {
		return nil, domain.ErrInvalidEmployee
	}
	return &id, nil
}

func parseRef(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func parseStatus(raw string) (domain.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "activo", "active":
		return domain.StatusActive, true
	case "finalizado", "finished":
		return domain.StatusFinished, true
	}
	return "", false
}

func deref(items []*domain.Treatment) []domain.Treatment {
	out := make([]domain.Treatment, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
