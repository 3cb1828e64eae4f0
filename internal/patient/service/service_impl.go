package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("patient.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePatientRequest) (domain.Patient, error) {
	now := s.clock.Now()
	patient := domain.Patient{
		ID:           s.genID.Generate(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		DocumentID:   optionalString(req.DocumentID),
		BirthDate:    dateOnly(req.BirthDate),
		Gender:       strings.TrimSpace(req.Gender),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Address:      strings.TrimSpace(req.Address),
		Allergies:    strings.TrimSpace(req.Allergies),
		MedicalNotes: strings.TrimSpace(req.MedicalNotes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.validate(patient, now); err != nil {
		return domain.Patient{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &patient); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Patient{}, domain.ErrDuplicateDocument
		}
		return domain.Patient{}, err
	}

	s.log.Info("patient created", zap.String("patient_id", patient.ID.String()))
	return patient, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Patient, error) {
	patientID, err := s.parseID(id)
	if err != nil {
		return domain.Patient{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, patientID)
	if err != nil {
		return domain.Patient{}, err
	}
	if item == nil {
		return domain.Patient{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPatientRequest) (domain.ListPatientResponse, error) {
	filter := domain.ListPatientFilter{Query: strings.TrimSpace(req.Query)}
	fingerprint := pagination.Fingerprint(filter.Query)
	page := pagination.Resolve(req.Pagination, fingerprint)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListPatientResponse{}, err
	}

	patients := make([]domain.Patient, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		patients = append(patients, *item)
	}

	return domain.ListPatientResponse{
		PageInfo: pagination.BuildPageInfo(page, total, fingerprint),
		Patients: patients,
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdatePatientRequest) (domain.Patient, error) {
	patient, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Patient{}, err
	}

	if req.FirstName != nil {
		patient.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		patient.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.DocumentID != nil {
		patient.DocumentID = optionalString(*req.DocumentID)
	}
	if req.BirthDate != nil {
		patient.BirthDate = dateOnly(req.BirthDate)
	}
	if req.Gender != nil {
		patient.Gender = strings.TrimSpace(*req.Gender)
	}
	if req.Phone != nil {
		patient.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		patient.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Address != nil {
		patient.Address = strings.TrimSpace(*req.Address)
	}
	if req.Allergies != nil {
		patient.Allergies = strings.TrimSpace(*req.Allergies)
	}
	if req.MedicalNotes != nil {
		patient.MedicalNotes = strings.TrimSpace(*req.MedicalNotes)
	}

	now := s.clock.Now()
	if err := s.validate(patient, now); err != nil {
		return domain.Patient{}, err
	}
	patient.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, &patient); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Patient{}, domain.ErrDuplicateDocument
		}
		return domain.Patient{}, err
	}
	return patient, nil
}

// Delete removes a patient that has no clinical or billing history.
func (s *Service) Delete(ctx context.Context, id string) error {
	patientID, err := s.parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, patientID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		refs, err := s.repo.CountReferences(ctx, tx, patientID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrPatientInUse
		}
		return s.repo.Delete(ctx, tx, patientID)
	})
}

func (s *Service) validate(p domain.Patient, now time.Time) error {
	if p.FirstName == "" {
		return domain.ErrInvalidFirstName
	}
	if p.LastName == "" {
		return domain.ErrInvalidLastName
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return domain.ErrInvalidEmail
	}
	if p.BirthDate != nil && p.BirthDate.After(now) {
		return domain.ErrInvalidBirthDate
	}
	return nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
