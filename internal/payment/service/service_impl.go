package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
	"github.com/smallbiznis/dentaldesk/internal/observability/logger"
	"github.com/smallbiznis/dentaldesk/internal/observability/metrics"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/internal/payment/domain"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Metrics         *metrics.Metrics `optional:"true"`
	Repo            domain.Repository
	PatientRepo     patientdomain.Repository
	TreatmentRepo   treatmentdomain.Repository
	AppointmentRepo appointmentdomain.Repository
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	metrics         *metrics.Metrics
	repo            domain.Repository
	patientRepo     patientdomain.Repository
	treatmentRepo   treatmentdomain.Repository
	appointmentRepo appointmentdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		metrics:         p.Metrics,
		repo:            p.Repo,
		patientRepo:     p.PatientRepo,
		treatmentRepo:   p.TreatmentRepo,
		appointmentRepo: p.AppointmentRepo,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordPaymentResponse, error) {
	kind, ok := domain.ParseTargetKind(req.TargetKind)
	if !ok {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidTargetKind
	}
	resp, err := s.record(ctx, kind, req)
	if err != nil {
		s.metrics.RecordPaymentRejected(ctx, string(kind), rejectReason(err))
		return domain.RecordPaymentResponse{}, err
	}

	amount, _ := resp.Payment.Amount.Float64()
	s.metrics.RecordPayment(ctx, string(resp.Payment.Method), string(kind), amount)
	logger.WithPatient(logger.WithContext(ctx, s.log), resp.Payment.PatientID.String()).Info("payment recorded",
		zap.String("payment_id", resp.Payment.ID.String()),
		zap.String("receipt_number", resp.Payment.ReceiptNumber),
		zap.String("target_kind", string(kind)),
		zap.String("target_id", resp.Payment.TargetID.String()),
		zap.String("amount", resp.Payment.Amount.StringFixed(2)),
	)
	return resp, nil
}

func (s *Service) record(ctx context.Context, kind domain.TargetKind, req domain.RecordPaymentRequest) (domain.RecordPaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidAmount
	}
	method, ok := domain.ParseMethod(req.Method)
	if !ok {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidMethod
	}
	targetID, err := parseRef(req.TargetID, domain.ErrInvalidTarget)
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}
	var patientID *snowflake.ID
	if strings.TrimSpace(req.PatientID) != "" {
		id, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
		if err != nil {
			return domain.RecordPaymentResponse{}, err
		}
		patientID = &id
	}

	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
		if paidAt.After(now) {
			return domain.RecordPaymentResponse{}, domain.ErrInvalidPaidAt
		}
	}

	actorID, _ := obscontext.ActorFromContext(ctx)
	payment := domain.Payment{
		ID:            s.genID.Generate(),
		ReceiptNumber: ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Amount:        req.Amount.Round(2),
		Method:        method,
		TargetKind:    kind,
		TargetID:      targetID,
		Note:          strings.TrimSpace(req.Note),
		RecordedBy:    actorID,
		PaidAt:        paidAt,
		CreatedAt:     now,
	}

	var resp domain.RecordPaymentResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch kind {
		case domain.TargetTreatment:
			treatment, err := s.treatmentRepo.FindByIDForUpdate(ctx, tx, targetID)
			if err != nil {
				return err
			}
			if treatment == nil {
				return domain.ErrInvalidTarget
			}
			if patientID != nil && *patientID != treatment.PatientID {
				return domain.ErrInvalidPatient
			}
			account, err := domain.Apply(treatment.Account(), payment.Amount)
			if err != nil {
				return err
			}
			if err := s.treatmentRepo.UpdateAccount(ctx, tx, treatment.ID, account, now); err != nil {
				return err
			}
			payment.PatientID = treatment.PatientID
			resp.Account = &account

		case domain.TargetAppointment:
			appointment, err := s.appointmentRepo.FindByIDForUpdate(ctx, tx, targetID)
			if err != nil {
				return err
			}
			if appointment == nil {
				return domain.ErrInvalidTarget
			}
			if patientID != nil && *patientID != appointment.PatientID {
				return domain.ErrInvalidPatient
			}
			if err := appointment.CanBePaid(); err != nil {
				return err
			}
			if err := domain.ApplyToVisit(appointment.Price, payment.Amount); err != nil {
				return err
			}
			if err := s.appointmentRepo.MarkPaid(ctx, tx, appointment.ID, paidAt); err != nil {
				return err
			}
			payment.PatientID = appointment.PatientID
		}

		return s.repo.Insert(ctx, tx, &payment)
	})
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}

	resp.Payment = payment
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	paymentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if item == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	filter := domain.ListPaymentFilter{From: req.From, To: req.To}
	if strings.TrimSpace(req.PatientID) != "" {
		id, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
		if err != nil {
			return domain.ListPaymentResponse{}, err
		}
		filter.PatientID = &id
	}
	if strings.TrimSpace(req.TargetKind) != "" {
		kind, ok := domain.ParseTargetKind(req.TargetKind)
		if !ok {
			return domain.ListPaymentResponse{}, domain.ErrInvalidTargetKind
		}
		filter.TargetKind = kind
	}
	if strings.TrimSpace(req.TargetID) != "" {
		id, err := parseRef(req.TargetID, domain.ErrInvalidTarget)
		if err != nil {
			return domain.ListPaymentResponse{}, err
		}
		filter.TargetID = &id
	}
	if strings.TrimSpace(req.Method) != "" {
		method, ok := domain.ParseMethod(req.Method)
		if !ok {
			return domain.ListPaymentResponse{}, domain.ErrInvalidMethod
		}
		filter.Method = method
	}

	fingerprint := pagination.Fingerprint(
		strings.TrimSpace(req.PatientID),
		string(filter.TargetKind),
		strings.TrimSpace(req.TargetID),
		string(filter.Method),
		formatBound(filter.From),
		formatBound(filter.To),
	)
	page := pagination.Resolve(req.Pagination, fingerprint)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item != nil {
			payments = append(payments, *item)
		}
	}
	return domain.ListPaymentResponse{
		PageInfo: pagination.BuildPageInfo(page, total, fingerprint),
		Payments: payments,
	}, nil
}

func (s *Service) Receipt(ctx context.Context, id string) (domain.Receipt, error) {
	payment, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Receipt{}, err
	}

	receipt := domain.Receipt{Payment: payment}
	patient, err := s.patientRepo.FindByID(ctx, s.db, payment.PatientID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if patient != nil {
		receipt.PatientName = patient.FullName()
	}

	switch payment.TargetKind {
	case domain.TargetTreatment:
		treatment, err := s.treatmentRepo.FindByID(ctx, s.db, payment.TargetID)
		if err != nil {
			return domain.Receipt{}, err
		}
		if treatment != nil {
			receipt.Concept = treatment.Name
			account := treatment.Account()
			receipt.Account = &account
		}
	case domain.TargetAppointment:
		appointment, err := s.appointmentRepo.FindByID(ctx, s.db, payment.TargetID)
		if err != nil {
			return domain.Receipt{}, err
		}
		if appointment != nil {
			receipt.Concept = "Consulta " + appointment.ScheduledAt.Format("2006-01-02 15:04")
			if appointment.Reason != "" {
				receipt.Concept += " - " + appointment.Reason
			}
		}
	}
	return receipt, nil
}

func rejectReason(err error) string {
	for _, known := range []error{
		domain.ErrInvalidAmount,
		domain.ErrAmountExceedsPending,
		domain.ErrAmountExceedsPrice,
		domain.ErrAccountSettled,
		domain.ErrInvalidMethod,
		domain.ErrInvalidTarget,
		domain.ErrInvalidPatient,
		domain.ErrInvalidPaidAt,
		appointmentdomain.ErrAlreadyPaid,
		appointmentdomain.ErrAppointmentCancelled,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal"
}

func parseRef(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
