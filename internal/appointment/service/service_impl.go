package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	"github.com/smallbiznis/dentaldesk/internal/observability/metrics"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Scheduling    *config.SchedulingConfigHolder
	Metrics       *metrics.Metrics `optional:"true"`
	Repo          domain.Repository
	PatientRepo   patientdomain.Repository
	EmployeeRepo  employeedomain.Repository
	TreatmentRepo treatmentdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	scheduling    *config.SchedulingConfigHolder
	metrics       *metrics.Metrics
	repo          domain.Repository
	patientRepo   patientdomain.Repository
	employeeRepo  employeedomain.Repository
	treatmentRepo treatmentdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("appointment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		scheduling:    p.Scheduling,
		metrics:       p.Metrics,
		repo:          p.Repo,
		patientRepo:   p.PatientRepo,
		employeeRepo:  p.EmployeeRepo,
		treatmentRepo: p.TreatmentRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAppointmentRequest) (domain.Appointment, error) {
	cfg := s.scheduling.Get()

	patientID, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
	if err != nil {
		return domain.Appointment{}, err
	}
	scheduledAt := req.ScheduledAt.UTC()
	if scheduledAt.IsZero() || !domain.IsSlotAligned(scheduledAt, cfg) {
		return domain.Appointment{}, domain.ErrInvalidScheduledAt
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = cfg.Granularity
	}
	if duration < 0 || duration%cfg.Granularity != 0 {
		return domain.Appointment{}, domain.ErrInvalidDuration
	}
	price, err := validatePrice(req.Price)
	if err != nil {
		return domain.Appointment{}, err
	}

	status := domain.StatusPending
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := domain.ParseStatus(req.Status)
		if !ok || parsed.IsTerminal() {
			return domain.Appointment{}, domain.ErrInvalidStatus
		}
		status = parsed
	}

	now := s.clock.Now()
	appointment := domain.Appointment{
		ID:              s.genID.Generate(),
		PatientID:       patientID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: duration,
		Reason:          strings.TrimSpace(req.Reason),
		Notes:           strings.TrimSpace(req.Notes),
		Status:          status,
		Price:           price,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		patient, err := s.patientRepo.FindByID(ctx, tx, patientID)
		if err != nil {
			return err
		}
		if patient == nil {
			return domain.ErrInvalidPatient
		}

		if appointment.EmployeeID, err = s.resolveEmployee(ctx, tx, req.EmployeeID); err != nil {
			return err
		}
		if appointment.TreatmentID, err = s.resolveTreatment(ctx, tx, req.TreatmentID, patientID); err != nil {
			return err
		}
		if err := s.ensureSlotFree(ctx, tx, appointment, cfg); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &appointment)
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.metrics.RecordAppointmentCreated(ctx, string(appointment.Status))
	s.log.Info("appointment created",
		zap.String("appointment_id", appointment.ID.String()),
		zap.Time("scheduled_at", appointment.ScheduledAt),
	)
	return appointment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	appointmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if item == nil {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAppointmentRequest) (domain.ListAppointmentResponse, error) {
	filter := domain.ListAppointmentFilter{From: req.From, To: req.To}
	if strings.TrimSpace(req.PatientID) != "" {
		id, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
		if err != nil {
			return domain.ListAppointmentResponse{}, err
		}
		filter.PatientID = &id
	}
	if strings.TrimSpace(req.EmployeeID) != "" {
		id, err := parseRef(req.EmployeeID, domain.ErrInvalidEmployee)
		if err != nil {
			return domain.ListAppointmentResponse{}, err
		}
		filter.EmployeeID = &id
	}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := domain.ParseStatus(req.Status)
		if !ok {
			return domain.ListAppointmentResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	fingerprint := pagination.Fingerprint(
		strings.TrimSpace(req.PatientID),
		strings.TrimSpace(req.EmployeeID),
		string(filter.Status),
		formatBound(filter.From),
		formatBound(filter.To),
	)
	page := pagination.Resolve(req.Pagination, fingerprint)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListAppointmentResponse{}, err
	}

	appointments := make([]domain.Appointment, 0, len(items))
	for _, item := range items {
		if item != nil {
			appointments = append(appointments, *item)
		}
	}
	return domain.ListAppointmentResponse{
		PageInfo:     pagination.BuildPageInfo(page, total, fingerprint),
		Appointments: appointments,
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateAppointmentRequest) (domain.Appointment, error) {
	appointmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}
	cfg := s.scheduling.Get()

	var updated domain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := s.load(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if appointment.Status.IsTerminal() {
			return domain.ErrAppointmentTerminal
		}

		slotChanged := false
		if req.EmployeeID != nil {
			if appointment.EmployeeID, err = s.resolveEmployee(ctx, tx, *req.EmployeeID); err != nil {
				return err
			}
			slotChanged = true
		}
		if req.TreatmentID != nil {
			if appointment.TreatmentID, err = s.resolveTreatment(ctx, tx, *req.TreatmentID, appointment.PatientID); err != nil {
				return err
			}
		}
		if req.DurationMinutes != nil {
			if *req.DurationMinutes <= 0 || *req.DurationMinutes%cfg.Granularity != 0 {
				return domain.ErrInvalidDuration
			}
			appointment.DurationMinutes = *req.DurationMinutes
			slotChanged = true
		}
		if req.Reason != nil {
			appointment.Reason = strings.TrimSpace(*req.Reason)
		}
		if req.Notes != nil {
			appointment.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.Price != nil {
			if appointment.Price, err = validatePrice(req.Price); err != nil {
				return err
			}
		}
		if slotChanged {
			if err := s.ensureSlotFree(ctx, tx, *appointment, cfg); err != nil {
				return err
			}
		}

		appointment.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, appointment); err != nil {
			return err
		}
		updated = *appointment
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

// UpdateStatus applies an explicit user action. Moving to reprogramada
// requires the new start time.
func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.UpdateStatusRequest) (domain.StatusChange, error) {
	appointmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.StatusChange{}, err
	}
	target, ok := domain.ParseStatus(req.Status)
	if !ok {
		return domain.StatusChange{}, domain.ErrInvalidStatus
	}
	cfg := s.scheduling.Get()
	if target == domain.StatusRescheduled {
		if req.ScheduledAt == nil || !domain.IsSlotAligned(req.ScheduledAt.UTC(), cfg) {
			return domain.StatusChange{}, domain.ErrInvalidScheduledAt
		}
	}

	var (
		updated domain.Appointment
		from    domain.Status
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := s.load(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		from = appointment.Status

		changed, err = domain.Transition(appointment.Status, target)
		if err != nil {
			return err
		}
		if !changed {
			updated = *appointment
			return nil
		}

		appointment.Status = target
		switch target {
		case domain.StatusRescheduled:
			appointment.ScheduledAt = req.ScheduledAt.UTC()
			if err := s.ensureSlotFree(ctx, tx, *appointment, cfg); err != nil {
				return err
			}
		case domain.StatusCancelled:
			appointment.CancelReason = strings.TrimSpace(req.CancelReason)
		}

		appointment.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, appointment); err != nil {
			return err
		}
		updated = *appointment
		return nil
	})
	if err != nil {
		return domain.StatusChange{}, err
	}

	if changed {
		s.metrics.RecordStatusTransition(ctx, string(from), string(target))
		s.log.Info("appointment status changed",
			zap.String("appointment_id", updated.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
		)
	}
	return domain.StatusChange{Appointment: updated, From: from, Changed: changed}, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (domain.StatusChange, error) {
	return s.UpdateStatus(ctx, id, domain.UpdateStatusRequest{Status: string(domain.StatusConfirmed)})
}

func (s *Service) Complete(ctx context.Context, id string) (domain.StatusChange, error) {
	return s.UpdateStatus(ctx, id, domain.UpdateStatusRequest{Status: string(domain.StatusCompleted)})
}

func (s *Service) Cancel(ctx context.Context, id string, reason string) (domain.StatusChange, error) {
	return s.UpdateStatus(ctx, id, domain.UpdateStatusRequest{
		Status:       string(domain.StatusCancelled),
		CancelReason: reason,
	})
}

func (s *Service) Reschedule(ctx context.Context, id string, scheduledAt time.Time) (domain.StatusChange, error) {
	return s.UpdateStatus(ctx, id, domain.UpdateStatusRequest{
		Status:      string(domain.StatusRescheduled),
		ScheduledAt: &scheduledAt,
	})
}

// MarkPaid flips the single-visit paid flag without a payment record.
func (s *Service) MarkPaid(ctx context.Context, id string, paidAt *time.Time) (domain.Appointment, error) {
	appointmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}
	at := s.clock.Now()
	if paidAt != nil && !paidAt.IsZero() {
		at = paidAt.UTC()
	}

	var updated domain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := s.load(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if err := appointment.CanBePaid(); err != nil {
			return err
		}
		if err := s.repo.MarkPaid(ctx, tx, appointment.ID, at); err != nil {
			return err
		}
		appointment.IsPaid = true
		appointment.PaidAt = &at
		appointment.UpdatedAt = at
		updated = *appointment
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

func (s *Service) Slots(_ context.Context) []domain.Slot {
	return domain.GenerateSlots(s.scheduling.Get())
}

// AvailableSlots marks each slot of the day that still fits a visit of the
// default length for the given employee.
func (s *Service) AvailableSlots(ctx context.Context, req domain.AvailableSlotsRequest) ([]domain.SlotAvailability, error) {
	cfg := s.scheduling.Get()
	loc := cfg.Location()
	slots := domain.GenerateSlots(cfg)

	out := make([]domain.SlotAvailability, len(slots))
	for i, slot := range slots {
		out[i] = domain.SlotAvailability{Slot: slot, Available: true}
	}
	if strings.TrimSpace(req.EmployeeID) == "" {
		return out, nil
	}

	employeeID, err := parseRef(req.EmployeeID, domain.ErrInvalidEmployee)
	if err != nil {
		return nil, err
	}

	day := req.Date
	if day.IsZero() {
		day = s.clock.Now()
	}
	from, to := domain.DayBounds(day, loc)
	booked, err := s.repo.ListBooked(ctx, s.db, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	local := day.In(loc)
	slotLength := cfg.SlotDuration()
	for i, slot := range slots {
		start, err := time.ParseInLocation("2006-01-02 15:04", local.Format("2006-01-02")+" "+slot.Value, loc)
		if err != nil {
			continue
		}
		for _, b := range booked {
			if b.Overlaps(start.UTC(), slotLength) {
				out[i].Available = false
				break
			}
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	appointment, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, domain.ErrNotFound
	}
	return appointment, nil
}

// ensureSlotFree rejects a booking that overlaps another live visit of the
// same employee. Visits without an employee never conflict.
func (s *Service) ensureSlotFree(ctx context.Context, tx *gorm.DB, a domain.Appointment, cfg config.SchedulingConfig) error {
	if a.EmployeeID == nil {
		return nil
	}
	from, to := domain.DayBounds(a.ScheduledAt, cfg.Location())
	booked, err := s.repo.ListBooked(ctx, tx, *a.EmployeeID, from.Add(-24*time.Hour), to)
	if err != nil {
		return err
	}
	length := time.Duration(a.DurationMinutes) * time.Minute
	for _, b := range booked {
		if b.ID == a.ID {
			continue
		}
		if b.Overlaps(a.ScheduledAt, length) {
			return domain.ErrSlotUnavailable
		}
	}
	return nil
}

func (s *Service) resolveEmployee(ctx context.Context, tx *gorm.DB, raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseRef(raw, domain.ErrInvalidEmployee)
	if err != nil {
		return nil, err
	}
	employee, err := s.employeeRepo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if employee == nil || !employee.Active {
		return nil, domain.ErrInvalidEmployee
	}
	return &id, nil
}

func (s *Service) resolveTreatment(ctx context.Context, tx *gorm.DB, raw string, patientID snowflake.ID) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseRef(raw, domain.ErrInvalidTreatment)
	if err != nil {
		return nil, err
	}
	treatment, err := s.treatmentRepo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if treatment == nil || treatment.PatientID != patientID {
		return nil, domain.ErrInvalidTreatment
	}
	return &id, nil
}

func validatePrice(price *decimal.Decimal) (decimal.NullDecimal, error) {
	if price == nil {
		return decimal.NullDecimal{}, nil
	}
	if price.IsNegative() {
		return decimal.NullDecimal{}, domain.ErrInvalidPrice
	}
	return decimal.NewNullDecimal(price.Round(2)), nil
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
