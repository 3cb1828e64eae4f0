package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/employee/domain"
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
		log:   p.Log.Named("employee.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEmployeeRequest) (domain.Employee, error) {
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return domain.Employee{}, domain.ErrInvalidRole
	}

	now := s.clock.Now()
	employee := domain.Employee{
		ID:            s.genID.Generate(),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Role:          role,
		Specialty:     strings.TrimSpace(req.Specialty),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		Active:        true,
		HiredAt:       dateOnly(req.HiredAt),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := validate(employee); err != nil {
		return domain.Employee{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &employee); err != nil {
		return domain.Employee{}, err
	}

	s.log.Info("employee created",
		zap.String("employee_id", employee.ID.String()),
		zap.String("role", string(employee.Role)),
	)
	return employee, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Employee, error) {
	employeeID, err := s.parseID(id)
	if err != nil {
		return domain.Employee{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, employeeID)
	if err != nil {
		return domain.Employee{}, err
	}
	if item == nil {
		return domain.Employee{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEmployeeRequest) (domain.ListEmployeeResponse, error) {
	filter := domain.ListEmployeeFilter{
		Query:  strings.TrimSpace(req.Query),
		Active: req.Active,
	}
	if strings.TrimSpace(req.Role) != "" {
		role, ok := domain.ParseRole(req.Role)
		if !ok {
			return domain.ListEmployeeResponse{}, domain.ErrInvalidRole
		}
		filter.Role = role
	}

	active := ""
	if filter.Active != nil {
		active = strconv.FormatBool(*filter.Active)
	}
	fingerprint := pagination.Fingerprint(filter.Query, string(filter.Role), active)
	page := pagination.Resolve(req.Pagination, fingerprint)

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListEmployeeResponse{}, err
	}

	employees := make([]domain.Employee, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		employees = append(employees, *item)
	}

	return domain.ListEmployeeResponse{
		PageInfo:  pagination.BuildPageInfo(page, total, fingerprint),
		Employees: employees,
	}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateEmployeeRequest) (domain.Employee, error) {
	employee, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}

	if req.FirstName != nil {
		employee.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		employee.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		role, ok := domain.ParseRole(*req.Role)
		if !ok {
			return domain.Employee{}, domain.ErrInvalidRole
		}
		employee.Role = role
	}
	if req.Specialty != nil {
		employee.Specialty = strings.TrimSpace(*req.Specialty)
	}
	if req.Phone != nil {
		employee.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		employee.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.LicenseNumber != nil {
		employee.LicenseNumber = strings.TrimSpace(*req.LicenseNumber)
	}
	if req.HiredAt != nil {
		employee.HiredAt = dateOnly(req.HiredAt)
	}
	if req.Active != nil {
		employee.Active = *req.Active
	}
	if err := validate(employee); err != nil {
		return domain.Employee{}, err
	}

	employee.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &employee); err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}

// Deactivate keeps the employee for history but blocks new appointments.
func (s *Service) Deactivate(ctx context.Context, id string) (domain.Employee, error) {
	inactive := false
	return s.Update(ctx, id, domain.UpdateEmployeeRequest{Active: &inactive})
}

func validate(e domain.Employee) error {
	if e.FirstName == "" {
		return domain.ErrInvalidFirstName
	}
	if e.LastName == "" {
		return domain.ErrInvalidLastName
	}
	if e.Email != "" && !strings.Contains(e.Email, "@") {
		return domain.ErrInvalidEmail
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

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
