package seed

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/smallbiznis/dentaldesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	adminLockName = "seed:default-admin"
	adminLockTTL = 30 * time.Second
)

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Auth   authdomain.Service
	Users  authdomain.Repository
	Locker *ratelimit.Locker `optional:"true"`
}

// Seeder creates the records a fresh install needs before anyone can log in.
type Seeder struct {
	cfg    config.Config
	log    *zap.Logger
	auth   authdomain.Service
	users  authdomain.Repository
	locker *ratelimit.Locker
}

func NewSeeder(p Params) *Seeder {
	return &Seeder{
		cfg:    p.Cfg,
		log:    p.Log.Named("seed"),
		auth:   p.Auth,
		users:  p.Users,
		locker: p.Locker,
	}
}

// EnsureDefaultAdmin creates the bootstrap administrator when no active admin
// exists. With Redis configured, concurrent replicas serialize on a lock.
func (s *Seeder) EnsureDefaultAdmin(ctx context.Context) error {
	err := s.locker.WithLock(ctx, adminLockName, adminLockTTL, s.ensureDefaultAdmin)
	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		s.log.Info("default admin seeding handled by another instance")
		return nil
	case errors.Is(err, ratelimit.ErrLockUnavailable):
		s.log.Warn("seed lock unavailable, continuing without it", zap.Error(err))
		return s.ensureDefaultAdmin(ctx)
	default:
		return err
	}
}

func (s *Seeder) ensureDefaultAdmin(ctx context.Context) error {
	admins, err := s.users.CountActiveByRole(ctx, authdomain.RoleAdmin)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	bootstrap := s.cfg.Bootstrap
	user, err := s.auth.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       bootstrap.AdminEmail,
		Password:    bootstrap.AdminPassword,
		DisplayName: bootstrap.AdminName,
		Role:        string(authdomain.RoleAdmin),
		IsDefault:   true,
	})
	if errors.Is(err, authdomain.ErrUserExists) {
		s.log.Warn("default admin email already taken by a non-admin account",
			zap.String("email", bootstrap.AdminEmail),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("default admin created",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)
	return nil
}
