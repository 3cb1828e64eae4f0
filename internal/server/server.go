package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/dentaldesk/internal/appointment"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/internal/audit"
	auditdomain "github.com/smallbiznis/dentaldesk/internal/audit/domain"
	"github.com/smallbiznis/dentaldesk/internal/auth"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/auth/session"
	"github.com/smallbiznis/dentaldesk/internal/authorization"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/smallbiznis/dentaldesk/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/dentaldesk/internal/dashboard/domain"
	"github.com/smallbiznis/dentaldesk/internal/employee"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	"github.com/smallbiznis/dentaldesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/dentaldesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dentaldesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/dentaldesk/internal/observability/tracing"
	"github.com/smallbiznis/dentaldesk/internal/patient"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/internal/payment"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/internal/providers"
	"github.com/smallbiznis/dentaldesk/internal/providers/pdf"
	"github.com/smallbiznis/dentaldesk/internal/ratelimit"
	"github.com/smallbiznis/dentaldesk/internal/treatment"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const publicDir = "./public"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	patient.Module,
	employee.Module,
	appointment.Module,
	treatment.Module,
	payment.Module,
	dashboard.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	clock          clock.Clock
	scheduling     *config.SchedulingConfigHolder
	authsvc        authdomain.Service
	sessions       *session.Manager
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	patientSvc     patientdomain.Service
	employeeSvc    employeedomain.Service
	appointmentSvc appointmentdomain.Service
	treatmentSvc   treatmentdomain.Service
	paymentSvc     paymentdomain.Service
	dashboardSvc   dashboarddomain.Service
	pdf            pdf.Provider
	loginLimiter   *ratelimit.LoginLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Clock          clock.Clock
	Scheduling     *config.SchedulingConfigHolder
	Authsvc        authdomain.Service
	Sessions       *session.Manager
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	PatientSvc     patientdomain.Service
	EmployeeSvc    employeedomain.Service
	AppointmentSvc appointmentdomain.Service
	TreatmentSvc   treatmentdomain.Service
	PaymentSvc     paymentdomain.Service
	DashboardSvc   dashboarddomain.Service
	PDF            pdf.Provider
	LoginLimiter   *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		clock:          p.Clock,
		scheduling:     p.Scheduling,
		authsvc:        p.Authsvc,
		sessions:       p.Sessions,
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		patientSvc:     p.PatientSvc,
		employeeSvc:    p.EmployeeSvc,
		appointmentSvc: p.AppointmentSvc,
		treatmentSvc:   p.TreatmentSvc,
		paymentSvc:     p.PaymentSvc,
		dashboardSvc:   p.DashboardSvc,
		pdf:            p.PDF,
		loginLimiter:   p.LoginLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerUIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Dashboard --------
	api.GET("/dashboard", s.authorize(authorization.ObjectDashboard, authorization.ActionView), s.GetDashboard)

	// -------- Patients --------
	api.GET("/patients", s.authorize(authorization.ObjectPatient, authorization.ActionView), s.ListPatients)
	api.POST("/patients", s.authorize(authorization.ObjectPatient, authorization.ActionManage), s.CreatePatient)
	api.GET("/patients/:id", s.authorize(authorization.ObjectPatient, authorization.ActionView), s.GetPatientByID)
	api.PATCH("/patients/:id", s.authorize(authorization.ObjectPatient, authorization.ActionManage), s.UpdatePatient)
	api.DELETE("/patients/:id", s.authorize(authorization.ObjectPatient, authorization.ActionManage), s.DeletePatient)

	// -------- Employees --------
	api.GET("/employees", s.authorize(authorization.ObjectEmployee, authorization.ActionView), s.ListEmployees)
	api.POST("/employees", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.CreateEmployee)
	api.GET("/employees/:id", s.authorize(authorization.ObjectEmployee, authorization.ActionView), s.GetEmployeeByID)
	api.PATCH("/employees/:id", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.UpdateEmployee)
	api.POST("/employees/:id/deactivate", s.authorize(authorization.ObjectEmployee, authorization.ActionManage), s.DeactivateEmployee)

	// -------- Appointments --------
	api.GET("/appointments", s.authorize(authorization.ObjectAppointment, authorization.ActionView), s.ListAppointments)
	api.POST("/appointments", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.CreateAppointment)
	api.GET("/appointments/slots", s.authorize(authorization.ObjectAppointment, authorization.ActionView), s.ListSlots)
	api.GET("/appointments/availability", s.authorize(authorization.ObjectAppointment, authorization.ActionView), s.ListAvailableSlots)
	api.GET("/appointments/:id", s.authorize(authorization.ObjectAppointment, authorization.ActionView), s.GetAppointmentByID)
	api.PATCH("/appointments/:id", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.UpdateAppointment)
	api.POST("/appointments/:id/status", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.UpdateAppointmentStatus)
	api.POST("/appointments/:id/confirm", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.ConfirmAppointment)
	api.POST("/appointments/:id/complete", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.CompleteAppointment)
	api.POST("/appointments/:id/cancel", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.CancelAppointment)
	api.POST("/appointments/:id/reschedule", s.authorize(authorization.ObjectAppointment, authorization.ActionManage), s.RescheduleAppointment)
	api.POST("/appointments/:id/paid", s.authorize(authorization.ObjectPayment, authorization.ActionManage), s.MarkAppointmentPaid)

	// -------- Treatments --------
	api.GET("/treatments", s.authorize(authorization.ObjectTreatment, authorization.ActionView), s.ListTreatments)
	api.POST("/treatments", s.authorize(authorization.ObjectTreatment, authorization.ActionManage), s.CreateTreatment)
	api.GET("/treatments/pending", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.ListPendingTreatments)
	api.GET("/treatments/:id", s.authorize(authorization.ObjectTreatment, authorization.ActionView), s.GetTreatmentByID)
	api.PUT("/treatments/:id/budget", s.authorize(authorization.ObjectTreatment, authorization.ActionManage), s.UpdateTreatmentBudget)
	api.POST("/treatments/:id/finish", s.authorize(authorization.ObjectTreatment, authorization.ActionManage), s.FinishTreatment)
	api.GET("/treatments/:id/budget.pdf", s.authorize(authorization.ObjectTreatment, authorization.ActionView), s.DownloadBudgetPDF)

	// -------- Payments --------
	api.GET("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.ListPayments)
	api.POST("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionManage), s.RecordPayment)
	api.GET("/payments/:id", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.GetPaymentByID)
	api.GET("/payments/:id/receipt.pdf", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.DownloadReceiptPDF)

	// -------- Administration --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
	api.GET("/users", s.authorize(authorization.ObjectUser, authorization.ActionView), s.ListUsers)
	api.POST("/users", s.authorize(authorization.ObjectUser, authorization.ActionManage), s.CreateUser)
	api.PATCH("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionManage), s.UpdateUser)
}

func (s *Server) registerUIRoutes() {
	r := s.engine.Group("/")

	// ---- SPA entry points ----
	r.GET("/login", s.redirectIfLoggedIn(), serveIndex)

	app := r.Group("/", s.WebAuthRequired())
	{
		app.GET("/", serveIndex)
		app.GET("/empleados", serveIndex)
		app.GET("/pacientes", serveIndex)
		app.GET("/pacientes/:id", serveIndex)
		app.GET("/calendario", serveIndex)
		app.GET("/pagos", serveIndex)
		app.GET("/change-password", serveIndex)
	}
}

func (s *Server) registerFallback() {
	web := s.WebAuthRequired()

	s.engine.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/auth/") {
			AbortWithError(c, ErrNotFound)
			return
		}

		// static assets (vite)
		if fileExists(publicDir, path) {
			c.File(filepath.Join(publicDir, filepath.Clean(path)))
			return
		}

		// SPA renders its own not-found state
		web(c)
		if c.IsAborted() {
			return
		}
		serveIndexWithStatus(c, http.StatusNotFound)
	})
}

func serveIndex(c *gin.Context) {
	serveIndexWithStatus(c, http.StatusOK)
}

func serveIndexWithStatus(c *gin.Context, status int) {
	body, err := os.ReadFile(filepath.Join(publicDir, "index.html"))
	if err != nil {
		c.String(status, "")
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || strings.Contains(clean, "..") {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
