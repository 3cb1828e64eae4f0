package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	auditdomain "github.com/smallbiznis/dentaldesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/auth/session"
	"github.com/smallbiznis/dentaldesk/internal/authorization"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/internal/ratelimit"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validToken = "valid-session"

type fakeAuthService struct {
	role       authdomain.Role
	loginErr   error
	loginCalls int
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	return &authdomain.User{ID: snowflake.ID(300), Email: req.Email}, nil
}

func (f *fakeAuthService) ListUsers(ctx context.Context) ([]authdomain.User, error) {
	return nil, nil
}

func (f *fakeAuthService) UpdateUser(ctx context.Context, id string, req authdomain.UpdateUserRequest) (*authdomain.User, error) {
	return &authdomain.User{ID: snowflake.ID(300)}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authdomain.LoginResult{
		Session:   &authdomain.SessionView{UserID: "200", Email: req.Email, Role: f.role},
		RawToken:  validToken,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Principal, error) {
	if rawToken != validToken {
		return nil, authdomain.ErrInvalidSession
	}
	return &authdomain.Principal{
		Session: &authdomain.Session{ID: snowflake.ID(400), UserID: snowflake.ID(200), ExpiresAt: time.Now().Add(time.Hour)},
		User:    &authdomain.User{ID: snowflake.ID(200), Email: "ana@clinica.test", Role: f.role, IsActive: true},
	}, nil
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, userID string, newPassword string) error {
	return nil
}

// fakeAuthz allows everything except the listed object:action pairs.
type fakeAuthz struct {
	denied map[string]bool
}

func (f *fakeAuthz) Authorize(ctx context.Context, userID string, role string, object string, action string) error {
	if f.denied[object+":"+action] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeAuditService struct {
	actions []string
	actors  []string
}

func (f *fakeAuditService) AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error {
	actorID, _ := obscontext.ActorFromContext(ctx)
	f.actions = append(f.actions, action)
	f.actors = append(f.actors, actorID)
	return nil
}

func (f *fakeAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fakePatientService struct {
	patients  []patientdomain.Patient
	createErr error
	lastList  patientdomain.ListPatientRequest
}

func (f *fakePatientService) Create(ctx context.Context, req patientdomain.CreatePatientRequest) (patientdomain.Patient, error) {
	if f.createErr != nil {
		return patientdomain.Patient{}, f.createErr
	}
	return patientdomain.Patient{ID: snowflake.ID(500), FirstName: req.FirstName, LastName: req.LastName}, nil
}

func (f *fakePatientService) GetByID(ctx context.Context, id string) (patientdomain.Patient, error) {
	for _, p := range f.patients {
		if p.ID.String() == id {
			return p, nil
		}
	}
	return patientdomain.Patient{}, patientdomain.ErrNotFound
}

func (f *fakePatientService) List(ctx context.Context, req patientdomain.ListPatientRequest) (patientdomain.ListPatientResponse, error) {
	f.lastList = req
	return patientdomain.ListPatientResponse{
		PageInfo: pagination.PageInfo{Page: 1, PageSize: 10, TotalItems: int64(len(f.patients)), TotalPages: 1},
		Patients: f.patients,
	}, nil
}

func (f *fakePatientService) Update(ctx context.Context, id string, req patientdomain.UpdatePatientRequest) (patientdomain.Patient, error) {
	return f.GetByID(ctx, id)
}

func (f *fakePatientService) Delete(ctx context.Context, id string) error {
	_, err := f.GetByID(ctx, id)
	return err
}

type testServer struct {
	*Server
	auth         *fakeAuthService
	authz        *fakeAuthz
	audit        *fakeAuditService
	patients     *fakePatientService
	appointments *fakeAppointmentService
	treatments   *fakeTreatmentService
	payments     *fakePaymentService
	pdf          *fakePDF
}

func newTestServer(t *testing.T, role authdomain.Role) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	cfg := config.Config{LoginRateLimit: config.LoginRateLimitConfig{Attempts: 2, Window: 600}}
	scheduling, err := config.NewStaticSchedulingConfigHolder(config.DefaultSchedulingConfig())
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))

	ts := &testServer{
		auth:         &fakeAuthService{role: role},
		authz:        &fakeAuthz{denied: map[string]bool{}},
		audit:        &fakeAuditService{},
		patients:     &fakePatientService{},
		appointments: newFakeAppointmentService(),
		treatments:   &fakeTreatmentService{},
		payments:     &fakePaymentService{},
		pdf:          &fakePDF{},
	}
	ts.Server = NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		Clock:          fakeClock,
		Scheduling:     scheduling,
		Authsvc:        ts.auth,
		Sessions:       session.NewManager(cfg, fakeClock),
		AuthzSvc:       ts.authz,
		AuditSvc:       ts.audit,
		PatientSvc:     ts.patients,
		AppointmentSvc: ts.appointments,
		TreatmentSvc:   ts.treatments,
		PaymentSvc:     ts.payments,
		PDF:            ts.pdf,
		LoginLimiter:   ratelimit.NewLoginLimiter(cfg, nil, zap.NewNop()),
	})
	return ts
}

func (ts *testServer) do(method, path string, body any, withSession bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	if withSession {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: validToken})
	}
	w := httptest.NewRecorder()
	ts.Engine().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
		field  string
	}{
		{"patient validation", patientdomain.ErrInvalidFirstName, http.StatusBadRequest, "validation_error", "first_name"},
		{"budget item path", &treatmentdomain.ItemError{Index: 0, SubIndex: 1, Field: "unit_price", Err: treatmentdomain.ErrInvalidItemUnitPrice}, http.StatusBadRequest, "validation_error", "items[0].subitems[1].unit_price"},
		{"overpayment", paymentdomain.ErrAmountExceedsPending, http.StatusBadRequest, "validation_error", "amount"},
		{"empty budget", treatmentdomain.ErrEmptyBudget, http.StatusBadRequest, "validation_error", "items"},
		{"slot taken", appointmentdomain.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable", ""},
		{"wrapped conflict", fmt.Errorf("finish: %w", treatmentdomain.ErrTreatmentFinished), http.StatusConflict, "treatment_finished", ""},
		{"settled", paymentdomain.ErrAccountSettled, http.StatusConflict, "account_settled", ""},
		{"not found", paymentdomain.ErrNotFound, http.StatusNotFound, "not_found", ""},
		{"bad credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"inactive user", authdomain.ErrUserInactive, http.StatusForbidden, "forbidden", ""},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.typ, payload.Type)
			if tt.field != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tt.field, payload.Errors[0].Field)
			}
		})
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(patientdomain.ErrInvalidEmail)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_email", code)

	typ, code = classifyErrorForLog(errors.New("pq: connection refused"))
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "internal_error", code)
}

func TestAPIRequiresSession(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	w := ts.do(http.MethodGet, "/api/patients", nil, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)
}

func TestBrowserNavigationRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/pacientes", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	ts.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fpacientes", w.Header().Get("Location"))
}

func TestLoginPageRedirectsSignedInUser(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: validToken})
	w := httptest.NewRecorder()
	ts.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestUnknownAPIRouteIsJSONNotFound(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	w := ts.do(http.MethodGet, "/api/does-not-exist", nil, true)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestForbiddenRole(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleDentist)
	ts.authz.denied[authorization.ObjectPatient+":"+authorization.ActionManage] = true

	w := ts.do(http.MethodPost, "/api/patients", map[string]any{"first_name": "Ana", "last_name": "López"}, true)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ts.audit.actions)
}

func TestCreatePatientAuditsWithActor(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodPost, "/api/patients", map[string]any{
		"first_name": "Ana",
		"last_name":  "López",
		"birth_date": "1990-04-12",
	}, true)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"patient.create"}, ts.audit.actions)
	assert.Equal(t, []string{"200"}, ts.audit.actors)
}

func TestCreatePatientRejectsBadBirthDate(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleReceptionist)

	w := ts.do(http.MethodPost, "/api/patients", map[string]any{
		"first_name": "Ana",
		"last_name":  "López",
		"birth_date": "12/04/1990",
	}, true)

	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "birth_date", payload.Errors[0].Field)
}

func TestListPatientsReturnsPageInfo(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleDentist)
	ts.patients.patients = []patientdomain.Patient{
		{ID: snowflake.ID(501), FirstName: "Ana", LastName: "López"},
	}

	w := ts.do(http.MethodGet, "/api/patients?q=lopez&page_size=5", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data     []map[string]any    `json:"data"`
		PageInfo pagination.PageInfo `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "501", resp.Data[0]["id"])
	assert.Equal(t, int64(1), resp.PageInfo.TotalItems)
	assert.Equal(t, "lopez", ts.patients.lastList.Query)
	assert.Equal(t, 5, ts.patients.lastList.PageSize)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)

	w := ts.do(http.MethodPost, "/auth/login", map[string]any{"email": "ana@clinica.test", "password": "secreto123"}, false)

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, validToken, cookies[0].Value)
	assert.Equal(t, []string{"user.login"}, ts.audit.actions)
	assert.Equal(t, []string{"200"}, ts.audit.actors)
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleAdmin)
	ts.auth.loginErr = authdomain.ErrInvalidCredentials

	body := map[string]any{"email": "ana@clinica.test", "password": "incorrecta"}
	for i := 0; i < 2; i++ {
		w := ts.do(http.MethodPost, "/auth/login", body, false)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := ts.do(http.MethodPost, "/auth/login", body, false)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 2, ts.auth.loginCalls)
	assert.Equal(t, []string{"user.login_failed", "user.login_failed"}, ts.audit.actions)
}

func TestMeReturnsSessionView(t *testing.T) {
	ts := newTestServer(t, authdomain.RoleDentist)

	w := ts.do(http.MethodGet, "/auth/me", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data authdomain.SessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "200", resp.Data.UserID)
	assert.Equal(t, authdomain.RoleDentist, resp.Data.Role)
	assert.Equal(t, "default", resp.Data.PasswordState)
}
