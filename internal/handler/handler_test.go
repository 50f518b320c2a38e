package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pensionflow/internal/auth"
	"pensionflow/internal/contribution"
	"pensionflow/internal/payment"
	"pensionflow/internal/registration"
	"pensionflow/internal/session"
	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	"pensionflow/pkg/cache"
	"pensionflow/pkg/config"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

const testSecret = "handler-test-secret"

type fixture struct {
	handler  http.Handler
	sessions *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw, err := verification.NewSimulated(verification.SimulatedConfig{}, logger.NewNop())
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: 1000, RateWindow: time.Minute},
		JWT:    config.JWTConfig{Secret: testSecret, Expiration: time.Hour},
		Auth:   config.AuthConfig{Username: "operator", Password: "s3cret!", Mobile: "9000000001"},
	}

	authSvc, err := auth.NewService(cfg.Auth, cfg.JWT, time.Minute, gw, logger.NewNop())
	require.NoError(t, err)

	pay := payment.Config{
		ConvenienceFee:     decimal.RequireFromString("5.90"),
		TaxSurcharge:       decimal.RequireFromString("1.06"),
		RedirectDelay:      time.Millisecond,
		UPIVerifyDelay:     time.Millisecond,
		IssuanceDelay:      10 * time.Millisecond,
		StatusAutoResolve:  20 * time.Millisecond,
		StatusRefreshDelay: 5 * time.Millisecond,
	}
	registry := session.NewRegistry(session.Config{
		Registration: registration.Config{
			LoaderFloor:        5 * time.Millisecond,
			ExistingCheckFloor: 5 * time.Millisecond,
			MobileOTPTimer:     time.Minute,
			Tier1Minimum:       decimal.NewFromInt(500),
			Tier2Minimum:       decimal.NewFromInt(1000),
			Payment:            pay,
		},
		Contribution: contribution.Config{MobileOTPTimer: time.Minute, Payment: pay},
		Gateway:      gw,
	}, logger.NewNop())
	t.Cleanup(registry.CloseAll)

	return &fixture{
		handler: NewRouter(Deps{
			Config:   cfg,
			Auth:     authSvc,
			Sessions: registry,
			Counter:  cache.NewMemoryCounter(),
			Logger:   logger.NewNop(),
		}),
		sessions: registry,
	}
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "MEMBER/1/operator",
		"role": "MEMBER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+token(t))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", nil, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var v session.View
	decodeBody(t, rec, &v)
	return v.ID
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"role": "MEMBER", "entity_code": "6543", "username": "operator", "password": "s3cret!", "captcha": "x7k2p",
	}, false)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var ch auth.Challenge
	decodeBody(t, rec, &ch)
	require.NotEmpty(t, ch.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/otp/resend", map[string]string{"challenge_id": ch.ID}, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/otp", map[string]string{"challenge_id": ch.ID, "code": "12"}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/otp", map[string]string{"challenge_id": ch.ID, "code": "482913"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok auth.TokenResponse
	decodeBody(t, rec, &tok)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	out := httptest.NewRecorder()
	f.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusCreated, out.Code)
}

func TestLogin_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "operator"}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "Please fill in all fields", body.Error)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "operator", "password": "nope", "captcha": "x",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/otp", map[string]string{"challenge_id": "missing", "code": "123456"}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"unexpected": "x"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions_RequireAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/sessions", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/schemes", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)
	base := "/api/v1/sessions/" + id

	rec := f.do(t, http.MethodGet, base, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var v session.View
	decodeBody(t, rec, &v)
	assert.Equal(t, session.KindDashboard, v.Kind)

	rec = f.do(t, http.MethodPost, base+"/registration", nil, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeBody(t, rec, &v)
	assert.Equal(t, session.KindRegistration, v.Kind)
	assert.Equal(t, "BASIC", v.Stage)

	rec = f.do(t, http.MethodPost, base+"/contribution", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{
		Action: "registration.set",
		Args:   ActionArgs{Field: "pan", Value: "abcde1234f"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Session session.View `json:"session"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ABCDE1234F", resp.Session.Record.PAN)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{
		Action: "registration.set",
		Args:   ActionArgs{Field: "favourite_colour", Value: "blue"},
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "registration.advance"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Error)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "payment.proceed"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, base+"/receipt", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "session.return_to_dashboard"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, session.KindDashboard, resp.Session.Kind)

	rec = f.do(t, http.MethodDelete, base, nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, base, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAction_Envelope(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.createSession(t)

	rec := f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "registration.teleport"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/actions", map[string]interface{}{"args": map[string]string{}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "contribution.advance"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/actions", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Actions []string `json:"actions"`
	}
	decodeBody(t, rec, &list)
	assert.Contains(t, list.Actions, "payment.pay_upi")
	assert.Contains(t, list.Actions, "registration.submit_kyc_otp")
}

func TestContributionFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.createSession(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, base+"/contribution", nil, true).Code)

	steps := []ActionRequest{
		{Action: "contribution.set", Args: ActionArgs{Field: "contribution_pran", Value: "110012341111"}},
		{Action: "contribution.set", Args: ActionArgs{Field: "contribution_dob", Value: "1980-01-01"}},
		{Action: "contribution.set", Args: ActionArgs{Field: "contribution_mobile", Value: "9123456789"}},
		{Action: "contribution.send_mobile_otp"},
		{Action: "contribution.verify_mobile_otp", Args: ActionArgs{Code: "445566"}},
		{Action: "contribution.set", Args: ActionArgs{Field: "contribution_consent", Value: "true"}},
		{Action: "contribution.advance"},
		{Action: "contribution.set", Args: ActionArgs{Field: "contribution_declared", Value: "true"}},
		{Action: "contribution.advance"},
		{Action: "payment.proceed"},
		{Action: "payment.select_mode", Args: ActionArgs{Mode: "upi"}},
		{Action: "payment.initiate"},
		{Action: "payment.confirm"},
		{Action: "payment.pay_upi", Args: ActionArgs{Handle: payment.UPISuccessHandle}},
	}
	for _, step := range steps {
		rec := f.do(t, http.MethodPost, base+"/actions", step, true)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", step.Action, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, base+"/receipt", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "BSE-NPS-Receipt-")
	assert.NotEmpty(t, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/actions", ActionRequest{Action: "session.another_contribution"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Session session.View `json:"session"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "BASIC", resp.Session.Stage)
	assert.NotEmpty(t, resp.Session.LastPaymentRef)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/catalog/pincodes/400001", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mumbai")

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/pincodes/999999", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"found":false`)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/pincodes/12", nil, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/ifsc/SBIN0001234", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/ifsc/SB", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/fund-managers", "/schemes", "/banks"} {
		rec = f.do(t, http.MethodGet, "/api/v1/catalog"+path, nil, true)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEvents_StreamsSessionEvents(t *testing.T) {
	f := newFixture(t)
	id := f.createSession(t)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/events"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token(t))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snapshot map[string]interface{}
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot["type"])

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/registration", nil, true).Code)

	for {
		var e workflow.Event
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == workflow.EventWizardStarted {
			assert.Equal(t, "REGISTRATION", e.Data["kind"])
			assert.Equal(t, id, e.Data["session_id"])
			break
		}
	}

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, true).Code)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
			break
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.Invalid("pan", "bad"), http.StatusUnprocessableEntity},
		{apperrors.Wrap(apperrors.ErrInvalidTransition, "x"), http.StatusConflict},
		{apperrors.ErrDialogOpen, http.StatusConflict},
		{apperrors.ErrReadOnlyField, http.StatusConflict},
		{apperrors.ErrMirroredField, http.StatusConflict},
		{apperrors.ErrTimeoutExceeded, http.StatusGatewayTimeout},
		{apperrors.ErrSessionNotFound, http.StatusNotFound},
		{apperrors.ErrUnknownField, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
