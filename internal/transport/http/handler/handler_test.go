package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aurachatapp/aurachat-premium/internal/application/auth"
	"github.com/aurachatapp/aurachat-premium/internal/application/session"
	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestCode(ctx context.Context, email string) (*auth.CodeResult, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*auth.CodeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyCode(ctx context.Context, req auth.VerifyRequest) (*auth.VerifyResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Issue(ctx context.Context, email string, premiumHint bool) (*domain.Session, error) {
	args := m.Called(ctx, email, premiumHint)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Validate(ctx context.Context, bearer string) (*domain.Session, error) {
	args := m.Called(ctx, bearer)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) GetSession(ctx context.Context, bearer string) (*session.Info, error) {
	args := m.Called(ctx, bearer)
	if i, _ := args.Get(0).(*session.Info); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func newTestRouter(a auth.Service, s session.Service) http.Handler {
	r := chi.NewRouter()
	authH := NewAuthHandler(a, nil)
	r.Post("/auth/start", authH.Start)
	r.Post("/auth/send-code", authH.Start)
	r.Post("/auth/verify", authH.Verify)
	r.Get("/me", NewMeHandler(s, nil).Get)
	r.Get("/health", NewHealthHandler().Health)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func boolPtr(b bool) *bool { return &b }

// --- tests ---

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(new(mockAuthSvc), new(mockSessionSvc)), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestStart_Success(t *testing.T) {
	svc := new(mockAuthSvc)
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	svc.On("RequestCode", mock.Anything, "a@x.io").
		Return(&auth.CodeResult{Proof: "p.r.f", ExpiresAt: exp}, nil)

	for _, path := range []string{"/auth/start", "/auth/send-code"} {
		rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, path, `{"email":"a@x.io"}`)
		require.Equal(t, http.StatusOK, rr.Code, path)
		body := decode(t, rr)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "p.r.f", body["token"])
		assert.Equal(t, "p.r.f", body["pendingToken"])
		assert.Equal(t, "2026-03-01T12:10:00Z", body["expires_at"])
		assert.NotContains(t, body, "code")
	}
}

func TestStart_DebugCodeEchoed(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("RequestCode", mock.Anything, "a@x.io").
		Return(&auth.CodeResult{Proof: "p.r.f", DebugCode: "042137"}, nil)

	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/start", `{"email":"a@x.io"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "042137", decode(t, rr)["code"])
}

func TestStart_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"missing email", domain.NewValidationError(domain.ReasonEmailRequired), http.StatusBadRequest, "email_required"},
		{"bad email", domain.NewValidationError(domain.ReasonInvalidEmail), http.StatusBadRequest, "invalid_email"},
		{"mail down", fmt.Errorf("send: dial: %w", domain.ErrUpstream), http.StatusBadGateway, "upstream_error"},
		{"store down", fmt.Errorf("put: disk full: %w", domain.ErrInternal), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockAuthSvc)
			svc.On("RequestCode", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/start", `{"email":"whatever"}`)
			assert.Equal(t, tc.status, rr.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.reason), rr.Body.String())
			assert.NotContains(t, rr.Body.String(), "disk full")
		})
	}
}

func TestStart_MalformedBody(t *testing.T) {
	svc := new(mockAuthSvc)
	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/start", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid_request"}`, rr.Body.String())
	svc.AssertNotCalled(t, "RequestCode", mock.Anything, mock.Anything)
}

func TestStart_EmptyBodyReachesService(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("RequestCode", mock.Anything, "").Return(nil, domain.NewValidationError(domain.ReasonEmailRequired))

	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/start", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"email_required"}`, rr.Body.String())
}

func TestStart_OversizedBody(t *testing.T) {
	svc := new(mockAuthSvc)
	body := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `@x.io"}`
	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/start", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "RequestCode", mock.Anything, mock.Anything)
}

func TestVerify_Success(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyCode", mock.Anything, auth.VerifyRequest{Email: "a@x.io", Code: "123456", Proof: "p.r.f"}).
		Return(&auth.VerifyResult{Session: &domain.Session{Token: "sess"}, Premium: boolPtr(true)}, nil)

	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/verify",
		`{"email":"a@x.io","code":"123456","token":"p.r.f"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"token":"sess","session":"sess","premium":true}`, rr.Body.String())
}

func TestVerify_PendingTokenAlias(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyCode", mock.Anything, auth.VerifyRequest{Code: "123456", Proof: "alias"}).
		Return(&auth.VerifyResult{Session: &domain.Session{Token: "sess"}}, nil)

	rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/verify",
		`{"code":"123456","pendingToken":"alias"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"token":"sess","session":"sess","premium":null}`, rr.Body.String())
}

func TestVerify_Errors(t *testing.T) {
	cases := []struct {
		err    error
		reason string
	}{
		{domain.ErrNoPendingCode, "no_pending_code"},
		{domain.ErrExpired, "expired"},
		{domain.ErrBadCode, "bad_code"},
		{domain.ErrInvalidProof, "invalid_proof"},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			svc := new(mockAuthSvc)
			svc.On("VerifyCode", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("verify: %w", tc.err))

			rr := do(t, newTestRouter(svc, new(mockSessionSvc)), http.MethodPost, "/auth/verify", `{"code":"000000"}`)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.reason), rr.Body.String())
		})
	}
}

func TestMe_Success(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("GetSession", mock.Anything, "sess-token").Return(&session.Info{Email: "a@x.io", Premium: true}, nil)

	rr := do(t, newTestRouter(new(mockAuthSvc), sessions), http.MethodGet, "/me", "", "Authorization", "Bearer sess-token")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"email":"a@x.io","premium":true}`, rr.Body.String())
}

func TestMe_Unauthenticated(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("GetSession", mock.Anything, "").Return(nil, fmt.Errorf("missing: %w", domain.ErrUnauthenticated))

	rr := do(t, newTestRouter(new(mockAuthSvc), sessions), http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, rr.Body.String())
}

func TestMe_BillingDown(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("GetSession", mock.Anything, "tok").Return(nil, fmt.Errorf("stripe: %w", domain.ErrUpstream))

	rr := do(t, newTestRouter(new(mockAuthSvc), sessions), http.MethodGet, "/me", "", "Authorization", "Bearer tok")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"error":"upstream_error"}`, rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.NewValidationError(domain.ReasonInvalidEmail)))
	assert.Equal(t, http.StatusUnauthorized, statusFor(domain.ErrUnauthenticated))
}
