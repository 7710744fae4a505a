package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbroggi/parcelhub/internal/actors/argon2"
	"github.com/rbroggi/parcelhub/internal/actors/jwt"
	"github.com/rbroggi/parcelhub/internal/actors/memory"
	"github.com/rbroggi/parcelhub/internal/actors/metrics"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Admin#123"
	password      = "Secret#1"
)

var (
	accessSecret  = []byte("access-secret")
	refreshSecret = []byte("refresh-secret")
)

type response struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Data         json.RawMessage     `json:"data"`
	Meta         *model.PageMeta     `json:"meta"`
	ErrorSources []model.ErrorSource `json:"errorSources"`
	Stack        string              `json:"stack"`
}

type harness struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
}

func newHarness(t *testing.T, optArgs ...RouterOptArgs) *harness {
	t.Helper()
	store := memory.NewStore()
	hasher := argon2.NewHasher(argon2.WithParams(&argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}))
	tokens := jwt.NewTokenService()
	users := usecase.NewUserService(usecase.UserServiceArgs{Repository: store, Hasher: hasher})
	_, created, err := users.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	handler := NewRouter(RouterArgs{
		Gate: usecase.NewGate(usecase.GateArgs{Tokens: tokens, Users: store, AccessSecret: accessSecret}),
		Users: users,
		Auth: usecase.NewAuthService(usecase.AuthServiceArgs{
			Repository:    store,
			Hasher:        hasher,
			Tokens:        tokens,
			AccessSecret:  accessSecret,
			AccessTTL:     time.Hour,
			RefreshSecret: refreshSecret,
			RefreshTTL:    24 * time.Hour,
		}),
		Parcels: usecase.NewParcelService(usecase.ParcelServiceArgs{Parcels: store, Users: store}),
		Query:   usecase.NewParcelQuery(usecase.ParcelQueryArgs{Parcels: store, Users: store}),
	}, optArgs...)
	return &harness{t: t, handler: handler, store: store}
}

// do serves a request. A token starting with "cookie:" is sent as the access token cookie.
func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var res response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func (h *harness) register(name, email, role string) uuid.UUID {
	h.t.Helper()
	rec, res := h.do(http.MethodPost, "/api/v1/user/register", "", map[string]string{
		"name": name, "email": email, "password": password, "role": role,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, res.Message)
	var user model.User
	require.NoError(h.t, json.Unmarshal(res.Data, &user))
	return user.ID
}

func (h *harness) login(email, pw string) string {
	h.t.Helper()
	rec, res := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": pw})
	require.Equal(h.t, http.StatusOK, rec.Code, res.Message)
	var data loginData
	require.NoError(h.t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(h.t, data.AccessToken)
	return data.AccessToken
}

func decodeParcel(t *testing.T, res response) model.ParcelView {
	t.Helper()
	var p model.ParcelView
	require.NoError(t, json.Unmarshal(res.Data, &p))
	return p
}

func TestRouter_ParcelLifecycle(t *testing.T) {
	h := newHarness(t)
	h.register("Alice Sender", "alice@example.com", "USER")
	bobID := h.register("Bob Recipient", "bob@example.com", "USER")
	dmID := h.register("Dan Courier", "dan@example.com", "DELIVERY_MAN")
	h.register("Eve Stranger", "eve@example.com", "USER")

	alice := h.login("alice@example.com", password)
	bob := h.login("bob@example.com", password)
	dan := h.login("dan@example.com", password)
	eve := h.login("eve@example.com", password)
	admin := h.login(adminEmail, adminPassword)

	rec, res := h.do(http.MethodPost, "/api/v1/parcels/", alice, map[string]any{
		"recipient": map[string]string{"userId": bobID.String()},
		"weight":    2.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, res.Message)
	created := decodeParcel(t, res)
	assert.Equal(t, model.StatusPending, created.CurrentStatus)
	assert.True(t, usecase.IsTrackingNumber(created.TrackingNumber))
	assert.Equal(t, "Bob Recipient", created.Recipient.Name)
	assert.Equal(t, "Phone not provided", created.Recipient.Phone)
	parcelPath := "/api/v1/parcels/" + created.ID.String()

	rec, res = h.do(http.MethodGet, "/api/v1/parcels/incoming", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, res.Meta)
	assert.Equal(t, int64(1), res.Meta.Total)

	rec, _ = h.do(http.MethodGet, parcelPath, eve, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodPatch, parcelPath+"/update-delivery-status", dan, map[string]string{"status": "IN_TRANSIT"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "not yet assigned")

	rec, _ = h.do(http.MethodPatch, parcelPath+"/assign", alice, map[string]string{"deliveryManId": dmID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only admins assign")

	rec, res = h.do(http.MethodPatch, parcelPath+"/assign", admin, map[string]string{"deliveryManId": dmID.String()})
	require.Equal(t, http.StatusOK, rec.Code, res.Message)
	assert.Equal(t, model.StatusPickedUp, decodeParcel(t, res).CurrentStatus)

	rec, res = h.do(http.MethodPatch, parcelPath+"/cancel", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Parcel cannot be cancelled as it is already in transit", res.Message)

	rec, res = h.do(http.MethodPatch, parcelPath+"/update-delivery-status", dan, map[string]string{"status": "IN_TRANSIT"})
	require.Equal(t, http.StatusOK, rec.Code, res.Message)
	rec, res = h.do(http.MethodPatch, parcelPath+"/update-delivery-status", dan, map[string]string{"status": "PENDING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, res.Message)
	rec, res = h.do(http.MethodPatch, parcelPath+"/update-delivery-status", dan, map[string]string{"status": "DELIVERED", "note": "left at the door"})
	require.Equal(t, http.StatusOK, rec.Code, res.Message)

	rec, res = h.do(http.MethodGet, "/api/v1/parcels/my-deliveries", dan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), res.Meta.Total)

	rec, res = h.do(http.MethodGet, parcelPath, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decodeParcel(t, res)
	assert.Equal(t, model.StatusDelivered, final.CurrentStatus)
	require.Len(t, final.StatusHistory, 4)
	assert.Equal(t, "left at the door", final.StatusHistory[3].Note)
	require.NotNil(t, final.DeliveryManInfo)
	assert.Equal(t, "Dan Courier", final.DeliveryManInfo.Name)

	rec, res = h.do(http.MethodGet, "/api/v1/parcels/track/"+created.TrackingNumber, bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeParcel(t, res).ID)

	rec, _ = h.do(http.MethodGet, "/api/v1/parcels/all?status=DELIVERED", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodGet, "/api/v1/parcels/all", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_BlockedParcel(t *testing.T) {
	h := newHarness(t)
	h.register("Alice Sender", "alice@example.com", "USER")
	alice := h.login("alice@example.com", password)
	admin := h.login(adminEmail, adminPassword)

	rec, res := h.do(http.MethodPost, "/api/v1/parcels/", alice, map[string]any{
		"recipient": map[string]string{"name": "Walk In", "phone": "+8801700000000", "address": "1 Main Street"},
		"weight":    1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, res.Message)
	path := "/api/v1/parcels/" + decodeParcel(t, res).ID.String()

	rec, _ = h.do(http.MethodPatch, path+"/block", admin, map[string]string{"note": "fraud check"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodPatch, path+"/cancel", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(http.MethodPatch, path+"/unblock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, res = h.do(http.MethodPatch, path+"/cancel", alice, map[string]string{"note": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, res.Message)
	p := decodeParcel(t, res)
	assert.Equal(t, model.StatusCancelled, p.CurrentStatus)
	assert.Len(t, p.StatusHistory, 4)
}

func TestRouter_Validation(t *testing.T) {
	h := newHarness(t)
	h.register("Alice Sender", "alice@example.com", "USER")
	alice := h.login("alice@example.com", password)
	admin := h.login(adminEmail, adminPassword)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		body           any
		expectedStatus int
		expectedPaths  []string
	}{
		{
			name:   "weak password",
			method: http.MethodPost, path: "/api/v1/user/register",
			body:           map[string]string{"name": "Weak", "email": "weak@example.com", "password": "password"},
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"password"},
		},
		{
			name:   "duplicate email",
			method: http.MethodPost, path: "/api/v1/user/register",
			body:           map[string]string{"name": "Alice Again", "email": "ALICE@example.com", "password": password},
			expectedStatus: http.StatusConflict,
		},
		{
			name:   "self registered admin",
			method: http.MethodPost, path: "/api/v1/user/register",
			body:           map[string]string{"name": "Mallory", "email": "mallory@example.com", "password": password, "role": "ADMIN"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "incomplete recipient",
			method: http.MethodPost, path: "/api/v1/parcels/", token: alice,
			body:           map[string]any{"recipient": map[string]string{"name": "Bob"}, "weight": 1},
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"recipient.phone", "recipient.address"},
		},
		{
			name:   "bad recipient phone and weight",
			method: http.MethodPost, path: "/api/v1/parcels/", token: alice,
			body:           map[string]any{"recipient": map[string]string{"phone": "12"}, "weight": -1},
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"recipient.phone", "weight"},
		},
		{
			name:   "malformed parcel id",
			method: http.MethodGet, path: "/api/v1/parcels/not-a-uuid", token: alice,
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"id"},
		},
		{
			name:   "malformed tracking number",
			method: http.MethodGet, path: "/api/v1/parcels/track/ABC", token: alice,
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"trackingNumber"},
		},
		{
			name:   "unknown parcel",
			method: http.MethodGet, path: "/api/v1/parcels/" + uuid.NewString(), token: alice,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "bad status filter",
			method: http.MethodGet, path: "/api/v1/parcels/me?status=LOST", token: alice,
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"status"},
		},
		{
			name:   "malformed delivery man id",
			method: http.MethodPatch, path: "/api/v1/parcels/" + uuid.NewString() + "/assign", token: admin,
			body:           map[string]string{"deliveryManId": "dan"},
			expectedStatus: http.StatusBadRequest,
			expectedPaths:  []string{"deliveryManId"},
		},
		{
			name:   "unknown route",
			method: http.MethodGet, path: "/api/v1/nope",
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec, res := h.do(test.method, test.path, test.token, test.body)
			require.Equal(t, test.expectedStatus, rec.Code, res.Message)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.ErrorSources)
			var paths []string
			for _, s := range res.ErrorSources {
				if s.Path != "" {
					paths = append(paths, s.Path)
				}
			}
			for _, p := range test.expectedPaths {
				assert.Contains(t, paths, p)
			}
		})
	}
}

func TestRouter_Authentication(t *testing.T) {
	h := newHarness(t)
	bobID := h.register("Bob User", "bob@example.com", "USER")
	bob := h.login("bob@example.com", password)
	admin := h.login(adminEmail, adminPassword)

	rec, _ := h.do(http.MethodGet, "/api/v1/user/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/v1/user/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	req.Header.Set("Authorization", bob)
	bare := httptest.NewRecorder()
	h.handler.ServeHTTP(bare, req)
	assert.Equal(t, http.StatusOK, bare.Code, "bare tokens are accepted")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: bob})
	cookie := httptest.NewRecorder()
	h.handler.ServeHTTP(cookie, req)
	assert.Equal(t, http.StatusOK, cookie.Code, "cookie tokens are accepted")

	rec, _ = h.do(http.MethodGet, "/api/v1/user/all-users", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, res := h.do(http.MethodGet, "/api/v1/user/all-users?role=USER", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), res.Meta.Total)

	rec, _ = h.do(http.MethodPatch, "/api/v1/user/"+bobID.String()+"/status", admin, map[string]string{"isActive": "BLOCKED"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodGet, "/api/v1/user/me", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "blocked users are rejected with a valid token")

	rec, _ = h.do(http.MethodDelete, "/api/v1/user/"+bobID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodGet, "/api/v1/user/me", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deleted users are unauthenticated")
}

func TestRouter_SessionCookies(t *testing.T) {
	h := newHarness(t, WithProduction(true))
	h.register("Bob User", "bob@example.com", "USER")

	rec, _ := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "bob@example.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, accessTokenCookie)
	require.Contains(t, cookies, refreshTokenCookie)
	assert.True(t, cookies[accessTokenCookie].HttpOnly)
	assert.True(t, cookies[accessTokenCookie].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[accessTokenCookie].SameSite)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	req.AddCookie(cookies[refreshTokenCookie])
	refresh := httptest.NewRecorder()
	h.handler.ServeHTTP(refresh, req)
	require.Equal(t, http.StatusOK, refresh.Code)

	rec, _ = h.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": cookies[accessTokenCookie].Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens cannot refresh")

	rec, _ = h.do(http.MethodPost, "/api/v1/auth/reset-password", cookies[accessTokenCookie].Value, map[string]string{
		"oldPassword": password, "newPassword": "Changed#2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	h.login("bob@example.com", "Changed#2")

	rec, _ = h.do(http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}

	rec, _ = h.do(http.MethodGet, "/api/v1/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "federated login is not configured")
}

func TestRouter_RateLimit(t *testing.T) {
	h := newHarness(t, WithRateLimits(0, 2))
	for i := 0; i < 2; i++ {
		rec, _ := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": password})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, res := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": password})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.False(t, res.Success)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	h := newHarness(t, WithMetrics(collector, metrics.Handler(reg)))

	rec, _ := h.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `parcelhub_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestResponder_Translate(t *testing.T) {
	tests := []struct {
		name           string
		production     bool
		err            error
		expectedStatus int
		expectedStack  bool
	}{
		{name: "unexpected in development", err: errors.New("db down"), expectedStatus: http.StatusInternalServerError, expectedStack: true},
		{name: "unexpected in production", production: true, err: errors.New("db down"), expectedStatus: http.StatusInternalServerError},
		{name: "wrapped not found", err: wrap(model.NewError(model.ErrNotFound, "Parcel not found")), expectedStatus: http.StatusNotFound, expectedStack: true},
		{name: "illegal transition", production: true, err: model.NewError(model.ErrIllegalTransition, "nope"), expectedStatus: http.StatusBadRequest},
		{name: "conflict", err: model.NewError(model.ErrConflict, "taken"), expectedStatus: http.StatusConflict, expectedStack: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status, body := responder{production: test.production}.translate(test.err)
			assert.Equal(t, test.expectedStatus, status)
			assert.Equal(t, test.expectedStack, body.Stack != "")
			assert.NotEmpty(t, body.ErrorSources)
			if status == http.StatusInternalServerError {
				assert.Equal(t, unexpectedMessage, body.Message)
			}
		})
	}
}

func wrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
