package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

// Authenticator resolves an access token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

// RequestRecorder records served requests.
type RequestRecorder interface {
	RecordRequest(route, method string, status int, d time.Duration)
}

type userUsecase interface {
	RegisterUser(ctx context.Context, args model.RegisterUserArgs) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, args model.ListUsersArgs) (*model.ListUsersResponse, error)
	AssignRole(ctx context.Context, admin model.Principal, id uuid.UUID, role model.Role) (*model.User, error)
	UpdateUserStatus(ctx context.Context, admin model.Principal, id uuid.UUID, state model.ActiveState) (*model.User, error)
	DeleteUser(ctx context.Context, admin model.Principal, id uuid.UUID) error
}

type authUsecase interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	ResetPassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error
	FederatedLoginURL(state string) (string, error)
	FederatedLogin(ctx context.Context, code string) (*model.LoginResponse, error)
}

type parcelUsecase interface {
	CreateParcel(ctx context.Context, sender model.Principal, args model.CreateParcelArgs) (*model.Parcel, error)
	AssignDeliveryMan(ctx context.Context, admin model.Principal, args model.AssignDeliveryManArgs) (*model.Parcel, error)
	UpdateDeliveryStatus(ctx context.Context, actor model.Principal, args model.UpdateDeliveryStatusArgs) (*model.Parcel, error)
	CancelParcel(ctx context.Context, actor model.Principal, args model.TransitionArgs) (*model.Parcel, error)
	ConfirmDelivery(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error)
	BlockParcel(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error)
	UnblockParcel(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error)
}

type parcelQuery interface {
	GetByID(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.ParcelView, error)
	GetByTrackingNumber(ctx context.Context, principal model.Principal, trackingNumber string) (*model.ParcelView, error)
	ListBySender(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error)
	ListByReceiver(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error)
	ListByDeliveryMan(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error)
	ListAll(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error)
}

// RouterArgs are the mandatory args to build the HTTP router.
type RouterArgs struct {
	Gate    Authenticator
	Users   userUsecase
	Auth    authUsecase
	Parcels parcelUsecase
	Query   parcelQuery
}

// RouterOptArgs are the optional arguments for building the router
type RouterOptArgs = func(*routerOptions)

type routerOptions struct {
	production        bool
	frontendURL       string
	recorder          RequestRecorder
	metricsHandler    http.Handler
	ratePerMinute     int
	authRatePerMinute int
	nowFunc           func() time.Time
}

// WithProduction hides error stacks and marks cookies Secure.
func WithProduction(production bool) RouterOptArgs {
	return func(o *routerOptions) {
		o.production = production
	}
}

// WithFrontendURL sets the base URL the federated login callback redirects to.
func WithFrontendURL(url string) RouterOptArgs {
	return func(o *routerOptions) {
		o.frontendURL = url
	}
}

// WithMetrics records requests on recorder and serves handler on /metrics.
func WithMetrics(recorder RequestRecorder, handler http.Handler) RouterOptArgs {
	return func(o *routerOptions) {
		o.recorder = recorder
		o.metricsHandler = handler
	}
}

// WithRateLimits sets the per-minute limits of the API (per user) and of the auth routes (per client address).
// Zero disables a limit.
func WithRateLimits(perMinute, authPerMinute int) RouterOptArgs {
	return func(o *routerOptions) {
		o.ratePerMinute = perMinute
		o.authRatePerMinute = authPerMinute
	}
}

// WithRouterNowFunc can be used to override the clock of the rate limiters. Useful for testing.
func WithRouterNowFunc(nowFunc func() time.Time) RouterOptArgs {
	return func(o *routerOptions) {
		o.nowFunc = nowFunc
	}
}

// NewRouter builds the HTTP API.
func NewRouter(args RouterArgs, optArgs ...RouterOptArgs) http.Handler {
	opts := &routerOptions{frontendURL: "http://localhost:5173", nowFunc: time.Now}
	for _, opt := range optArgs {
		opt(opts)
	}

	rs := responder{production: opts.production}
	dec := decoder{validate: newValidator()}
	apiLimit := newKeyedLimiter("api", opts.ratePerMinute, opts.nowFunc)
	authLimit := newKeyedLimiter("auth", opts.authRatePerMinute, opts.nowFunc)
	authenticated := rs.authenticate(args.Gate)

	users := &userHandler{responder: rs, decoder: dec, users: args.Users}
	auth := &authHandler{responder: rs, decoder: dec, auth: args.Auth, frontendURL: opts.frontendURL}
	parcels := &parcelHandler{responder: rs, decoder: dec, parcels: args.Parcels, query: args.Query}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logRequests)
	if opts.recorder != nil {
		r.Use(observe(opts.recorder))
	}
	r.Use(rs.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.writeError(w, r, model.NewError(model.ErrNotFound, "API NOT FOUND!"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		rs.ok(w, http.StatusOK, "OK", nil)
	})
	if opts.metricsHandler != nil {
		r.Handle("/metrics", opts.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.With(authLimit.middleware(rs, clientIP)).Post("/register", users.register)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, apiLimit.middleware(rs, principalOrIP))
				r.Get("/me", users.me)
				r.Group(func(r chi.Router) {
					r.Use(rs.requireRoles(model.RoleAdmin))
					r.Get("/all-users", users.list)
					r.Get("/{id}", users.get)
					r.Patch("/{id}/assign-role", users.assignRole)
					r.Patch("/{id}/status", users.updateStatus)
					r.Delete("/{id}", users.delete)
				})
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimit.middleware(rs, clientIP))
				r.Post("/login", auth.login)
				r.Post("/refresh-token", auth.refresh)
				r.Get("/google", auth.federatedRedirect)
				r.Get("/google/callback", auth.federatedCallback)
			})
			r.Post("/logout", auth.logout)
			r.With(authenticated, apiLimit.middleware(rs, principalOrIP)).Post("/reset-password", auth.resetPassword)
		})

		r.Route("/parcels", func(r chi.Router) {
			r.Use(authenticated, apiLimit.middleware(rs, principalOrIP))
			r.With(rs.requireRoles(model.RoleUser)).Post("/", parcels.create)
			r.With(rs.requireRoles(model.RoleUser)).Get("/me", parcels.listMine)
			r.With(rs.requireRoles(model.RoleUser)).Get("/incoming", parcels.listIncoming)
			r.With(rs.requireRoles(model.RoleDeliveryMan)).Get("/my-deliveries", parcels.listDeliveries)
			r.With(rs.requireRoles(model.RoleAdmin)).Get("/all", parcels.listAll)
			r.Get("/track/{trackingNumber}", parcels.track)
			r.With(rs.requireRoles(model.RoleUser, model.RoleAdmin, model.RoleDeliveryMan)).Get("/{id}", parcels.get)
			r.With(rs.requireRoles(model.RoleUser, model.RoleAdmin)).Patch("/{id}/cancel", parcels.cancel)
			r.With(rs.requireRoles(model.RoleAdmin)).Patch("/{id}/assign", parcels.assign)
			r.With(rs.requireRoles(model.RoleDeliveryMan, model.RoleAdmin)).Patch("/{id}/update-delivery-status", parcels.updateDeliveryStatus)
			r.With(rs.requireRoles(model.RoleAdmin)).Patch("/{id}/confirm-delivery", parcels.confirmDelivery)
			r.With(rs.requireRoles(model.RoleAdmin)).Patch("/{id}/block", parcels.block)
			r.With(rs.requireRoles(model.RoleAdmin)).Patch("/{id}/unblock", parcels.unblock)
		})
	})
	return r
}

// principal returns the caller. Routes using it sit behind authenticate.
func principal(r *http.Request) model.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, model.NewValidationError("Invalid id", model.ErrorSource{Path: param, Message: "must be a valid id"})
	}
	return id, nil
}
