package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pensionflow/internal/auth"
	"pensionflow/internal/middleware"
	"pensionflow/internal/session"
	"pensionflow/pkg/cache"
	"pensionflow/pkg/config"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

// authAttempts caps login and OTP calls per client, independent of the
// general rate limit.
const authAttempts = 10

// Deps are the services the router wires together.
type Deps struct {
	Config    *config.Config
	Auth      *auth.Service
	Sessions  *session.Registry
	Counter   cache.Counter
	Validator *validator.Validator
	Logger    logger.Logger
}

// NewRouter builds the HTTP API. CORS wraps the router so preflight
// requests are answered before route method matching.
func NewRouter(d Deps) http.Handler {
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}

	authHandler := NewAuthHandler(d.Auth, d.Validator, d.Logger)
	sessionHandler := NewSessionHandler(d.Sessions, d.Validator, d.Logger)
	catalogHandler := NewCatalogHandler()
	authMW := middleware.NewAuthMiddleware(d.Config.JWT.Secret)

	r := mux.NewRouter()
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(d.Logger).Log)
	r.Use(middleware.NewRateLimiter(d.Counter, d.Config.Server.RateLimit, d.Config.Server.RateWindow, d.Logger).Limit)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": d.Sessions.Len(),
			"time":     time.Now().UTC(),
		})
	}).Methods(http.MethodGet)

	public := r.PathPrefix("/api/v1/auth").Subrouter()
	public.Use(middleware.NewRateLimiter(d.Counter, authAttempts, time.Minute, d.Logger).Limit)
	public.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	public.HandleFunc("/otp", authHandler.VerifyOTP).Methods(http.MethodPost)
	public.HandleFunc("/otp/resend", authHandler.ResendOTP).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)

	api.HandleFunc("/actions", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"actions": ActionNames()})
	}).Methods(http.MethodGet)

	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", sessionHandler.Delete).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/registration", sessionHandler.StartRegistration).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/contribution", sessionHandler.StartContribution).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/actions", sessionHandler.Action).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/receipt", sessionHandler.Receipt).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/events", sessionHandler.Events).Methods(http.MethodGet)

	cat := api.PathPrefix("/catalog").Subrouter()
	cat.HandleFunc("/fund-managers", catalogHandler.FundManagers).Methods(http.MethodGet)
	cat.HandleFunc("/schemes", catalogHandler.Schemes).Methods(http.MethodGet)
	cat.HandleFunc("/banks", catalogHandler.NetBankingBanks).Methods(http.MethodGet)
	cat.HandleFunc("/ifsc/{code}", catalogHandler.IFSC).Methods(http.MethodGet)
	cat.HandleFunc("/pincodes/{pin}", catalogHandler.Pincode).Methods(http.MethodGet)

	return middleware.CORS(d.Config.Server.CORSOrigins)(r)
}
