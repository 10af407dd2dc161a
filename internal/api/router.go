package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/erazemk/consigna/internal/auth"
	"github.com/erazemk/consigna/internal/imaging"
	"github.com/erazemk/consigna/internal/ledger"
	"github.com/erazemk/consigna/internal/metrics"
	"github.com/erazemk/consigna/internal/settlement"
)

// DefaultMaxUploadBytes caps photo uploads when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// Options configures the router.
type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Ledger
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Photos         imaging.Processor
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(database *sqlx.DB, opts Options) http.Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	engine := &settlement.Engine{DB: database, Metrics: opts.Metrics}
	book := &ledger.Ledger{DB: database, Metrics: opts.Metrics}

	authHandler := &AuthHandler{DB: database, JWTSecret: opts.JWTSecret, TokenTTL: opts.TokenTTL}
	healthHandler := &HealthHandler{DB: database}
	catalogHandler := &CatalogHandler{DB: database}
	partnersHandler := &PartnersHandler{DB: database, Ledger: book}
	itemsHandler := &ItemsHandler{DB: database, Photos: opts.Photos, MaxUploadBytes: opts.MaxUploadBytes}
	salesHandler := &SalesHandler{Engine: engine, Ledger: book}
	paymentsHandler := &PaymentsHandler{Ledger: book}

	r := chi.NewRouter()
	r.Use(RequestLogger(opts.Logger))
	r.Use(Recoverer)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(opts.JWTSecret, database))

			r.Get("/auth/me", authHandler.Me)
			r.Put("/auth/password", authHandler.ChangePassword)
			r.Post("/auth/logout", authHandler.Logout)

			// Readable by every role; handlers scope partners to their own rows.
			r.Get("/brands", catalogHandler.ListBrands)
			r.Get("/sizes", catalogHandler.ListSizes)
			r.Get("/partners/{id}", partnersHandler.Get)
			r.Get("/partners/{id}/pending", partnersHandler.Pending)
			r.Get("/partners/{id}/receipt", partnersHandler.Receipt)
			r.Get("/items", itemsHandler.List)
			r.Get("/items/{id}", itemsHandler.Get)
			r.Get("/items/{id}/photos/{photoID}", itemsHandler.GetPhoto)
			r.Get("/sales", salesHandler.List)
			r.Get("/payments", paymentsHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Post("/brands", catalogHandler.CreateBrand)
				r.Put("/brands/{id}", catalogHandler.UpdateBrand)
				r.Delete("/brands/{id}", catalogHandler.DeleteBrand)
				r.Post("/sizes", catalogHandler.CreateSize)
				r.Put("/sizes/{id}", catalogHandler.UpdateSize)
				r.Delete("/sizes/{id}", catalogHandler.DeleteSize)

				r.Get("/partners", partnersHandler.List)
				r.Post("/partners", partnersHandler.Create)
				r.Put("/partners/{id}", partnersHandler.Update)
				r.Delete("/partners/{id}", partnersHandler.Delete)

				r.Post("/items", itemsHandler.Create)
				r.Put("/items/{id}", itemsHandler.Update)
				r.Delete("/items/{id}", itemsHandler.Delete)
				r.Get("/items/{id}/can-delete", itemsHandler.CanDelete)
				r.Post("/items/{id}/photos", itemsHandler.UploadPhoto)
				r.Delete("/items/{id}/photos/{photoID}", itemsHandler.DeletePhoto)

				r.Post("/sales", salesHandler.Settle)
				r.Post("/sales/batch", salesHandler.SettleBatch)
				r.Delete("/sales/{id}", salesHandler.Reverse)

				r.Post("/payments/mark-paid", paymentsHandler.MarkPaid)
				r.Put("/payments/{id}/notes", paymentsHandler.UpdateNotes)
			})
		})
	})

	return r
}
