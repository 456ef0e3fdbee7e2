package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
	"loanforge.org/internal/notify"
	"loanforge.org/internal/obs"
	"loanforge.org/internal/rbac"
	"loanforge.org/internal/stream"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries every collaborator of the HTTP layer.
type Deps struct {
	Ready         ReadyProbe
	Version       string
	Verifier      *auth.Verifier
	Revocations   *auth.RevocationList
	Resolver      auth.Resolver
	Loans         *loan.Service
	RBAC          *rbac.Engine
	Stream        *stream.Stream
	Notifier      *notify.Dispatcher
	RevocationTTL time.Duration
}

// API — HTTP слой.
type API struct {
	mux           *http.ServeMux
	readyProbe    ReadyProbe
	version       string
	verifier      *auth.Verifier
	revocations   *auth.RevocationList
	resolver      auth.Resolver
	loans         *loan.Service
	rbac          *rbac.Engine
	stream        *stream.Stream
	notifier      *notify.Dispatcher
	revocationTTL time.Duration
}

func New(d Deps) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    d.Ready,
		version:       d.Version,
		verifier:      d.Verifier,
		revocations:   d.Revocations,
		resolver:      d.Resolver,
		loans:         d.Loans,
		rbac:          d.RBAC,
		stream:        d.Stream,
		notifier:      d.Notifier,
		revocationTTL: d.RevocationTTL,
	}
	if a.revocationTTL <= 0 {
		a.revocationTTL = 15 * time.Minute
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth surface: issuance is delegated, logout revokes
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// loan workflow
	a.mux.HandleFunc("/v1/loans", a.handleLoansCollection)
	a.mux.HandleFunc("/v1/loans/", a.handleLoanResource)
	a.mux.HandleFunc("/v1/menus/", a.handleMenuCategory)
	a.mux.HandleFunc("/v1/stream/loans", a.StreamLoans)

	// корень отвечает сводкой, всё прочее — 404
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
			return
		}
		writeData(w, http.StatusOK, "loanforge-api", map[string]string{"version": a.version})
	})

	return a
}

// Handler возвращает http.Handler для сервера (без доп. аргументов).
func (a *API) Handler() http.Handler {
	// метрики снаружи, аутентификация внутри
	return obs.Instrument(a.withAuth(a.mux))
}
