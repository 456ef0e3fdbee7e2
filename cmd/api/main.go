package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/config"
	"loanforge.org/internal/httpapi"
	"loanforge.org/internal/loan"
	"loanforge.org/internal/notify"
	"loanforge.org/internal/obs"
	"loanforge.org/internal/rbac"
	"loanforge.org/internal/store/pg"
	"loanforge.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("LOANFORGE_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	revocations := auth.NewRevocationList()
	defer revocations.Close()

	// Хранилище: Postgres при заданном DSN, иначе in-memory (dev).
	var (
		db       *sql.DB
		store    loan.Store
		resolver auth.Resolver
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		db = pgStore.DB()
		store = pgStore
		resolver = pgStore
	} else {
		log.Println("no database DSN configured, using in-memory store")
		store = loan.NewInMemory()
		static := auth.NewStaticResolver()
		static.Put(auth.NewPrincipal("dev-marketing", []string{rbac.RoleMarketing}, true))
		static.Put(auth.NewPrincipal("dev-manager", []string{rbac.RoleBranchManager}, true))
		static.Put(auth.NewPrincipal("dev-backoffice", []string{rbac.RoleBackOffice}, true))
		static.Put(auth.NewPrincipal("dev-admin", []string{rbac.RoleAdmin}, true))
		resolver = static
	}

	engine := rbac.NewEngine()
	loans, err := loan.NewService(store, engine)
	if err != nil {
		log.Fatalf("loan service: %v", err)
	}

	events := stream.New()
	notifier := notify.NewDispatcher()
	notifier.Register(notify.LogChannel{})
	if url := os.Getenv("LOANFORGE_NOTIFY_WEBHOOK"); url != "" {
		notifier.Register(notify.NewWebhookChannel(url))
	}

	api := httpapi.New(httpapi.Deps{
		Ready:         httpapi.ReadyProbe{DB: db},
		Version:       version,
		Verifier:      verifier,
		Revocations:   revocations,
		Resolver:      resolver,
		Loans:         loans,
		RBAC:          engine,
		Stream:        events,
		Notifier:      notifier,
		RevocationTTL: cfg.Auth.RevocationTTL,
	})

	handler := api.Handler()
	handler = httpapi.RateLimit(handler, cfg.Limits.RateBurst, cfg.Limits.RatePerSecond)
	handler = httpapi.MaxBodyBytes(handler, cfg.Limits.MaxBodyBytes)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting loanforge-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
