package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizgrid.org/internal/entitlement"
	"bizgrid.org/internal/entitlement/remote"
	"bizgrid.org/internal/httpapi"
	"bizgrid.org/internal/identity"
	"bizgrid.org/internal/kv"
	kvpg "bizgrid.org/internal/kv/pg"
	"bizgrid.org/internal/notification"
	"bizgrid.org/internal/obs"
	"bizgrid.org/internal/session"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("BIZGRID_COMMIT"))

	ctx := context.Background()

	// Durable key-value backend: PostgreSQL when a DSN is configured, an
	// in-process map otherwise (state then lives only as long as the process).
	var (
		store kv.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("BIZGRID_PG_DSN"); dsn != "" {
		pgStore, err := kvpg.Open(dsn)
		if err != nil {
			log.Fatalf("open kv store: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		store = kv.NewMemory()
		log.Println("BIZGRID_PG_DSN not set; durable state is in-memory only")
	}

	secret := os.Getenv("BIZGRID_AUTH_SECRET")
	if secret == "" {
		log.Fatal("BIZGRID_AUTH_SECRET is required")
	}
	authn, err := identity.NewLocal(secret)
	if err != nil {
		log.Fatalf("init authenticator: %v", err)
	}
	if demoPassword := os.Getenv("BIZGRID_DEMO_PASSWORD"); demoPassword != "" {
		if err := authn.Register(session.Identity{
			Username:    "demo",
			DisplayName: "Demo User",
			Role:        session.RoleAdmin,
			Tier:        "free",
		}, demoPassword); err != nil {
			log.Fatalf("register demo user: %v", err)
		}
	}

	sessions, err := session.New(ctx, store)
	if err != nil {
		log.Fatalf("init session store: %v", err)
	}

	var validator entitlement.Validator
	if baseURL := os.Getenv("BIZGRID_VALIDATOR_URL"); baseURL != "" {
		validator = remote.NewClient(baseURL)
	} else {
		validator = &entitlement.DevValidator{}
		log.Println("BIZGRID_VALIDATOR_URL not set; using the development validator")
	}
	entitlements, err := entitlement.NewCache(ctx, store, validator,
		entitlement.WithTierSource(sessions))
	if err != nil {
		log.Fatalf("init entitlement cache: %v", err)
	}

	notifications, err := notification.New(ctx, store,
		notification.WithAlerter(notification.LogAlerter{}))
	if err != nil {
		log.Fatalf("init notification store: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, entitlements, notifications, authn)

	addr := os.Getenv("BIZGRID_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting bizgrid-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
