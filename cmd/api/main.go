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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"signon.org/internal/event"
	"signon.org/internal/federation"
	"signon.org/internal/httpapi"
	"signon.org/internal/identity"
	"signon.org/internal/obs"
	"signon.org/internal/token"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SIGNON_BUILD_COMMIT"))

	secret := os.Getenv("SIGNON_AUTH_SECRET")
	if secret == "" {
		log.Fatal("SIGNON_AUTH_SECRET is required")
	}

	tokenOpts := []token.Option{}
	if ttl := os.Getenv("SIGNON_SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			log.Fatalf("parse SIGNON_SESSION_TTL: %v", err)
		}
		tokenOpts = append(tokenOpts, token.WithSessionTTL(d))
	}
	issuer, err := token.NewIssuer(secret, tokenOpts...)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	// Credential store: Postgres when a DSN is set, in-memory otherwise
	// (local development only; nothing survives a restart).
	var (
		db    *sql.DB
		store identity.Store
	)
	if dsn := os.Getenv("SIGNON_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = identity.NewPGStore(db)
	} else {
		log.Print("SIGNON_PG_DSN not set, using in-memory identity store")
		store = identity.NewInMemory()
	}

	svcOpts := []identity.ServiceOption{
		identity.WithMetrics(obs.NewAuthMetrics(prometheus.DefaultRegisterer)),
	}

	// Redis backs both the lifecycle event channel and the federated
	// login state store.
	var states *federation.StateStore
	if addr := os.Getenv("SIGNON_REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("SIGNON_REDIS_PASSWORD"),
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		svcOpts = append(svcOpts, identity.WithPublisher(event.NewRedisPublisher(rdb)))

		stateTTL := 10 * time.Minute
		if raw := os.Getenv("SIGNON_STATE_TTL"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				log.Fatalf("parse SIGNON_STATE_TTL: %v", err)
			}
			stateTTL = d
		}
		states = federation.NewStateStore(rdb, stateTTL)
	} else {
		log.Print("SIGNON_REDIS_ADDR not set, lifecycle events and federated login disabled")
	}

	if cfg, ok := providerConfig("SIGNON_GOOGLE"); ok {
		svcOpts = append(svcOpts, identity.WithProvider(federation.NewGoogle(cfg)))
	}
	if cfg, ok := providerConfig("SIGNON_GITHUB"); ok {
		svcOpts = append(svcOpts, identity.WithProvider(federation.NewGitHub(cfg)))
	}

	svc := identity.NewService(store, issuer, svcOpts...)
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, states)

	addr := os.Getenv("SIGNON_ADDR")
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

	log.Printf("Starting signon-api %s on %s", version, srv.Addr)

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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func providerConfig(prefix string) (federation.Config, bool) {
	cfg := federation.Config{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		RedirectURL:  os.Getenv(prefix + "_REDIRECT_URL"),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return federation.Config{}, false
	}
	return cfg, true
}
