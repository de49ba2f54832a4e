package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/papertrade/perp-engine/internal/api"
	"github.com/papertrade/perp-engine/internal/config"
	"github.com/papertrade/perp-engine/internal/engine"
	"github.com/papertrade/perp-engine/internal/feed"
	"github.com/papertrade/perp-engine/internal/metrics"
	"github.com/papertrade/perp-engine/internal/model"
	"github.com/papertrade/perp-engine/internal/risk"
	"github.com/papertrade/perp-engine/internal/store"
	"github.com/papertrade/perp-engine/internal/symbol"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}
	sym, _ := symbol.Parse(cfg.Symbol) // validated by config.Load

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Snapshot store ---
	var st store.Store
	var cleanup []func()

	switch {
	case cfg.Database.URL != "":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool, sym.Name)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("database schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

	case cfg.Redis.URL != "":
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid redis url", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewRedisStore(rdb, sym.Name)
		slog.Info("connected to Redis")

	default:
		slog.Warn("no DATABASE_URL or REDIS_URL set, using in-memory store (state will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine ---
	limiter := risk.NewLimiter(cfg.MinOrderValue.Decimal, cfg.MaxPositionNotional.Decimal)
	eng := engine.New(engine.Config{
		Symbol:          sym.Name,
		Balance:         cfg.Balance.Decimal,
		FeeRate:         cfg.FeeRate.Decimal,
		MaintenanceRate: cfg.MaintenanceRate.Decimal,
		Limiter:         limiter,
	})

	// Restore a previous episode if one was persisted.
	if snap, err := st.LoadSnapshot(ctx); err == nil {
		if err := eng.ImportState(snap); err != nil {
			slog.Warn("snapshot restore rejected, starting fresh", "err", err)
		}
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		slog.Warn("snapshot load failed, starting fresh", "err", err)
	}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()
	eng.SetEventHandler(func(ev model.Event) {
		wsHub.Broadcast(api.MessageFromEvent(sym.Name, ev))
	})

	// --- Price feed ---
	var priceFeed feed.Feed
	if cfg.Feed.Mode == "sim" {
		seed := cfg.Feed.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		priceFeed = feed.NewSim(sym.Name, cfg.Feed.StartPrice.Decimal, cfg.Feed.Drift.Decimal, cfg.FeedInterval(), seed)
	} else {
		url := cfg.Feed.URL
		if url == "" {
			url = feed.DefaultBinanceURL
		}
		priceFeed = feed.NewBinance(url, sym)
	}

	go func() {
		if err := priceFeed.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("price feed stopped", "err", err)
		}
	}()

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		for tick := range priceFeed.Ticks() {
			eng.OnTick(tick)
		}
	}()

	// --- Periodic snapshots ---
	if interval := cfg.SnapshotInterval(); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := st.SaveSnapshot(ctx, eng.ExportState()); err != nil {
						slog.Warn("snapshot save failed", "err", err)
					}
				}
			}
		}()
	}

	// --- HTTP router ---
	apiSrv := api.NewServer(eng, wsHub)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"perp-engine"}`))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api/v1", apiSrv.Routes)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("perp-engine listening", "port", cfg.Server.Port, "symbol", sym.Name, "feed", cfg.Feed.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: stop the feed, drain in-flight ticks, persist a
	// final snapshot, then stop the HTTP server.
	<-ctx.Done()
	stop()
	slog.Info("shutting down perp-engine...")

	select {
	case <-feedDone:
	case <-time.After(5 * time.Second):
		slog.Warn("feed drain timed out")
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.SaveSnapshot(saveCtx, eng.ExportState()); err != nil {
		slog.Warn("final snapshot save failed", "err", err)
	}
	if err := srv.Shutdown(saveCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("perp-engine stopped")
}
