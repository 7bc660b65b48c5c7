package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/jobelix-dev/quotagate/internal/audit"
	"github.com/jobelix-dev/quotagate/internal/auth"
	"github.com/jobelix-dev/quotagate/internal/config"
	"github.com/jobelix-dev/quotagate/internal/gateway"
	"github.com/jobelix-dev/quotagate/internal/identity"
	"github.com/jobelix-dev/quotagate/internal/obs"
	"github.com/jobelix-dev/quotagate/internal/proxy"
	"github.com/jobelix-dev/quotagate/internal/ratelimit"
	"github.com/jobelix-dev/quotagate/internal/ratelimit/memory"
	"github.com/jobelix-dev/quotagate/internal/ratelimit/redisstore"
	"github.com/jobelix-dev/quotagate/internal/routing"
)

func main() {
	cfgPath := "./config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)

	// counter store: process-local by default, Redis when counts must be
	// shared across instances
	var store ratelimit.Limiter
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping: %v", err)
		}
		cancel()
		store = redisstore.New(client, cfg.Redis.Prefix)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis counter store")
	} else {
		store = memory.New(cfg.Limits.SweepInterval())
	}
	defer func() { _ = store.Close() }()

	quota := ratelimit.NewQuota(store)
	hasher := identity.NewHasher(cfg.Identity.Salt)

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(&lumberjack.Logger{
			Filename:   cfg.Audit.Path,
			MaxSize:    cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
		}, cfg.Audit.Buffer)
		defer recorder.Close()
	}

	router := routing.New()
	for _, rc := range cfg.Routes {
		up, err := url.Parse(rc.Upstream.URL)
		if err != nil {
			log.Fatalf("route %q: upstream url: %v", rc.ID, err)
		}
		methods := make(map[string]struct{}, len(rc.Match.Methods))
		for _, m := range rc.Match.Methods {
			methods[strings.ToUpper(m)] = struct{}{}
		}
		rt := &routing.Route{
			ID:      rc.ID,
			Methods: methods,
			Prefix:  rc.Match.PathPrefix,
			UpURL:   up,
			Timeout: time.Duration(rc.Upstream.TimeoutMS) * time.Millisecond,
		}
		if q := rc.Quota; q != nil {
			rt.Quota = &ratelimit.QuotaPolicy{
				Endpoint:     q.Endpoint,
				HourlyLimit:  q.HourlyLimit,
				HourlyWindow: q.HourlyWindow(),
				DailyLimit:   q.DailyLimit,
				DailyWindow:  q.DailyWindow(),
				Message:      q.Message,
			}
		}
		router.Add(rt)
	}

	pairs := map[string]string{} // secret -> keyID
	for _, k := range cfg.Auth.Keys {
		if k.Secret != "" && k.ID != "" {
			pairs[k.Secret] = k.ID
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, pairs)

	// ops endpoints bypass everything; configured asset paths bypass only the
	// flood limiter and still get routed
	opsPaths := []string{"/health", "/version", cfg.Observability.PrometheusPath}
	skipOps := gateway.SkipPaths(opsPaths, nil)
	skipLimiter := gateway.SkipPaths(
		append(opsPaths, cfg.Limits.SkipPaths...),
		cfg.Limits.SkipPrefixes,
	)
	skipSet := map[string]struct{}{}
	for _, p := range opsPaths {
		skipSet[p] = struct{}{}
	}

	globalPolicy := ratelimit.Policy{
		Window: cfg.Limits.Global.Window(),
		Max:    cfg.Limits.Global.RequestsPerWindow,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v0.1.0"))
	})
	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", proxy.Handler(proxy.NewHTTPTransport()))

	handler := gateway.Chain(
		mux,
		obs.Logger(logger),
		gateway.BodyLimit(cfg.Server.MaxBody()),
		gateway.GlobalRateLimit(store, globalPolicy, skipLimiter,
			func() { metrics.RateLimited.WithLabelValues("global", "").Inc() },
			func() { metrics.LimiterErrors.WithLabelValues("global", "").Inc() },
		),
		gateway.RouteMatcher(router, skipOps),
		metrics.Middleware(skipOps),
		authStore.Middleware(skipSet),
		gateway.EndpointQuota(quota, hasher, recorder,
			func(ep string) { metrics.RateLimited.WithLabelValues("quota", ep).Inc() },
			func(ep string) { metrics.LimiterErrors.WithLabelValues("quota", ep).Inc() },
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}
