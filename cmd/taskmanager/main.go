package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/taskmanager-auth/internal/audit"
	"github.com/xela07ax/taskmanager-auth/internal/console/handler"
	"github.com/xela07ax/taskmanager-auth/internal/console/server"
	"github.com/xela07ax/taskmanager-auth/internal/console/service"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"github.com/xela07ax/taskmanager-auth/internal/infra/auth"
	"github.com/xela07ax/taskmanager-auth/internal/metrics"
	"github.com/xela07ax/taskmanager-auth/internal/policy"
	"github.com/xela07ax/taskmanager-auth/internal/repository/cache"
	"github.com/xela07ax/taskmanager-auth/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация. Без секрета подписи не стартуем вообще.
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Секрет проверяется здесь, а не на первом запросе
	codec, err := auth.NewTokenCodec(cfg.Auth.SigningSecret, cfg.Auth.TokenTTL, auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		logger.Fatal("invalid token configuration", zap.Error(err))
	}

	// Контекст для управления жизненным циклом ресурсов
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	pool, err := postgres.NewPool(appCtx, cfg.Database, logger.Named("postgres"))
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer pool.Close()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Кэш личностей необязателен: пустой redis.addr или нулевой TTL - ходим в Postgres
	var identityCache service.IdentityCache
	if cfg.Redis.Addr != "" && cfg.Redis.IdentityTTL > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(appCtx).Err(); err != nil {
			// Не фатально: Circuit Breaker пропустит кэш, пока Redis не оживет
			logger.Warn("redis unavailable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		identityCache = cache.NewIdentityCache(rdb, cfg.Redis.IdentityTTL)
	}

	// Журнал аутентификации: данные полетят в базу пачками
	journal := audit.NewJournal(postgres.NewAuditRepo(pool), audit.Options{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
		BufferGauge:   m.AuditBufferFill,
	}, logger)
	journal.Start()

	// 3. Инициализация слоев (Dependency Injection)
	users := postgres.NewUserRepo(pool)
	hasher := service.NewTimedHasher(auth.NewPasswordHasher(cfg.Auth.BcryptCost), m.PasswordHashDuration)
	authn, err := service.NewAuthenticator(users, hasher)
	if err != nil {
		logger.Fatal("failed to init authenticator", zap.Error(err))
	}
	authService := service.NewAuthService(users, hasher, authn, codec, journal, m, logger)
	identities := service.NewIdentityService(users, identityCache, m, logger)

	gate := auth.NewGate(codec, identities, logger, auth.WithOutcomeObserver(func(o auth.Outcome) {
		m.ObserveGate(string(o))
	}))
	enforcer := policy.NewRouteEnforcer(policy.DefaultRules()...)
	throttle := auth.NewLoginThrottle(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst, logger)

	proxies, err := cfg.Server.ParseTrustedProxies()
	if err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}
	api := server.NewAPIServer(logger, gate, enforcer, throttle, handler.NewAuthHandler(authService, logger),
		server.WithTrustedProxies(proxies))

	// 4. HTTP Server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus на отдельном порту
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// gRPC (опционально): health за тем же Gate
	grpcSrv, healthSrv := server.NewGRPCServer(gate, enforcer, logger)
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		}
		go func() {
			logger.Info("gRPC server started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server failed", zap.Error(err))
			}
		}()
	}

	// 5. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("API server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("shutting down...")
	healthSrv.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()

	// Журнал последним: все запросы завершены, новых событий не будет
	journal.Stop()
	logger.Info("exited properly")
}
