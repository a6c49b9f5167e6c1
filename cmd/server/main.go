package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/terragen/internal/api"
	"github.com/annel0/terragen/internal/auth"
	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/observability"
	"github.com/annel0/terragen/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (TERRAGEN_CONFIG if empty)")
	issueToken := flag.String("issue-token", "", "print a maps:write token for the subject and exit")
	newSecret := flag.Bool("new-secret", false, "print a fresh base64 JWT secret and exit")
	flag.Parse()

	if *newSecret {
		secret, err := auth.GenerateSecureSecret()
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Println(secret)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	tokens, err := newTokenManager(cfg.Server)
	if err != nil {
		log.Fatalf("❌ Ошибка настройки JWT: %v", err)
	}
	if *issueToken != "" {
		if tokens == nil {
			log.Fatalf("❌ jwt_secret не задан (server.jwt_secret или TERRAGEN_JWT_SECRET)")
		}
		token, err := tokens.Issue(*issueToken, auth.ScopeMapsWrite)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Println(token)
		return
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Logging.Dir)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logging.Warn("Неизвестный уровень логирования %q, используется INFO", cfg.Logging.Level)
		level = logging.INFO
	}
	logging.SetDefaultLevels(level, logging.DEBUG)

	logging.Info("🗺️ Запуск terragen...")

	ctx := context.Background()

	// === OBSERVABILITY ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, observability.Options{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===
	logging.Debug("Открытие хранилища карт...")
	store, err := storage.NewMapStorage(storage.Options{
		Path:     cfg.Storage.DataPath,
		InMemory: cfg.Storage.InMemory,
		Logger:   logging.GetStorageLogger(),
	})
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		os.Exit(1)
	}

	logging.Debug("Подключение кеша...")
	mapCache, err := cache.New(cfg.Cache)
	if err != nil {
		logging.Warn("⚠️ Redis недоступен (%v), используется кеш в памяти", err)
		mapCache = cache.NewMemoryCache(cfg.Cache)
	}

	logging.Debug("Создание шины событий...")
	bus := newEventBus(cfg.Events)
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil)
	busMetrics.Start()
	if cfg.Events.WarmCache {
		if _, err := api.StartCacheWarmer(bus, store, mapCache, cfg.Cache.DefaultTTL); err != nil {
			logging.Warn("⚠️ CacheWarmer не запущен: %v", err)
		}
	}

	restPort := cfg.Server.GetRESTPort()
	metricsPort := cfg.Server.GetMetricsPort()

	gin.SetMode(gin.ReleaseMode)
	restServer := api.NewRestServer(api.Config{
		Port:      fmt.Sprintf(":%d", restPort),
		Generator: heightmap.NewGenerator(heightmap.NewMetrics(nil)),
		Store:     store,
		Cache:     mapCache,
		Events:    bus,
		Tokens:    tokens,
		Defaults:  cfg.Generator,
		MaxSide:   cfg.Server.MaxSide,
		CacheTTL:  cfg.Cache.DefaultTTL,
	})

	errCh := make(chan error, 2)
	go func() {
		errCh <- restServer.Start()
	}()

	// Отдельный порт для Prometheus, если он отличается от REST
	var metricsSrv *http.Server
	if metricsPort != restPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", metricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if tokens == nil {
		logging.Warn("⚠️ jwt_secret не задан: POST/DELETE /api/maps доступны без авторизации")
	}

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🌐 REST API: http://localhost:%d", restPort)
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", metricsPort)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", restPort)
	logging.Info("💡 Пример: curl 'http://localhost:%d/api/heightmap?side=64&seed=42'", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ Сервер остановился с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	logging.Debug("Остановка REST API...")
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
		}
	}
	busMetrics.Stop()
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if err := mapCache.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия кеша: %v", err)
	}
	if err := store.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// newEventBus подключает NATS JetStream, если он настроен; иначе шина в памяти
func newEventBus(cfg config.EventsConfig) eventbus.EventBus {
	if cfg.NATSURL != "" {
		bus, err := eventbus.NewJetStreamBus(cfg.NATSURL, cfg.Stream, cfg.Retention)
		if err == nil {
			logging.Info("📨 События публикуются в NATS JetStream (%s, stream=%s)", cfg.NATSURL, cfg.Stream)
			return bus
		}
		logging.Warn("⚠️ NATS недоступен (%v), используется шина в памяти", err)
	}
	return eventbus.NewMemoryBus(cfg.BufferSize)
}

func newTokenManager(cfg config.ServerConfig) (*auth.TokenManager, error) {
	secret := cfg.GetJWTSecret()
	if secret == "" {
		return nil, nil
	}
	return auth.NewTokenManager(secret, cfg.TokenTTL)
}
