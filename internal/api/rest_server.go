package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/terragen/internal/auth"
	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/middleware"
	"github.com/annel0/terragen/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// MapStore хранилище сгенерированных карт
type MapStore interface {
	Save(ctx context.Context, params heightmap.Params, m *heightmap.Map) (*storage.StoredMap, error)
	Load(id string) (*storage.StoredMap, error)
	FindByParams(params heightmap.Params) (*storage.StoredMap, error)
	List() ([]string, error)
	Delete(id string) error
}

// RestServer представляет REST API генератора карт
type RestServer struct {
	router    *gin.Engine
	httpSrv   *http.Server
	generator *heightmap.Generator
	store     MapStore
	cache     cache.CacheRepo
	events    eventbus.EventBus
	tokens    *auth.TokenManager
	defaults  heightmap.Params
	maxSide   int
	cacheTTL  time.Duration
	metrics   *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port      string               // адрес для запуска сервера
	Generator *heightmap.Generator // генератор карт
	Store     MapStore             // хранилище карт (может быть nil)
	Cache     cache.CacheRepo      // кеш карт с сидом (может быть nil)
	Events    eventbus.EventBus    // шина событий о картах (может быть nil)
	Tokens    *auth.TokenManager   // nil: изменяющие запросы без авторизации
	Defaults  heightmap.Params     // значения параметров, не указанные в запросе
	MaxSide   int                  // ограничение стороны карты, 0: без ограничения
	CacheTTL  time.Duration

	// Регистр и источник метрик; nil: дефолтный регистр Prometheus
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Generator == nil {
		config.Generator = heightmap.NewGenerator(nil)
	}
	if config.Defaults.Side == 0 {
		config.Defaults = heightmap.DefaultParams()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("terragen_api"))

	loggerMw := middleware.NewRequestLogger("/health", "/metrics")
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("terragen_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:    router,
		generator: config.Generator,
		store:     config.Store,
		cache:     config.Cache,
		events:    config.Events,
		tokens:    config.Tokens,
		defaults:  config.Defaults,
		maxSide:   config.MaxSide,
		cacheTTL:  config.CacheTTL,
		metrics:   NewServerMetrics(),
	}
	server.httpSrv = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/heightmap", rs.handleHeightmap)
		api.GET("/stats", rs.handleStats)

		maps := api.Group("/maps")
		maps.GET("", rs.handleListMaps)
		maps.GET("/:id", rs.handleGetMap)
		maps.GET("/:id/preview.png", rs.handlePreview)

		write := rs.requireScope(auth.ScopeMapsWrite)
		maps.POST("", write, rs.handleCreateMap)
		maps.POST("/import", write, rs.handleImportMap)
		maps.DELETE("/:id", write, rs.handleDeleteMap)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до его остановки
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.httpSrv.Addr)
	if err := rs.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает REST сервер, дожидаясь завершения активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.httpSrv.Shutdown(ctx)
}
