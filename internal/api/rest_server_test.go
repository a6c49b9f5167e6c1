package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/terragen/internal/auth"
	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *RestServer
	store  *storage.MapStorage
	cache  *cache.MemoryCache
	bus    eventbus.EventBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewMapStorage(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	memCache := cache.NewMemoryCache(cache.CacheConfig{})
	registry := prometheus.NewRegistry()
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { bus.Close() })

	defaults := heightmap.DefaultParams()
	defaults.Side = 32
	defaults.Resolution = 8

	srv := NewRestServer(Config{
		Generator:  heightmap.NewGenerator(heightmap.NewMetrics(registry)),
		Store:      store,
		Cache:      memCache,
		Events:     bus,
		Defaults:   defaults,
		MaxSide:    128,
		CacheTTL:   time.Minute,
		Registerer: registry,
		Gatherer:   registry,
	})
	return &testEnv{server: srv, store: store, cache: memCache, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) GenericResponse {
	t.Helper()
	var resp GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHeightmap_SeededIsCachedAndStable(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(t, http.MethodGet, "/api/heightmap?seed=42&step=5", nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "42", first.Header().Get(SeedHeader))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	m, err := heightmap.Decode(bytes.NewReader(first.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 32, m.Side)
	assert.Equal(t, 5, m.Step)
	assert.Len(t, m.Heightmap, 32*32)

	second := env.do(t, http.MethodGet, "/api/heightmap?seed=42&step=5", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	metrics := env.cache.GetMetrics()
	assert.Equal(t, int64(1), metrics.CacheHits)
}

func TestHeightmap_StringSeed(t *testing.T) {
	env := newTestEnv(t)

	a := env.do(t, http.MethodGet, "/api/heightmap?seed=valley", nil)
	b := env.do(t, http.MethodGet, "/api/heightmap?seed=valley", nil)
	require.Equal(t, http.StatusOK, a.Code)
	assert.Equal(t, a.Header().Get(SeedHeader), b.Header().Get(SeedHeader))
	assert.Equal(t, a.Body.Bytes(), b.Body.Bytes())
}

func TestHeightmap_UnseededReportsSeed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/heightmap?side=16&resolution=4", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seed := w.Header().Get(SeedHeader)
	require.NotEmpty(t, seed)
	assert.Empty(t, w.Header().Get("X-Cache"), "карты без сида не кешируются")

	// По сообщённому сиду карта воспроизводится
	replay := env.do(t, http.MethodGet, "/api/heightmap?side=16&resolution=4&seed="+seed, nil)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, w.Body.Bytes(), replay.Body.Bytes())
}

func TestHeightmap_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"нулевая сторона", "side=0", http.StatusBadRequest},
		{"не число", "side=abc", http.StatusBadRequest},
		{"отрицательное море", "sea=-1", http.StatusBadRequest},
		{"неизвестный алгоритм", "algorithm=voronoi", http.StatusBadRequest},
		{"больше лимита", "side=512", http.StatusBadRequest},
		{"вырожденная карта", "side=1&seed=1", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/heightmap?"+tt.query, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, decodeResponse(t, w).Success)
		})
	}
}

func TestMaps_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"side":24,"resolution":6,"seed":7,"algorithm":"simplex"}`)
	created := env.do(t, http.MethodPost, "/api/maps", body)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var createResp struct {
		Success bool              `json:"success"`
		Data    storage.StoredMap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createResp))
	id := createResp.Data.ID
	require.NotEmpty(t, id)
	assert.Equal(t, 24, createResp.Data.Map.Side)

	// Тот же запрос возвращает существующую карту
	again := env.do(t, http.MethodPost, "/api/maps", body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Contains(t, again.Body.String(), id)

	got := env.do(t, http.MethodGet, "/api/maps/"+id, nil)
	assert.Equal(t, http.StatusOK, got.Code)

	list := env.do(t, http.MethodGet, "/api/maps", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), id)
	assert.Contains(t, list.Body.String(), `"total":1`)

	preview := env.do(t, http.MethodGet, "/api/maps/"+id+"/preview.png", nil)
	require.Equal(t, http.StatusOK, preview.Code)
	assert.Equal(t, "image/png", preview.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(preview.Body.String(), "\x89PNG"))

	deleted := env.do(t, http.MethodDelete, "/api/maps/"+id, nil)
	assert.Equal(t, http.StatusOK, deleted.Code)

	missing := env.do(t, http.MethodGet, "/api/maps/"+id, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestMaps_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/maps", []byte(`{"side":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/maps", []byte(`{"side":-3}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/maps/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMaps_WithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewRestServer(Config{Registerer: prometheus.NewRegistry(), Gatherer: prometheus.NewRegistry()})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/heightmap?seed=3", nil).Code)

	stats := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Contains(t, stats.Body.String(), `"uptime"`)
	assert.Contains(t, stats.Body.String(), `"cache"`)

	metrics := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "terragen_maps_generated_total")
	assert.Contains(t, metrics.Body.String(), "terragen_api_http_request_duration_seconds")
}

func TestMaps_PublishesEvents(t *testing.T) {
	env := newTestEnv(t)

	var (
		mu     sync.Mutex
		events []string
	)
	_, err := env.bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		events = append(events, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	created := env.do(t, http.MethodPost, "/api/maps", []byte(`{"seed":11}`))
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var resp struct {
		Data storage.StoredMap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/maps/"+resp.Data.ID, nil).Code)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{eventbus.EventMapCreated, eventbus.EventMapDeleted}, events)
	mu.Unlock()
}

func TestCacheWarmer_WarmsHeightmapCache(t *testing.T) {
	env := newTestEnv(t)

	sub, err := StartCacheWarmer(env.bus, env.store, env.cache, time.Minute)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	created := env.do(t, http.MethodPost, "/api/maps", []byte(`{"seed":99,"step":3}`))
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	var resp struct {
		Data storage.StoredMap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))
	key := storage.ParamsKey(resp.Data.Params)

	assert.Eventually(t, func() bool {
		_, err := env.cache.Get(context.Background(), key)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	w := env.do(t, http.MethodGet, "/api/heightmap?seed=99&step=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	m, err := heightmap.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Map.Heightmap, m.Heightmap)
}

func TestMaps_Import(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/maps/import", []byte(`{"side":2,"step":10,"heightmap":[0,5,10,15]}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data storage.StoredMap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{0, 5, 10, 15}, resp.Data.Map.Heightmap)
	assert.False(t, resp.Data.Params.Seeded())

	bad := []string{
		`{"side":2,"step":10,"heightmap":[0,5,10]}`,
		`{"side":2,"step":10,"heightmap":[0,5,10,-1]}`,
		`{"side":2,"heightmap":[0,5,10,15]}`,
		`{"side":200,"step":1,"heightmap":[0]}`,
	}
	for _, body := range bad {
		w := env.do(t, http.MethodPost, "/api/maps/import", []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestMaps_RequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	secret, err := auth.GenerateSecureSecret()
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager(secret, time.Hour)
	require.NoError(t, err)

	store, err := storage.NewMapStorage(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	defaults := heightmap.DefaultParams()
	defaults.Side = 16
	defaults.Resolution = 4
	registry := prometheus.NewRegistry()
	srv := NewRestServer(Config{
		Store:      store,
		Defaults:   defaults,
		Tokens:     tokens,
		Registerer: registry,
		Gatherer:   registry,
	})

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/maps", strings.NewReader(`{"seed":5}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post("garbage"))

	readOnly, err := tokens.Issue("viewer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, post(readOnly))

	writer, err := tokens.Issue("ci", auth.ScopeMapsWrite)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, post(writer))

	// Чтение не требует токена
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
