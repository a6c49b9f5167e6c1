package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
	"github.com/annel0/terragen/internal/schema"
	"github.com/annel0/terragen/internal/storage"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SeedHeader заголовок с фактическим сидом карты, по нему карту можно воспроизвести
const SeedHeader = "X-Terragen-Seed"

// handleHeightmap генерирует карту по параметрам запроса и отдаёт конверт
// {side, step, heightmap}. Карты с сидом кешируются.
func (rs *RestServer) handleHeightmap(c *gin.Context) {
	params, err := rs.paramsFromQuery(c)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	seeded := params.Seeded()
	params = params.Resolved()
	c.Header(SeedHeader, strconv.FormatInt(*params.Seed, 10))

	key := storage.ParamsKey(params)
	if seeded && rs.cache != nil {
		if data, err := rs.cache.Get(c.Request.Context(), key); err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json", data)
			return
		} else if !cache.IsCacheMiss(err) {
			logging.Warn("Ошибка чтения кеша %s: %v", key, err)
		}
	}

	m, err := rs.generator.Generate(c.Request.Context(), params)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		rs.writeError(c, err)
		return
	}

	if seeded && rs.cache != nil {
		if err := rs.cache.Set(c.Request.Context(), key, buf.Bytes(), rs.cacheTTL); err != nil {
			logging.Warn("Ошибка записи в кеш %s: %v", key, err)
		}
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// handleCreateMap генерирует и сохраняет карту. Повторный запрос с тем же сидом
// возвращает уже сохранённую карту.
func (rs *RestServer) handleCreateMap(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Хранилище карт не настроено"})
		return
	}

	body, err := readJSONBody(c, schema.ParamsSchema)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	params := rs.defaults
	params.Seed = nil
	if err := json.Unmarshal(body, &params); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}
	if err := rs.checkLimits(params); err != nil {
		rs.writeError(c, err)
		return
	}

	if stored, err := rs.store.FindByParams(params); err == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта уже существует", Data: stored})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		rs.writeError(c, err)
		return
	}

	params = params.Resolved()
	m, err := rs.generator.Generate(c.Request.Context(), params)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	stored, err := rs.store.Save(c.Request.Context(), params, m)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	logging.Info("💾 Карта %s сохранена (side=%d seed=%d)", stored.ID, params.Side, *params.Seed)
	rs.publishMapEvent(c, eventbus.EventMapCreated, stored)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Карта создана", Data: stored})
}

// handleImportMap сохраняет готовый конверт {side, step, heightmap}, полученный извне
func (rs *RestServer) handleImportMap(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Хранилище карт не настроено"})
		return
	}

	body, err := readJSONBody(c, schema.MapSchema)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	m, err := heightmap.Decode(bytes.NewReader(body))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	if rs.maxSide > 0 && m.Side > rs.maxSide {
		rs.writeError(c, fmt.Errorf("side %d больше допустимого %d: %w", m.Side, rs.maxSide, noise.ErrInvalidArgument))
		return
	}

	// У импортированной карты нет сида, поэтому она не попадает в индекс параметров
	stored, err := rs.store.Save(c.Request.Context(), heightmap.Params{Side: m.Side, Step: m.Step}, m)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	logging.Info("📥 Карта %s импортирована (side=%d)", stored.ID, m.Side)
	rs.publishMapEvent(c, eventbus.EventMapCreated, stored)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Карта импортирована", Data: stored})
}

func (rs *RestServer) handleListMaps(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Хранилище карт не настроено"})
		return
	}
	ids, err := rs.store.List()
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список карт получен",
		Data: map[string]interface{}{
			"maps":  ids,
			"total": len(ids),
		},
	})
}

func (rs *RestServer) handleGetMap(c *gin.Context) {
	stored, ok := rs.loadStored(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта найдена", Data: stored})
}

func (rs *RestServer) handlePreview(c *gin.Context) {
	stored, ok := rs.loadStored(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := heightmap.WritePNG(&buf, stored.Map); err != nil {
		rs.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (rs *RestServer) handleDeleteMap(c *gin.Context) {
	if rs.store == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Хранилище карт не настроено"})
		return
	}
	stored, err := rs.store.Load(c.Param("id"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	if err := rs.store.Delete(stored.ID); err != nil {
		rs.writeError(c, err)
		return
	}
	rs.publishMapEvent(c, eventbus.EventMapDeleted, stored)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Карта удалена"})
}

// publishMapEvent сообщает подписчикам о карте; ошибка шины не ломает запрос
func (rs *RestServer) publishMapEvent(c *gin.Context, eventType string, stored *storage.StoredMap) {
	if rs.events == nil {
		return
	}
	ev := eventbus.MapEvent{
		MapID:     stored.ID,
		Side:      stored.Params.Side,
		Algorithm: stored.Params.Algorithm,
	}
	if stored.Params.Seeded() {
		ev.Seed = *stored.Params.Seed
		ev.ParamsKey = storage.ParamsKey(stored.Params)
	}

	var correlationID string
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		correlationID = sc.TraceID().String()
	}

	env, err := eventbus.NewMapEnvelope(eventType, ev, correlationID)
	if err == nil {
		err = rs.events.Publish(c.Request.Context(), env)
	}
	if err != nil {
		logging.Warn("Не удалось опубликовать %s для %s: %v", eventType, stored.ID, err)
	}
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory"] = rs.metrics.GetDetailedMemoryStats()

	if rs.cache != nil {
		stats["cache"] = rs.cache.GetMetrics()
	}
	if rs.events != nil {
		stats["events"] = rs.events.Metrics()
	}
	if rs.store != nil {
		if ids, err := rs.store.List(); err == nil {
			stats["maps"] = len(ids)
		}
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика получена", Data: stats})
}

// handleHealth проверка здоровья
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) loadStored(c *gin.Context) (*storage.StoredMap, bool) {
	if rs.store == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Хранилище карт не настроено"})
		return nil, false
	}
	stored, err := rs.store.Load(c.Param("id"))
	if err != nil {
		rs.writeError(c, err)
		return nil, false
	}
	return stored, true
}

// readJSONBody читает тело запроса и проверяет его по схеме; пустое тело: {}
func readJSONBody(c *gin.Context, schemaName string) ([]byte, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("чтение тела запроса: %v: %w", err, noise.ErrInvalidArgument)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if err := schema.Validate(schemaName, body); err != nil {
		return nil, err
	}
	return body, nil
}

// paramsFromQuery накладывает параметры запроса на значения по умолчанию
func (rs *RestServer) paramsFromQuery(c *gin.Context) (heightmap.Params, error) {
	p := rs.defaults
	p.Seed = nil

	ints := []struct {
		names []string
		dst   *int
	}{
		{[]string{"side"}, &p.Side},
		{[]string{"step"}, &p.Step},
		{[]string{"resolution", "smoothness"}, &p.Resolution},
		{[]string{"sea"}, &p.Sea},
		{[]string{"max"}, &p.AltMax},
	}
	for _, f := range ints {
		for _, name := range f.names {
			raw, ok := c.GetQuery(name)
			if !ok {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				return p, fmt.Errorf("параметр %s=%q: %w", name, raw, noise.ErrInvalidArgument)
			}
			*f.dst = v
		}
	}

	if raw, ok := c.GetQuery("seed"); ok {
		seed, err := noise.ParseSeed(raw)
		if err != nil {
			return p, err
		}
		p.Seed = &seed
	}
	if v, ok := c.GetQuery("algorithm"); ok {
		p.Algorithm = v
	}
	if v, ok := c.GetQuery("palette"); ok {
		p.Palette = v
	}

	return p, rs.checkLimits(p)
}

func (rs *RestServer) checkLimits(p heightmap.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if rs.maxSide > 0 && p.Side > rs.maxSide {
		return fmt.Errorf("side %d больше допустимого %d: %w", p.Side, rs.maxSide, noise.ErrInvalidArgument)
	}
	return nil
}

// writeError переводит ошибки домена в HTTP статусы
func (rs *RestServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, noise.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, noise.ErrDegenerateInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrNotReady):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.Error("❌ Ошибка обработки %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}
