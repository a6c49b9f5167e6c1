package api

import (
	"bytes"
	"context"
	"time"

	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/logging"
)

// StartCacheWarmer кладёт каждую сохранённую карту с сидом в кеш
// GET /api/heightmap, чтобы повторный запрос с теми же параметрами не
// пересчитывал шум.
func StartCacheWarmer(bus eventbus.EventBus, store MapStore, repo cache.CacheRepo, ttl time.Duration) (eventbus.Subscription, error) {
	filter := eventbus.Filter{Types: []string{eventbus.EventMapCreated}}
	return bus.Subscribe(context.Background(), filter, func(ctx context.Context, env *eventbus.Envelope) {
		ev, err := eventbus.DecodeMapEvent(env)
		if err != nil {
			logging.Warn("CacheWarmer: некорректное событие %s: %v", env.ID, err)
			return
		}
		if ev.ParamsKey == "" {
			return
		}

		stored, err := store.Load(ev.MapID)
		if err != nil {
			logging.Warn("CacheWarmer: карта %s недоступна: %v", ev.MapID, err)
			return
		}

		var buf bytes.Buffer
		if err := stored.Map.Encode(&buf); err != nil {
			logging.Warn("CacheWarmer: кодирование %s: %v", ev.MapID, err)
			return
		}
		if err := repo.Set(ctx, ev.ParamsKey, buf.Bytes(), ttl); err != nil {
			logging.Warn("CacheWarmer: запись в кеш %s: %v", ev.ParamsKey, err)
			return
		}
		logging.Debug("CacheWarmer: карта %s прогрета (%s)", ev.MapID, ev.ParamsKey)
	})
}
