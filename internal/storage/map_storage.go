package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const (
	mapPrefix    = "map:"
	paramsPrefix = "params:"
)

var (
	// ErrNotFound карта с таким ID или параметрами не сохранена
	ErrNotFound = errors.New("map not found")
	// ErrNotReady хранилище закрыто
	ErrNotReady = errors.New("storage not ready")
)

// StoredMap сохранённая карта вместе с параметрами, которыми она получена
type StoredMap struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Params    heightmap.Params `json:"params"`
	Map       *heightmap.Map   `json:"map"`
}

// Options настройки хранилища
type Options struct {
	Path     string // каталог данных; внутри создаётся подкаталог maps
	InMemory bool   // BadgerDB без диска (тесты, эфемерный сервер)
	Logger   *logging.Logger
}

// MapStorage хранит сгенерированные карты в BadgerDB
type MapStorage struct {
	db      *badger.DB
	codec   *mapCodec
	logger  *logging.Logger
	mutex   sync.RWMutex
	isReady bool
}

// NewMapStorage открывает хранилище карт
func NewMapStorage(opts Options) (*MapStorage, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(filepath.Join(opts.Path, "maps"))
	}
	bopts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	codec, err := newMapCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &MapStorage{
		db:      db,
		codec:   codec,
		logger:  opts.Logger,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (ms *MapStorage) Close() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if !ms.isReady {
		return nil
	}

	ms.isReady = false
	ms.codec.close()
	return ms.db.Close()
}

// Save сохраняет карту. Для карт с явным сидом дополнительно пишется индекс
// параметры -> ID, чтобы повторный запрос не генерировал карту заново.
func (ms *MapStorage) Save(ctx context.Context, params heightmap.Params, m *heightmap.Map) (*StoredMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return nil, ErrNotReady
	}

	stored := &StoredMap{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Params:    params,
		Map:       m,
	}

	data, err := ms.codec.marshal(stored)
	if err != nil {
		return nil, err
	}

	err = ms.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(mapPrefix+stored.ID), data); err != nil {
			return err
		}
		if params.Seeded() {
			return txn.Set([]byte(ParamsKey(params)), []byte(stored.ID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	ms.logger.Debug("Карта %s сохранена (%d байт после сжатия)", stored.ID, len(data))
	return stored, nil
}

// Load загружает карту по ID
func (ms *MapStorage) Load(id string) (*StoredMap, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return nil, ErrNotReady
	}

	var data []byte
	err := ms.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(mapPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("карта %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var stored StoredMap
	if err := ms.codec.unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByParams ищет ранее сохранённую карту с теми же параметрами (только для карт с сидом)
func (ms *MapStorage) FindByParams(params heightmap.Params) (*StoredMap, error) {
	if !params.Seeded() {
		return nil, ErrNotFound
	}

	var id string
	ms.mutex.RLock()
	if !ms.isReady {
		ms.mutex.RUnlock()
		return nil, ErrNotReady
	}
	err := ms.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ParamsKey(params)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	ms.mutex.RUnlock()

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса параметров: %w", err)
	}
	return ms.Load(id)
}

// List возвращает отсортированный список ID сохранённых карт
func (ms *MapStorage) List() ([]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return nil, ErrNotReady
	}

	ids := make([]string, 0)
	err := ms.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(mapPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), mapPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Delete удаляет карту и индекс её параметров
func (ms *MapStorage) Delete(id string) error {
	stored, err := ms.Load(id)
	if err != nil {
		return err
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.isReady {
		return ErrNotReady
	}

	err = ms.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(mapPrefix + id)); err != nil {
			return err
		}
		if !stored.Params.Seeded() {
			return nil
		}
		key := []byte(ParamsKey(stored.Params))
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) != id {
			return nil
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}

	ms.logger.Debug("Карта %s удалена", id)
	return nil
}

// ParamsKey строит ключ индекса по параметрам, влияющим на результат.
// Число воркеров на карту не влияет и в ключ не входит,
// палитра учитывается только для алгоритма gradient.
func ParamsKey(p heightmap.Params) string {
	p.Workers = 0
	if p.Algorithm == "" {
		p.Algorithm = noise.AlgorithmGradient
	}
	switch {
	case p.Algorithm != noise.AlgorithmGradient:
		p.Palette = ""
	case p.Palette == "" || p.Palette == "palette8":
		p.Palette = "8"
	case p.Palette == "palette4":
		p.Palette = "4"
	}
	data, _ := json.Marshal(p)
	return fmt.Sprintf("%s%016x", paramsPrefix, xxhash.Sum64(data))
}
