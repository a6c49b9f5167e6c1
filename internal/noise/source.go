package noise

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Source источник случайных индексов для палитры градиентов.
// *rand.Rand удовлетворяет интерфейсу.
type Source interface {
	Intn(n int) int
}

// NewSeededSource создаёт детерминированный источник
func NewSeededSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// NewEntropySource создаёт источник, засеянный энтропией окружения
func NewEntropySource() Source {
	return NewSeededSource(EntropySeed())
}

// EntropySeed возвращает сид из crypto/rand, при ошибке: из текущего времени
func EntropySeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// ParseSeed разбирает сид из командной строки или запроса.
// Числа используются как есть, произвольная строка хешируется (xxhash),
// поэтому `-seed hello` тоже воспроизводим.
func ParseSeed(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("пустой сид: %w", ErrInvalidArgument)
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	return int64(xxhash.Sum64String(s)), nil
}
