package eventbus

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed возвращается при публикации в закрытую шину
var ErrBusClosed = errors.New("eventbus: шина закрыта")

// Типы событий жизненного цикла карт
const (
	EventMapCreated = "MapCreated"
	EventMapDeleted = "MapDeleted"
)

// Source событий сервиса
const Source = "terragen"

// MapEvent полезная нагрузка событий о картах
type MapEvent struct {
	MapID     string `json:"map_id"`
	ParamsKey string `json:"params_key,omitempty"` // пусто для карт без сида
	Side      int    `json:"side"`
	Seed      int64  `json:"seed"`
	Algorithm string `json:"algorithm"`
}

// NewMapEnvelope упаковывает MapEvent в Envelope
func NewMapEnvelope(eventType string, ev MapEvent, correlationID string) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        Source,
		EventType:     eventType,
		Version:       1,
		CorrelationID: correlationID,
		Priority:      5,
		Payload:       payload,
	}, nil
}

// DecodeMapEvent достаёт MapEvent из Envelope
func DecodeMapEvent(env *Envelope) (MapEvent, error) {
	var ev MapEvent
	err := json.Unmarshal(env.Payload, &ev)
	return ev, err
}
