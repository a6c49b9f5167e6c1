package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// mapCodec сериализует записи в JSON и сжимает zstd.
// Высоты соседних клеток близки, поэтому JSON-массив хорошо сжимается.
type mapCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newMapCodec() (*mapCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}
	return &mapCodec{encoder: encoder, decoder: decoder}, nil
}

func (c *mapCodec) marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func (c *mapCodec) unmarshal(data []byte, v interface{}) error {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("ошибка распаковки zstd: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ошибка десериализации: %w", err)
	}
	return nil
}

func (c *mapCodec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
