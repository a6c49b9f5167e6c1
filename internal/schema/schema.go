// Package schema проверяет JSON документы API по JSON Schema из schemas/.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/annel0/terragen/internal/noise"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var files embed.FS

const (
	MapSchema    = "map.schema.json"
	ParamsSchema = "params.schema.json"
)

var compiled = map[string]*jsonschema.Schema{}

func init() {
	for _, name := range []string{MapSchema, ParamsSchema} {
		data, err := files.ReadFile("schemas/" + name)
		if err != nil {
			panic(err)
		}
		compiled[name] = jsonschema.MustCompileString(name, string(data))
	}
}

// Validate проверяет документ по схеме name; ошибки оборачивают noise.ErrInvalidArgument
func Validate(name string, data []byte) error {
	s, ok := compiled[name]
	if !ok {
		return fmt.Errorf("неизвестная схема %q", name)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("некорректный JSON: %v: %w", err, noise.ErrInvalidArgument)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %v: %w", name, err, noise.ErrInvalidArgument)
	}
	return nil
}
