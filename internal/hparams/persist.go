package hparams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema mirrors Validate so that hand-edited or foreign files are rejected with a
// field-level message before decoding.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["variant", "n_layers", "hidden_dim", "dropout", "reg_ratio", "lr", "batch_size",
               "n_epochs", "patience", "input_dim", "n_classes", "model_weights_name", "model_config_name"],
  "properties": {
    "variant":            {"type": "string", "enum": ["acoustic", "linguistic"]},
    "n_layers":           {"type": "integer", "minimum": 1, "maximum": 3},
    "hidden_dim":         {"type": "integer", "minimum": 64, "maximum": 1199},
    "dropout":            {"type": "number", "minimum": 0.1, "exclusiveMaximum": 0.95},
    "reg_ratio":          {"type": "number", "minimum": 0, "exclusiveMaximum": 0.00001},
    "lr":                 {"type": "number", "exclusiveMinimum": 0},
    "batch_size":         {"type": "integer", "minimum": 1},
    "n_epochs":           {"type": "integer", "minimum": 1},
    "patience":           {"type": "integer", "minimum": 1},
    "verbose":            {"type": "boolean"},
    "input_dim":          {"type": "integer", "minimum": 1},
    "seq_len":            {"type": "integer", "minimum": 0},
    "n_classes":          {"type": "integer", "minimum": 2},
    "model_weights_name": {"type": "string", "minLength": 1},
    "model_config_name":  {"type": "string", "minLength": 1}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(configSchema))
	})
	return schema, schemaErr
}

// JSON returns the indented JSON form that is written to a run directory.
func (c Config) JSON() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the configuration to path, replacing any existing file.
func (c Config) Save(path string) error {
	data, err := c.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Parse validates data against the configuration schema and decodes it.
func Parse(data []byte) (Config, error) {
	s, err := compiledSchema()
	if err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Config{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return Config{}, fmt.Errorf("%w: %s", ErrOutOfRange, strings.Join(errs, ", "))
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a configuration previously written by Save.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
