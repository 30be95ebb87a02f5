package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the shape and ranges of the configuration. Viper
// happily unmarshals nonsense (negative timeouts, unknown presets); the
// schema rejects it in one place instead of ad-hoc checks scattered around.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "defaults": {
      "type": "object",
      "properties": {
        "preset": {"enum": ["lossless", "balanced", "max"]},
        "chunk_size": {"type": "integer", "minimum": 0, "maximum": 1000},
        "merge_strategy": {"enum": ["isolated", "inline"]},
        "timeout_seconds": {"type": "integer", "minimum": 1},
        "graceful_degradation": {"type": "boolean"},
        "constrained_device": {"type": "boolean"}
      }
    },
    "engine": {
      "type": "object",
      "properties": {
        "worker_command": {"type": "string"},
        "worker_args": {"type": "array", "items": {"type": "string"}}
      }
    },
    "server": {
      "type": "object",
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "string", "pattern": "^[0-9]+$"},
        "max_upload_mb": {"type": "integer", "minimum": 1}
      }
    },
    "log_level": {"enum": ["debug", "info", "warn", "error"]}
  }
}`

var compiledSchema = jsonschema.MustCompileString("config.json", configSchema)

// Validate checks a config against the embedded schema.
func Validate(cfg *Config) error {
	// Round-trip through JSON to get the loosely typed document the schema
	// validator works on.
	raw, err := json.Marshal(toDocument(cfg))
	if err != nil {
		return fmt.Errorf("marshal config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal config for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// toDocument renders a Config with the same field names the YAML file uses.
func toDocument(cfg *Config) map[string]any {
	return map[string]any{
		"defaults": map[string]any{
			"preset":               cfg.Defaults.Preset,
			"chunk_size":           cfg.Defaults.ChunkSize,
			"merge_strategy":       cfg.Defaults.MergeStrategy,
			"timeout_seconds":      cfg.Defaults.TimeoutSeconds,
			"graceful_degradation": cfg.Defaults.GracefulDegradation,
			"constrained_device":   cfg.Defaults.ConstrainedDevice,
		},
		"engine": map[string]any{
			"worker_command": cfg.Engine.WorkerCommand,
			"worker_args":    cfg.Engine.WorkerArgs,
		},
		"server": map[string]any{
			"host":          cfg.Server.Host,
			"port":          cfg.Server.Port,
			"max_upload_mb": cfg.Server.MaxUploadMB,
		},
		"log_level": cfg.LogLevel,
	}
}
