package config

// Config holds qrpdf configuration.
// Stored at: ./config.yaml or ~/.qrpdf/config.yaml
type Config struct {
	Defaults DefaultsCfg `mapstructure:"defaults" yaml:"defaults"`
	Engine   EngineCfg   `mapstructure:"engine" yaml:"engine"`
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	LogLevel string      `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// DefaultsCfg specifies default compression job settings.
type DefaultsCfg struct {
	// Preset is the default aggressiveness level.
	Preset string `mapstructure:"preset" yaml:"preset"`
	// ChunkSize is pages per execution unit; 0 lets the planner decide.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
	// MergeStrategy is "isolated" or "inline".
	MergeStrategy string `mapstructure:"merge_strategy" yaml:"merge_strategy"`
	// TimeoutSeconds bounds each execution unit's lifetime.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// GracefulDegradation retries failed jobs with milder presets.
	GracefulDegradation bool `mapstructure:"graceful_degradation" yaml:"graceful_degradation"`
	// ConstrainedDevice shrinks the default chunk size.
	ConstrainedDevice bool `mapstructure:"constrained_device" yaml:"constrained_device"`
}

// EngineCfg configures how execution contexts are spawned.
type EngineCfg struct {
	// WorkerCommand overrides the worker binary; empty re-executes qrpdf.
	WorkerCommand string `mapstructure:"worker_command" yaml:"worker_command"`
	// WorkerArgs are passed to the worker command (default: ["worker"]).
	WorkerArgs []string `mapstructure:"worker_args" yaml:"worker_args"`
}

// ServerCfg holds the HTTP server settings for `qrpdf serve`.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// MaxUploadMB caps request body size.
	MaxUploadMB int `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsCfg{
			Preset:              "balanced",
			MergeStrategy:       "isolated",
			TimeoutSeconds:      300,
			GracefulDegradation: true,
		},
		Engine: EngineCfg{
			WorkerArgs: []string{"worker"},
		},
		Server: ServerCfg{
			Host:        "127.0.0.1",
			Port:        "8080",
			MaxUploadMB: 200,
		},
		LogLevel: "info",
	}
}
