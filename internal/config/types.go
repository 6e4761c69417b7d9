package config

import "time"

const (
	DefaultLLMProvider    = "openai"
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultLLMVisionModel = "gpt-4o"
	DefaultLLMBaseURL     = "https://api.openai.com/v1"
	DefaultMaxTokens      = 8192
	DefaultTemperature    = 0.7
	DefaultLLMTimeout     = 120
	DefaultLLMMaxRetries  = 3
)

const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
)

const (
	DefaultCacheSize       = 128
	DefaultCacheTTLSeconds = 300
)

const (
	DefaultMemoryWindowSize = 1
	DefaultModelHistoryMax  = 5
	DefaultSceneHistoryMax  = 5
)

const (
	DefaultBridgeTimeoutSeconds      = 30
	DefaultBridgePingIntervalSeconds = 25
)

const (
	DefaultMeshPollIntervalSeconds = 3
	DefaultMeshValidationRounds    = 20
	DefaultMeshRoundDelaySeconds   = 5
	DefaultMeshProbeTimeoutSeconds = 10
	DefaultMeshProbeRetries        = 2
	DefaultMeshStatusMaxAgeMinutes = 60
	DefaultMeshStatusSweepMinutes  = 10
)

const DefaultMaxIterations = 10

// Config captures every user-configurable setting, loaded from a YAML file
// with SCENEFORGE_* environment overrides.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	LLM         LLMConfig         `json:"llm" yaml:"llm" mapstructure:"llm"`
	MeshGen     MeshGenConfig     `json:"meshgen" yaml:"meshgen" mapstructure:"meshgen"`
	Memory      MemoryConfig      `json:"memory" yaml:"memory" mapstructure:"memory"`
	Cache       CacheConfig       `json:"cache" yaml:"cache" mapstructure:"cache"`
	Bridge      BridgeConfig      `json:"bridge" yaml:"bridge" mapstructure:"bridge"`
	Loop        LoopConfig        `json:"loop" yaml:"loop" mapstructure:"loop"`
	ObjectStore ObjectStoreConfig `json:"object_store" yaml:"object_store" mapstructure:"object_store"`
	Log         LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP/websocket surface.
type ServerConfig struct {
	Host           string   `json:"host" yaml:"host" mapstructure:"host"`
	Port           int      `json:"port" yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = DefaultServerHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultServerPort
	}
	return formatHostPort(host, port)
}

// LLMConfig selects and authenticates the language-model collaborator.
// Provider "mock" runs without credentials and echoes canned output; any
// live provider requires an API key.
type LLMConfig struct {
	Provider       string  `json:"provider" yaml:"provider" mapstructure:"provider"`
	BaseURL        string  `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" yaml:"model" mapstructure:"model"`
	VisionModel    string  `json:"vision_model" yaml:"vision_model" mapstructure:"vision_model"`
	Temperature    float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the per-request timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultLLMTimeout * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MeshGenConfig points at the external 3D generation API. An empty BaseURL
// disables the generation tool.
type MeshGenConfig struct {
	BaseURL             string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey              string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	PollIntervalSeconds int    `json:"poll_interval_seconds" yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	ValidationRounds    int    `json:"validation_rounds" yaml:"validation_rounds" mapstructure:"validation_rounds"`
	RoundDelaySeconds   int    `json:"round_delay_seconds" yaml:"round_delay_seconds" mapstructure:"round_delay_seconds"`
	ProbeTimeoutSeconds int    `json:"probe_timeout_seconds" yaml:"probe_timeout_seconds" mapstructure:"probe_timeout_seconds"`
	ProbeRetries        int    `json:"probe_retries" yaml:"probe_retries" mapstructure:"probe_retries"`
	StatusMaxAgeMinutes int    `json:"status_max_age_minutes" yaml:"status_max_age_minutes" mapstructure:"status_max_age_minutes"`
	StatusSweepMinutes  int    `json:"status_sweep_minutes" yaml:"status_sweep_minutes" mapstructure:"status_sweep_minutes"`
}

// PollInterval returns the job-status polling interval.
func (c MeshGenConfig) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return DefaultMeshPollIntervalSeconds * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RoundDelay returns the pause between validation rounds.
func (c MeshGenConfig) RoundDelay() time.Duration {
	if c.RoundDelaySeconds <= 0 {
		return DefaultMeshRoundDelaySeconds * time.Second
	}
	return time.Duration(c.RoundDelaySeconds) * time.Second
}

// ProbeTimeout returns the per-probe reachability timeout.
func (c MeshGenConfig) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutSeconds <= 0 {
		return DefaultMeshProbeTimeoutSeconds * time.Second
	}
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// StatusMaxAge returns how long completed status records are kept.
func (c MeshGenConfig) StatusMaxAge() time.Duration {
	if c.StatusMaxAgeMinutes <= 0 {
		return DefaultMeshStatusMaxAgeMinutes * time.Minute
	}
	return time.Duration(c.StatusMaxAgeMinutes) * time.Minute
}

// StatusSweep returns the GC sweep interval for status records.
func (c MeshGenConfig) StatusSweep() time.Duration {
	if c.StatusSweepMinutes <= 0 {
		return DefaultMeshStatusSweepMinutes * time.Minute
	}
	return time.Duration(c.StatusSweepMinutes) * time.Minute
}

// MemoryConfig controls the bounded session memory windows.
type MemoryConfig struct {
	WindowSize int    `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	StateDir   string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir"`
	Persist    bool   `json:"persist" yaml:"persist" mapstructure:"persist"`
}

// CacheConfig sizes the tool-result cache.
type CacheConfig struct {
	Size       int `json:"size" yaml:"size" mapstructure:"size"`
	TTLSeconds int `json:"ttl_seconds" yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// TTL returns the default result TTL.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return DefaultCacheTTLSeconds * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// BridgeConfig controls the screenshot bridge deadlines.
type BridgeConfig struct {
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	PingIntervalSeconds   int `json:"ping_interval_seconds" yaml:"ping_interval_seconds" mapstructure:"ping_interval_seconds"`
}

// RequestTimeout returns the per-request screenshot deadline.
func (c BridgeConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultBridgeTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// PingInterval returns the liveness ping cadence.
func (c BridgeConfig) PingInterval() time.Duration {
	if c.PingIntervalSeconds <= 0 {
		return DefaultBridgePingIntervalSeconds * time.Second
	}
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

// LoopConfig bounds the refinement loop.
type LoopConfig struct {
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
}

// ObjectStoreConfig selects the scene-object store location. Empty Path runs
// an ephemeral in-memory store.
type ObjectStoreConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}
