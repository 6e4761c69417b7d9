package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default returns a Config populated with every default value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		LLM: LLMConfig{
			Provider:       DefaultLLMProvider,
			BaseURL:        DefaultLLMBaseURL,
			Model:          DefaultLLMModel,
			VisionModel:    DefaultLLMVisionModel,
			Temperature:    DefaultTemperature,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: DefaultLLMTimeout,
			MaxRetries:     DefaultLLMMaxRetries,
		},
		MeshGen: MeshGenConfig{
			PollIntervalSeconds: DefaultMeshPollIntervalSeconds,
			ValidationRounds:    DefaultMeshValidationRounds,
			RoundDelaySeconds:   DefaultMeshRoundDelaySeconds,
			ProbeTimeoutSeconds: DefaultMeshProbeTimeoutSeconds,
			ProbeRetries:        DefaultMeshProbeRetries,
			StatusMaxAgeMinutes: DefaultMeshStatusMaxAgeMinutes,
			StatusSweepMinutes:  DefaultMeshStatusSweepMinutes,
		},
		Memory: MemoryConfig{
			WindowSize: DefaultMemoryWindowSize,
		},
		Cache: CacheConfig{
			Size:       DefaultCacheSize,
			TTLSeconds: DefaultCacheTTLSeconds,
		},
		Bridge: BridgeConfig{
			RequestTimeoutSeconds: DefaultBridgeTimeoutSeconds,
			PingIntervalSeconds:   DefaultBridgePingIntervalSeconds,
		},
		Loop: LoopConfig{
			MaxIterations: DefaultMaxIterations,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file, applies SCENEFORGE_*
// environment overrides, and fills gaps with defaults. path may be empty, in
// which case sceneforge.yaml is searched in the working directory and $HOME.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCENEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sceneforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; anything else is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.base_url", def.LLM.BaseURL)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.vision_model", def.LLM.VisionModel)
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.timeout_seconds", def.LLM.TimeoutSeconds)
	v.SetDefault("llm.max_retries", def.LLM.MaxRetries)
	v.SetDefault("meshgen.poll_interval_seconds", def.MeshGen.PollIntervalSeconds)
	v.SetDefault("meshgen.validation_rounds", def.MeshGen.ValidationRounds)
	v.SetDefault("meshgen.round_delay_seconds", def.MeshGen.RoundDelaySeconds)
	v.SetDefault("meshgen.probe_timeout_seconds", def.MeshGen.ProbeTimeoutSeconds)
	v.SetDefault("meshgen.probe_retries", def.MeshGen.ProbeRetries)
	v.SetDefault("meshgen.status_max_age_minutes", def.MeshGen.StatusMaxAgeMinutes)
	v.SetDefault("meshgen.status_sweep_minutes", def.MeshGen.StatusSweepMinutes)
	v.SetDefault("memory.window_size", def.Memory.WindowSize)
	v.SetDefault("cache.size", def.Cache.Size)
	v.SetDefault("cache.ttl_seconds", def.Cache.TTLSeconds)
	v.SetDefault("bridge.request_timeout_seconds", def.Bridge.RequestTimeoutSeconds)
	v.SetDefault("bridge.ping_interval_seconds", def.Bridge.PingIntervalSeconds)
	v.SetDefault("loop.max_iterations", def.Loop.MaxIterations)
	v.SetDefault("log.level", def.Log.Level)
}

// Validate rejects configurations the process cannot run with. Missing
// credentials for a live provider are a startup failure, not something to
// retry at call time.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "", "mock":
	default:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q (set SCENEFORGE_LLM_API_KEY)", c.LLM.Provider)
		}
	}
	if c.MeshGen.BaseURL != "" && c.MeshGen.APIKey == "" {
		return fmt.Errorf("meshgen.api_key is required when meshgen.base_url is set (set SCENEFORGE_MESHGEN_API_KEY)")
	}
	if c.Memory.WindowSize < 1 {
		return fmt.Errorf("memory.window_size must be >= 1, got %d", c.Memory.WindowSize)
	}
	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be >= 1, got %d", c.Loop.MaxIterations)
	}
	return nil
}

// Dump renders the effective configuration as YAML with credentials masked.
func (c Config) Dump() (string, error) {
	masked := c
	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = mask(masked.LLM.APIKey)
	}
	if masked.MeshGen.APIKey != "" {
		masked.MeshGen.APIKey = mask(masked.MeshGen.APIKey)
	}
	out, err := yaml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func formatHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
