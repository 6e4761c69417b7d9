package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"sceneforge/internal/agent"
	"sceneforge/internal/bridge"
	"sceneforge/internal/config"
	"sceneforge/internal/llm"
	"sceneforge/internal/logging"
	"sceneforge/internal/memory"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/objectstore"
	"sceneforge/internal/observability"
	"sceneforge/internal/toolregistry"
	"sceneforge/internal/tools/builtin"
)

// Container holds every constructed service. All wiring happens here, once,
// so the rest of the program receives dependencies explicitly instead of
// reaching for globals.
type Container struct {
	Config   config.Config
	Metrics  *observability.Metrics
	Registry *toolregistry.Registry
	Memory   *memory.Manager
	Bridge   *bridge.Bridge
	Objects  *objectstore.Store
	Poller   *meshgen.Poller
	Statuses *meshgen.StatusTable
	Engine   *agent.Engine
}

// buildContainer constructs the full service graph from cfg. The returned
// container always carries a usable engine; meshgen is absent (nil Poller)
// when no generation API is configured.
func buildContainer(cfg config.Config) (*Container, error) {
	metrics := observability.MustNewMetrics(prometheus.DefaultRegisterer)

	cache, err := toolregistry.NewResultCache(toolregistry.CacheConfig{
		MaxSize: cfg.Cache.Size,
		TTL:     cfg.Cache.TTL(),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build result cache: %w", err)
	}
	registry := toolregistry.NewRegistry(toolregistry.Config{
		Cache:   cache,
		Logger:  logging.NewComponentLogger("registry"),
		Metrics: metrics,
	})

	var store memory.Store
	if cfg.Memory.Persist {
		stateDir := cfg.Memory.StateDir
		if stateDir == "" {
			stateDir = "~/.sceneforge/sessions"
		}
		fileStore, err := memory.NewFileStore(stateDir)
		if err != nil {
			return nil, fmt.Errorf("build memory file store: %w", err)
		}
		store = fileStore
	}
	mem := memory.NewManager(memory.ManagerConfig{
		Store:      store,
		WindowSize: cfg.Memory.WindowSize,
		Logger:     logging.NewComponentLogger("memory"),
	})

	wsBridge := bridge.New(bridge.Config{
		RequestTimeout: cfg.Bridge.RequestTimeout(),
		PingInterval:   cfg.Bridge.PingInterval(),
		Logger:         logging.NewComponentLogger("bridge"),
		Metrics:        metrics,
	})

	objects, err := objectstore.New(objectstore.Config{
		Path:   cfg.ObjectStore.Path,
		Logger: logging.NewComponentLogger("objectstore"),
	})
	if err != nil {
		return nil, fmt.Errorf("build object store: %w", err)
	}

	statuses := meshgen.NewStatusTable(meshgen.TableConfig{
		MaxAge: cfg.MeshGen.StatusMaxAge(),
		Logger: logging.NewComponentLogger("meshgen"),
	})
	var poller *meshgen.Poller
	if cfg.MeshGen.BaseURL != "" {
		client, err := meshgen.NewClient(meshgen.ClientConfig{
			BaseURL: cfg.MeshGen.BaseURL,
			APIKey:  cfg.MeshGen.APIKey,
			Logger:  logging.NewComponentLogger("meshgen"),
		})
		if err != nil {
			return nil, fmt.Errorf("build generation client: %w", err)
		}
		poller, err = meshgen.NewPoller(meshgen.PollerConfig{
			API: client,
			Validator: meshgen.NewHeadValidator(meshgen.ValidatorConfig{
				Timeout: cfg.MeshGen.ProbeTimeout(),
				Retries: cfg.MeshGen.ProbeRetries,
				Logger:  logging.NewComponentLogger("meshgen"),
			}),
			Statuses:     statuses,
			Logger:       logging.NewComponentLogger("meshgen"),
			Metrics:      metrics,
			PollInterval: cfg.MeshGen.PollInterval(),
			RoundDelay:   cfg.MeshGen.RoundDelay(),
			MaxRounds:    cfg.MeshGen.ValidationRounds,
		})
		if err != nil {
			return nil, fmt.Errorf("build generation poller: %w", err)
		}
	}

	codeLLM, err := llm.New(cfg.LLM, logging.NewComponentLogger("llm"))
	if err != nil {
		return nil, fmt.Errorf("build code model client: %w", err)
	}
	visionLLM, err := llm.NewVision(cfg.LLM, logging.NewComponentLogger("llm"))
	if err != nil {
		return nil, fmt.Errorf("build vision model client: %w", err)
	}

	if err := builtin.Register(registry, builtin.Deps{
		LLM:     codeLLM,
		Vision:  visionLLM,
		Poller:  poller,
		Bridge:  wsBridge,
		Objects: objects,
		Logger:  logging.NewComponentLogger("tools"),
	}); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	engine, err := agent.New(agent.Runtime{
		Registry: registry,
		Memory:   mem,
		Bridge:   wsBridge,
		Objects:  objects,
		LLM:      codeLLM,
		Poller:   poller,
		Logger:   logging.NewComponentLogger("agent"),
		Metrics:  metrics,
	}, agent.Options{
		MaxIterations: cfg.Loop.MaxIterations,
		CacheTTL:      cfg.Cache.TTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &Container{
		Config:   cfg,
		Metrics:  metrics,
		Registry: registry,
		Memory:   mem,
		Bridge:   wsBridge,
		Objects:  objects,
		Poller:   poller,
		Statuses: statuses,
		Engine:   engine,
	}, nil
}
