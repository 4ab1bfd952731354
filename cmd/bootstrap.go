package cmd

import (
	"fmt"

	"github.com/samsaffron/workbench/internal/config"
	"github.com/samsaffron/workbench/internal/llm"
	"github.com/samsaffron/workbench/internal/tools"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// applyWorkspaceOverride replaces the configured root when --workspace is set.
func applyWorkspaceOverride(cfg *config.Config, workspace string) {
	if workspace != "" {
		cfg.Workspace.Root = workspace
	}
}

func newRegistry(cfg *config.Config) (*tools.Registry, error) {
	ignore, err := tools.NewIgnoreSet(cfg.Workspace.Ignore)
	if err != nil {
		return nil, fmt.Errorf("workspace.ignore: %w", err)
	}
	ws, err := tools.NewWorkspace(cfg.Workspace.Root, ignore)
	if err != nil {
		return nil, err
	}
	return tools.NewRegistry(ws, tools.Limits{
		MaxReadBytes: cfg.Workspace.MaxReadBytes,
		MaxMatches:   cfg.Workspace.MaxMatches,
	}), nil
}

// newProxy builds the streaming proxy. mock replaces the configured backend
// with a canned one for trying clients without a model.
func newProxy(cfg *config.Config, mock bool) (*llm.Proxy, error) {
	backend, err := newBackend(cfg.Backend, mock)
	if err != nil {
		return nil, err
	}
	return llm.NewProxy(backend, cfg.Backend.Model, cfg.Backend.Temperature), nil
}

func newBackend(cfg config.BackendConfig, mock bool) (llm.Backend, error) {
	if mock {
		return llm.NewMockBackend("mock", "Hello", " from", " workbench", "."), nil
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIBackend(llm.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	case config.ProviderAnthropic:
		return llm.NewAnthropicBackend(llm.AnthropicConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			MaxTokens: int64(cfg.MaxTokens),
			Timeout:   cfg.Timeout,
		}), nil
	case config.ProviderGemini:
		return llm.NewGeminiBackend(llm.GeminiConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			MaxTokens: int32(cfg.MaxTokens),
			Timeout:   cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}
}
