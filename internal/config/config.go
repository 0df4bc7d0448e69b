package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LLMProvider selects the completion backend.
type LLMProvider string

const (
	ProviderMock      LLMProvider = "mock"
	ProviderVertex    LLMProvider = "vertex"
	ProviderAnthropic LLMProvider = "anthropic"
)

type Config struct {
	Port string

	LLMProvider LLMProvider

	GCPProjectID string
	GCPLocation  string
	VertexModel  string

	AnthropicModel     string
	AnthropicAPIKeyEnv string

	StorageBackend string // "memory", "firestore" or "sqlite"
	SQLitePath     string

	// Context assembly.
	ContextWindow    int
	RetrievalEnabled bool
	RetrievalTopK    int

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("llm_provider", string(ProviderMock))
	v.SetDefault("gcp_location", "us-central1")
	v.SetDefault("vertex_model", "gemini-2.5-flash")
	v.SetDefault("anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic_api_key_env", "ANTHROPIC_API_KEY")
	v.SetDefault("storage_backend", "memory")
	v.SetDefault("sqlite_path", "inkwell.db")
	v.SetDefault("context_window", 10)
	v.SetDefault("retrieval_enabled", false)
	v.SetDefault("retrieval_top_k", 3)
	v.SetDefault("log_level", "info")
}

// Load reads INKWELL_* env vars (and any bound flags) into a Config.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix("INKWELL")
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:               v.GetString("port"),
		LLMProvider:        LLMProvider(v.GetString("llm_provider")),
		GCPProjectID:       v.GetString("gcp_project"),
		GCPLocation:        v.GetString("gcp_location"),
		VertexModel:        v.GetString("vertex_model"),
		AnthropicModel:     v.GetString("anthropic_model"),
		AnthropicAPIKeyEnv: v.GetString("anthropic_api_key_env"),
		StorageBackend:     v.GetString("storage_backend"),
		SQLitePath:         v.GetString("sqlite_path"),
		ContextWindow:      v.GetInt("context_window"),
		RetrievalEnabled:   v.GetBool("retrieval_enabled"),
		RetrievalTopK:      v.GetInt("retrieval_top_k"),
		LogLevel:           v.GetString("log_level"),
	}

	switch cfg.LLMProvider {
	case ProviderMock, ProviderVertex, ProviderAnthropic:
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	if cfg.LLMProvider == ProviderVertex && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("INKWELL_GCP_PROJECT must be set for the vertex provider")
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("INKWELL_GCP_PROJECT must be set for the firestore backend")
	}

	return cfg, nil
}
