// Package config loads and validates the server configuration. Files are
// YAML, checked against an embedded JSON Schema before unmarshalling so a
// typoed key or out-of-range value fails loudly at startup instead of
// silently selecting a default.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/embedding"
	"github.com/policyrag/mcp-server/internal/ingest"
	"github.com/policyrag/mcp-server/internal/metadata"
	"github.com/policyrag/mcp-server/internal/query"
	"github.com/policyrag/mcp-server/internal/retrieval"
)

//go:embed schema.json
var schemaJSON []byte

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is "hash" (local, deterministic) or "ollama".
	Provider string `yaml:"provider"`
	// Model names the Ollama model; ignored by the hash provider.
	Model string `yaml:"model"`
	// Dimensions is the vector width. For Ollama it must match the model.
	Dimensions int `yaml:"dimensions"`
	// BaseURL overrides the Ollama endpoint.
	BaseURL string `yaml:"base_url"`
}

// Config is the full server configuration. Every section is optional; unset
// fields keep the package defaults.
type Config struct {
	CorpusDir string           `yaml:"corpus_dir"`
	Chunking  chunking.Config  `yaml:"chunking"`
	Metadata  metadata.Config  `yaml:"metadata"`
	Query     query.Config     `yaml:"query"`
	Retrieval retrieval.Config `yaml:"retrieval"`
	Ingest    ingest.Config    `yaml:"ingest"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		CorpusDir: "data/docs",
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: embedding.DefaultDimensions,
		},
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML configuration bytes against the embedded schema and
// unmarshals them over the defaults.
func Parse(data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	return &cfg, nil
}

// NewEmbedder builds the configured embedding backend.
func (c *Config) NewEmbedder() (embedding.Embedder, error) {
	switch c.Embedding.Provider {
	case "", "hash":
		return embedding.NewHashEmbedder(c.Embedding.Dimensions), nil
	case "ollama":
		return embedding.NewOllamaEmbedder(c.Embedding.Model, c.Embedding.BaseURL, c.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
}

// validate checks the YAML document against the embedded JSON Schema. The
// document goes through a JSON round trip so the validator sees canonical
// JSON types.
func validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		// Empty file: all defaults.
		return nil
	}
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert config: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("convert config: %w", err)
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
