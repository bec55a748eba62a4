package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model"`
		APIKey      string        `yaml:"api_key"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		TopP        float64       `yaml:"top_p"`
		Timeout     time.Duration `yaml:"timeout"`
		RateLimit   float64       `yaml:"rate_limit"`
	} `yaml:"llm"`

	Database struct {
		Driver    string `yaml:"driver"`
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Indexer struct {
		DocumentLimit    int           `yaml:"document_limit"`
		TimeBudget       time.Duration `yaml:"time_budget"`
		ChunkSize        int           `yaml:"chunk_size"`
		ChunkOverlap     int           `yaml:"chunk_overlap"`
		MaxChunks        int           `yaml:"max_chunks"`
		MinContentLength int           `yaml:"min_content_length"`
		MaxChunkContent  int           `yaml:"max_chunk_content"`
	} `yaml:"indexer"`

	Retrieval struct {
		TopK                int     `yaml:"top_k"`
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
		FallbackQuery       string  `yaml:"fallback_query"`
		FallbackTopK        int     `yaml:"fallback_top_k"`
	} `yaml:"retrieval"`

	Chat struct {
		MaxContextDocs int    `yaml:"max_context_docs"`
		HistoryWindow  int    `yaml:"history_window"`
		IncludeSources *bool  `yaml:"include_sources"`
		ResponseStyle  string `yaml:"response_style"`
	} `yaml:"chat"`

	Sources struct {
		Documents struct {
			Kind           string   `yaml:"kind"`
			Path           string   `yaml:"path"`
			URL            string   `yaml:"url"`
			MaxDepth       int      `yaml:"max_depth"`
			RateLimit      float64  `yaml:"rate_limit"`
			IgnorePatterns []string `yaml:"ignore_patterns"`
		} `yaml:"documents"`
		Templates struct {
			Path string `yaml:"path"`
		} `yaml:"templates"`
	} `yaml:"sources"`

	Server struct {
		Addr         string        `yaml:"addr"`
		RebuildWait  time.Duration `yaml:"rebuild_wait"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/edurag/config.yaml"),
			"/etc/edurag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func (c *Config) IncludeSources() bool {
	return c.Chat.IncludeSources == nil || *c.Chat.IncludeSources
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" && config.LLM.Provider == "ollama" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.TopP == 0 {
		config.LLM.TopP = 0.9
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}

	if config.Database.Driver == "" {
		if config.Database.URL != "" {
			config.Database.Driver = "postgres"
		} else {
			config.Database.Driver = "memory"
		}
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 50
	}

	if config.Indexer.DocumentLimit == 0 {
		config.Indexer.DocumentLimit = 50
	}
	if config.Indexer.TimeBudget == 0 {
		config.Indexer.TimeBudget = 40 * time.Second
	}
	if config.Indexer.ChunkSize == 0 {
		config.Indexer.ChunkSize = 500
	}
	if config.Indexer.ChunkOverlap == 0 {
		config.Indexer.ChunkOverlap = 50
	}
	if config.Indexer.MaxChunks == 0 {
		config.Indexer.MaxChunks = 200
	}
	if config.Indexer.MinContentLength == 0 {
		config.Indexer.MinContentLength = 20
	}
	if config.Indexer.MaxChunkContent == 0 {
		config.Indexer.MaxChunkContent = 5000
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.FallbackQuery == "" {
		config.Retrieval.FallbackQuery = "document"
	}
	if config.Retrieval.FallbackTopK == 0 {
		config.Retrieval.FallbackTopK = 10
	}

	if config.Chat.MaxContextDocs == 0 {
		config.Chat.MaxContextDocs = 5
	}
	if config.Chat.HistoryWindow == 0 {
		config.Chat.HistoryWindow = 6
	}

	if config.Sources.Documents.Kind == "" {
		if config.Sources.Documents.Path != "" {
			config.Sources.Documents.Kind = "gateway"
		} else if config.Sources.Documents.URL != "" {
			config.Sources.Documents.Kind = "web"
		} else {
			config.Sources.Documents.Kind = "none"
		}
	}
	if config.Sources.Documents.MaxDepth == 0 {
		config.Sources.Documents.MaxDepth = 3
	}
	if config.Sources.Documents.RateLimit == 0 {
		config.Sources.Documents.RateLimit = 2.0
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.RebuildWait == 0 {
		config.Server.RebuildWait = 60 * time.Second
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 120 * time.Second
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && (config.LLM.Provider == "" || config.LLM.Provider == "ollama") {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if path := os.Getenv("GATEWAY_DB_PATH"); path != "" {
		config.Sources.Documents.Path = path
	}
	if path := os.Getenv("QUIZ_DB_PATH"); path != "" {
		config.Sources.Templates.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
