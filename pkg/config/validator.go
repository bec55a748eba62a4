package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "api_key (or OPENAI_API_KEY) is required for the openai provider",
			})
		}
	case "canned":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.top_p",
			Message: "top_p must be in (0, 1]",
		})
	}

	// Validate Database config
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "url is required for the postgres driver",
			})
		} else if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unknown driver: %s", c.Database.Driver),
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Indexer config
	if c.Indexer.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "indexer.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "indexer.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Indexer.TimeBudget <= 0 {
		errors = append(errors, ValidationError{
			Field:   "indexer.time_budget",
			Message: "time_budget must be positive",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must not be negative",
		})
	}

	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	// Validate Sources config
	docs := c.Sources.Documents
	switch docs.Kind {
	case "none":
	case "gateway":
		if docs.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "sources.documents.path",
				Message: "path is required for the gateway source",
			})
		}
	case "web":
		if u, err := url.Parse(docs.URL); err != nil || !strings.HasPrefix(u.Scheme, "http") {
			errors = append(errors, ValidationError{
				Field:   "sources.documents.url",
				Message: "an http(s) url is required for the web source",
			})
		}
		if docs.RateLimit <= 0 {
			errors = append(errors, ValidationError{
				Field:   "sources.documents.rate_limit",
				Message: "rate_limit must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "sources.documents.kind",
			Message: fmt.Sprintf("unknown document source: %s", docs.Kind),
		})
	}

	// Validate Log config
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: "format must be text or json",
		})
	}

	return errors
}
