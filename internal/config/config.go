// Package config loads the recognized configuration surface for TDRCluster
// (spec.md §6) from a YAML file, the same frontmatter-flavored
// gopkg.in/yaml.v3 the teacher uses for prompt config in
// services/analyzer-svc/prompts.go, with environment variables layered on
// top for secrets and connection strings.
package config

import (
	"fmt"
	"os"

	"github.com/harooos/tdrcluster/internal/common"
	"gopkg.in/yaml.v3"
)

const (
	defaultRecursionLimit        = 100
	defaultInitialK              = 10
	defaultMaxSamplesPerCluster  = 10
	defaultMinClusterAbsolute    = 10
	defaultMinClusterRatio       = 0.005
	defaultHighLevelGoal         = "Perform intelligent intent classification of user queries, producing high-quality categories with unambiguous business meaning."
	defaultTargetCategoryRange   = "15"
	defaultMaxRetries            = 3
	defaultBackoffBaseSeconds    = 1.0
	defaultEmbeddingBatchSize    = 256
	defaultLLMModel              = "gemini-2.0-flash"
	defaultEmbeddingModel        = "text-embedding-004"
)

type SystemConfig struct {
	RecursionLimit int `yaml:"recursion_limit"`
}

type MinClusterSize struct {
	Absolute int     `yaml:"absolute"`
	Ratio    float64 `yaml:"ratio"`
}

type ClusteringConfig struct {
	InitialK             int             `yaml:"initial_k"`
	MaxSamplesPerCluster int             `yaml:"max_samples_per_cluster"`
	MinClusterSize       MinClusterSize  `yaml:"min_cluster_size"`
}

type RuntimeConfig struct {
	Dataset             string `yaml:"dataset"`
	HighLevelGoal        string `yaml:"high_level_goal"`
	TargetCategoryRange  string `yaml:"target_category_range"`
	SampleSize           *int   `yaml:"sample_size"`
}

type LLMConfig struct {
	Model              string  `yaml:"model"`
	MaxRetries         int     `yaml:"max_retries"`
	BackoffBaseSeconds float64 `yaml:"backoff_base_seconds"`
	APIKey             string  `yaml:"-"`
}

type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
	APIKey    string `yaml:"-"`
}

type Config struct {
	System     SystemConfig     `yaml:"system"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`

	DatabaseURL string `yaml:"-"`
	RedisAddr   string `yaml:"-"`
	Port        string `yaml:"-"`
}

// Default returns a Config populated with the defaults from spec.md §6.
func Default() Config {
	return Config{
		System: SystemConfig{RecursionLimit: defaultRecursionLimit},
		Clustering: ClusteringConfig{
			InitialK:             defaultInitialK,
			MaxSamplesPerCluster: defaultMaxSamplesPerCluster,
			MinClusterSize: MinClusterSize{
				Absolute: defaultMinClusterAbsolute,
				Ratio:    defaultMinClusterRatio,
			},
		},
		Runtime: RuntimeConfig{
			HighLevelGoal:       defaultHighLevelGoal,
			TargetCategoryRange: defaultTargetCategoryRange,
		},
		LLM: LLMConfig{
			Model:              defaultLLMModel,
			MaxRetries:         defaultMaxRetries,
			BackoffBaseSeconds: defaultBackoffBaseSeconds,
		},
		Embedding: EmbeddingConfig{
			Model:     defaultEmbeddingModel,
			BatchSize: defaultEmbeddingBatchSize,
		},
	}
}

// Load reads a YAML config file (if path is non-empty and exists), applies
// it on top of Default(), then layers environment variables for secrets and
// connection strings, mirroring the teacher's per-service loadConfig()
// functions in services/*/main.go.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if cfg.System.RecursionLimit <= 0 {
		cfg.System.RecursionLimit = defaultRecursionLimit
	}
	if cfg.Clustering.MaxSamplesPerCluster <= 0 {
		cfg.Clustering.MaxSamplesPerCluster = defaultMaxSamplesPerCluster
	}
	if cfg.Clustering.MinClusterSize.Absolute <= 0 {
		cfg.Clustering.MinClusterSize.Absolute = defaultMinClusterAbsolute
	}
	if cfg.Runtime.TargetCategoryRange == "" {
		cfg.Runtime.TargetCategoryRange = defaultTargetCategoryRange
	}
	if cfg.Runtime.HighLevelGoal == "" {
		cfg.Runtime.HighLevelGoal = defaultHighLevelGoal
	}
	if cfg.LLM.MaxRetries <= 0 {
		cfg.LLM.MaxRetries = defaultMaxRetries
	}
	if cfg.LLM.BackoffBaseSeconds <= 0 {
		cfg.LLM.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultLLMModel
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = defaultEmbeddingBatchSize
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbeddingModel
	}

	cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Embedding.APIKey = common.GetenvOrDefault("EMBEDDING_API_KEY", cfg.LLM.APIKey)
	cfg.DatabaseURL = common.GetenvOrDefault("DATABASE_URL", "")
	cfg.RedisAddr = common.GetenvOrDefault("REDIS_ADDR", "")
	cfg.Port = common.GetenvOrDefault("PORT", "8080")

	return cfg, nil
}

// MinClusterSizeFor computes max(absolute_floor, floor(ratio * total_queries)),
// cached once at run start per spec.md §4.1/§4.5.
func (c Config) MinClusterSizeFor(totalQueries int) int {
	ratioBased := int(float64(totalQueries) * c.Clustering.MinClusterSize.Ratio)
	if c.Clustering.MinClusterSize.Absolute > ratioBased {
		return c.Clustering.MinClusterSize.Absolute
	}
	return ratioBased
}
