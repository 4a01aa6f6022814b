// Package config loads CLI settings from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/born-ml/hashembed/internal/seqpool"
)

// Config holds all hashembed CLI configuration.
type Config struct {
	Table    TableConfig
	Operator seqpool.Config
	Features FeatureConfig
	Train    TrainConfig
	Log      LogConfig
	Parallel bool

	// Checkpoint is a SafeTensors file holding the table (and optimizer
	// state). pool reads it when present; train reads and rewrites it.
	Checkpoint string
}

// TableConfig describes the embedding table.
type TableConfig struct {
	Rows  int
	Width int
	Seed  int64
}

// FeatureConfig controls text featurisation.
type FeatureConfig struct {
	Encoding string // tokenizer name: "bytes", a tiktoken encoding, or "model:<name>"
	NGram    int
	Lower    bool
}

// TrainConfig holds optimizer settings.
type TrainConfig struct {
	LR       float64
	Momentum float64
	ClipNorm float64
	Steps    int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from environment variables with sensible defaults.
// HASHEMBED_MOD_BY defaults to the table row count.
func Load() Config {
	rows := getenvInt("HASHEMBED_ROWS", 1024)
	op := seqpool.DefaultConfig()
	op.NumHash = getenvInt("HASHEMBED_NUM_HASH", op.NumHash)
	op.ModBy = getenvInt("HASHEMBED_MOD_BY", rows)
	op.Combiner = getenv("HASHEMBED_COMBINER", op.Combiner)

	return Config{
		Table: TableConfig{
			Rows:  rows,
			Width: getenvInt("HASHEMBED_WIDTH", 16),
			Seed:  int64(getenvInt("HASHEMBED_SEED", 1)),
		},
		Operator: op,
		Features: FeatureConfig{
			Encoding: getenv("HASHEMBED_ENCODING", "cl100k_base"),
			NGram:    getenvInt("HASHEMBED_NGRAM", 2),
			Lower:    getenvBool("HASHEMBED_LOWER", true),
		},
		Train: TrainConfig{
			LR:       getenvFloat("HASHEMBED_LR", 0.1),
			Momentum: getenvFloat("HASHEMBED_MOMENTUM", 0),
			ClipNorm: getenvFloat("HASHEMBED_CLIP_NORM", 0),
			Steps:    getenvInt("HASHEMBED_STEPS", 1),
		},
		Log: LogConfig{
			Level: getenv("HASHEMBED_LOG_LEVEL", "info"),
			JSON:  getenvBool("HASHEMBED_LOG_JSON", false),
		},
		Parallel:   getenvBool("HASHEMBED_PARALLEL", true),
		Checkpoint: getenv("HASHEMBED_CHECKPOINT", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
