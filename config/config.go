// Copyright 2025 Centauraa Health
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the binaries read from the environment.
type Config struct {
	ServerHost string
	ServerPort int

	DatabaseURL string
	BadgerPath  string

	EmbeddingHost   string
	EmbeddingModel  string
	EmbeddingAPIKey string

	ChunkWords    int
	CommitSize    int
	MinBatch      int
	MaxBatch      int
	MaxRetries    int
	Workers       int
	RetryBaseWait time.Duration
	MinInterval   time.Duration
	ConvTimeout   time.Duration

	ContextBudget int
	LookbackDays  int

	LogLevel string
}

// Load reads configuration from the environment, falling back to
// defaults that work against a local Ollama and an in-process badger
// store. Malformed values fall back silently.
func Load() Config {
	return Config{
		ServerHost: envStr("ANGEL_HOST", "0.0.0.0"),
		ServerPort: envInt("ANGEL_PORT", 8600),

		DatabaseURL: envStr("DATABASE_URL", ""),
		BadgerPath:  envStr("ANGEL_BADGER_PATH", "data/vectors"),

		EmbeddingHost:   envStr("EMBEDDING_HOST", "http://localhost:11434/v1"),
		EmbeddingModel:  envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey: envStr("EMBEDDING_API_KEY", ""),

		ChunkWords:    envInt("ANGEL_CHUNK_WORDS", 800),
		CommitSize:    envInt("ANGEL_COMMIT_SIZE", 1000),
		MinBatch:      envInt("ANGEL_MIN_BATCH", 8),
		MaxBatch:      envInt("ANGEL_MAX_BATCH", 500),
		MaxRetries:    envInt("ANGEL_MAX_RETRIES", 3),
		Workers:       envInt("ANGEL_WORKERS", 3),
		RetryBaseWait: time.Duration(envInt("ANGEL_RETRY_BASE_MS", 1000)) * time.Millisecond,
		MinInterval:   time.Duration(envInt("ANGEL_MIN_INTERVAL_MS", 0)) * time.Millisecond,
		ConvTimeout:   time.Duration(envInt("ANGEL_CONV_TIMEOUT_MS", 300000)) * time.Millisecond,

		ContextBudget: envInt("ANGEL_CONTEXT_BUDGET", 8000),
		LookbackDays:  envInt("ANGEL_LOOKBACK_DAYS", 90),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
