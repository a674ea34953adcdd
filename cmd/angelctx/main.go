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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/centauraa/angel-context/assembly"
	"github.com/centauraa/angel-context/config"
	"github.com/centauraa/angel-context/embedding"
	"github.com/centauraa/angel-context/ingestion"
	"github.com/centauraa/angel-context/search"
	"github.com/centauraa/angel-context/server"
	"github.com/centauraa/angel-context/storage"
	"github.com/centauraa/angel-context/storage/badger"
	"github.com/centauraa/angel-context/storage/flatfile"
	"github.com/centauraa/angel-context/storage/postgres"
)

func main() {
	// .env is a local-dev convenience; production sets real env vars.
	_ = godotenv.Load()
	cfg := config.Load()

	app := &cli.App{
		Name:  "angelctx",
		Usage: "Therapeutic memory: conversation ingestion and context assembly",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   cfg.LogLevel,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed and index conversations from an archive or JSONL export",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB vector index directory",
						Value:   cfg.BadgerPath,
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "JSONL conversation export to ingest (reads the archive when omitted)",
					},
					&cli.StringFlag{
						Name:  "database-url",
						Usage: "Postgres conversation archive URL",
						Value: cfg.DatabaseURL,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: cfg.EmbeddingHost,
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: cfg.EmbeddingModel,
					},
					&cli.StringFlag{
						Name:  "embedding-api-key",
						Usage: "Embedding service API key",
						Value: cfg.EmbeddingAPIKey,
					},
					&cli.IntFlag{
						Name:  "chunk-words",
						Usage: "Maximum words per indexed chunk",
						Value: cfg.ChunkWords,
					},
					&cli.IntFlag{
						Name:  "commit-size",
						Usage: "Chunks buffered before a bulk index write",
						Value: cfg.CommitSize,
					},
					&cli.StringFlag{
						Name:  "checkpoint-file",
						Usage: "Track completed conversations in a flat file instead of the index database",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent conversation workers",
						Value: cfg.Workers,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for embedding calls",
						Value: cfg.MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for embedding retry backoff",
						Value: cfg.RetryBaseWait,
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Import a JSONL transcript export into the conversation archive",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSONL transcript export to import",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "database-url",
						Usage: "Postgres conversation archive URL",
						Value: cfg.DatabaseURL,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Conversations written per archive batch",
						Value: 100,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the vector index for chunks similar to a phrase",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB vector index directory",
						Value:   cfg.BadgerPath,
					},
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User whose chunks to search",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: cfg.EmbeddingHost,
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: cfg.EmbeddingModel,
					},
					&cli.StringFlag{
						Name:  "embedding-api-key",
						Usage: "Embedding service API key",
						Value: cfg.EmbeddingAPIKey,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results to return",
						Value: search.DefaultLimit,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Relevance floor in [0, 1]",
						Value: search.DefaultMinSimilarity,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the context assembly and search HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Listen host",
						Value: cfg.ServerHost,
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port",
						Value: cfg.ServerPort,
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB vector index directory",
						Value:   cfg.BadgerPath,
					},
					&cli.StringFlag{
						Name:  "database-url",
						Usage: "Postgres conversation archive URL",
						Value: cfg.DatabaseURL,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: cfg.EmbeddingHost,
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: cfg.EmbeddingModel,
					},
					&cli.StringFlag{
						Name:  "embedding-api-key",
						Usage: "Embedding service API key",
						Value: cfg.EmbeddingAPIKey,
					},
					&cli.IntFlag{
						Name:  "context-budget",
						Usage: "Token budget for assembled context",
						Value: cfg.ContextBudget,
					},
					&cli.IntFlag{
						Name:  "lookback-days",
						Usage: "History tier lookback window in days",
						Value: cfg.LookbackDays,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	// Interrupts cancel the run context; the pipeline flushes pending
	// chunks and checkpoints before Run returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := config.Load()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer backend.Close()

	index := badger.NewIndex(backend)

	var checkpoint storage.CheckpointStore
	if path := c.String("checkpoint-file"); path != "" {
		cp, err := flatfile.OpenCheckpoint(path)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint file: %w", err)
		}
		checkpoint = cp
	} else {
		cp, err := badger.OpenCheckpoint(backend)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		checkpoint = cp
	}
	defer checkpoint.Close()

	var source storage.ConversationSource
	if input := c.String("input"); input != "" {
		src, err := flatfile.OpenSource(input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		source = src
	} else if url := c.String("database-url"); url != "" {
		store, err := postgres.New(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to archive: %w", err)
		}
		defer store.Close()
		source = postgres.NewSource(store)
	} else {
		return fmt.Errorf("either --input or --database-url is required")
	}
	defer source.Close()

	client, err := newEmbeddingClient(c, cfg)
	if err != nil {
		return err
	}

	pipeline, err := ingestion.NewPipeline(source, index, checkpoint, client,
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithChunkWords(c.Int("chunk-words")),
		ingestion.WithCommitSize(c.Int("commit-size")),
		ingestion.WithConversationTimeout(cfg.ConvTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Vector index: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	stats, err := pipeline.Run(ctx)
	fmt.Fprintf(os.Stderr, "Processed: %d  Skipped: %d  Failed: %d  Chunks: %d\n",
		stats.ConversationsProcessed, stats.ConversationsSkipped,
		stats.ConversationsFailed, stats.ChunksIndexed)
	fmt.Fprintf(os.Stderr, "Messages kept: %d  Filtered: %d  PII hits: %d\n",
		stats.Quality.MessagesKept,
		stats.Quality.FilteredPreprocessing+stats.Quality.FilteredValidation,
		stats.Quality.PIIDetectedCount)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func importCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := c.String("database-url")
	if url == "" {
		return fmt.Errorf("database-url is required")
	}

	store, err := postgres.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to archive: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure archive schema: %w", err)
	}

	source, err := flatfile.OpenSource(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer source.Close()

	importer := ingestion.NewImporter(store, c.Int("batch-size"))
	stats, err := importer.Import(ctx, source)
	fmt.Fprintf(os.Stderr, "Imported: %d  Skipped: %d  Truncated: %d\n",
		stats.Imported, stats.Skipped, stats.Truncated)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if source.BadLines > 0 {
		fmt.Fprintf(os.Stderr, "Malformed lines skipped: %d\n", source.BadLines)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer backend.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}

	searcher := search.NewSearcher(embedder, badger.NewIndex(backend),
		search.WithLimit(c.Int("limit")),
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))),
	)

	results, err := searcher.Search(ctx, c.String("user"), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, res := range results {
		fmt.Printf("[%.2f] (%s) %s\n",
			res.Similarity, res.Chunk.ConversationId, res.Chunk.Text)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx := context.Background()

	url := c.String("database-url")
	if url == "" {
		return fmt.Errorf("database-url is required")
	}

	store, err := postgres.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to archive: %w", err)
	}
	defer store.Close()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer backend.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}

	searcher := search.NewSearcher(embedder, badger.NewIndex(backend))
	engine := assembly.NewEngine(store, searcher,
		assembly.WithBudget(c.Int("context-budget")),
		assembly.WithLookback(time.Duration(c.Int("lookback-days"))*24*time.Hour),
	)

	srv := server.NewServer(engine, searcher, store, c.String("host"), c.Int("port"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	}
}

func newEmbedder(c *cli.Context) (embedding.Embedder, error) {
	embedCfg := embedding.NewConfig(
		embedding.WithHost(c.String("embedding-host")),
		embedding.WithModel(c.String("embedding-model")),
		embedding.WithAPIKey(c.String("embedding-api-key")),
	)
	embedCfg.Normalize()
	if err := embedCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	embedder, err := embedding.NewOpenAIEmbedder(embedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newEmbeddingClient(c *cli.Context, cfg config.Config) (*embedding.Client, error) {
	embedder, err := newEmbedder(c)
	if err != nil {
		return nil, err
	}
	limiter := embedding.NewLimiter(cfg.MinBatch, cfg.MaxBatch, cfg.MinInterval)
	return embedding.NewClient(embedder, limiter, c.Int("max-retries"), c.Duration("retry-delay")), nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
