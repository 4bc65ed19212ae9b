// Leadlensd is the retrieval-to-answer daemon over indexed chat
// messages.
//
// It serves an HTTP API for indexing messages, semantic search, and
// schema-constrained answer generation with citations, backed by
// Qdrant and an OpenAI-compatible embedding/generation provider.
//
// Configuration is loaded from an optional YAML file plus LEADLENS_
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	leadlensd
//
//	# Configure via file and environment
//	LEADLENS_SERVER_PORT=9090 leadlensd -config leadlens.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/config"
	"github.com/sablelabs/leadlens/internal/contacts"
	"github.com/sablelabs/leadlens/internal/embeddings"
	"github.com/sablelabs/leadlens/internal/httpapi"
	"github.com/sablelabs/leadlens/internal/llm"
	"github.com/sablelabs/leadlens/internal/logging"
	"github.com/sablelabs/leadlens/internal/rag"
	"github.com/sablelabs/leadlens/internal/vecstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("leadlensd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("shutdown complete")
}

// run wires the pipeline and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting leadlensd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("qdrant", fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)))

	store, err := vecstore.New(vecstore.Config{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		UseTLS:         cfg.Qdrant.UseTLS,
		APIKey:         cfg.Qdrant.APIKey.Value(),
		RequestTimeout: cfg.Qdrant.RequestTimeout.Duration(),
		RetryAttempts:  cfg.Qdrant.RetryAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer store.Close()

	if err := ensureCollections(ctx, store, uint64(cfg.Embedding.Dimension)); err != nil {
		return fmt.Errorf("ensuring collections: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey.Value(),
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("initializing embedding service: %w", err)
	}

	completer, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Answer.BaseURL,
		Model:   cfg.Answer.Model,
		APIKey:  cfg.Answer.APIKey.Value(),
		Timeout: cfg.Answer.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("initializing generation client: %w", err)
	}

	known := contacts.NewKnownSet()
	contactSvc := contacts.NewService(store, embedder, known, logger)
	if err := contactSvc.Rebuild(ctx); err != nil {
		logger.Warn("known-contact rebuild failed, starting empty", zap.Error(err))
	}

	// No in-process ingestion source is bundled; message ingestion
	// happens through the HTTP API. Assigning a chat.Source
	// implementation here activates live ingestion and the background
	// enrichment queue.
	var source chat.Source

	var notifier rag.ContactNotifier
	if source != nil {
		queue := contacts.NewQueue(source, contactSvc, contacts.QueueConfig{
			SliceCap: cfg.Enrich.SliceCap,
			Interval: cfg.Enrich.Interval.Duration(),
		}, logger)
		notifier = queue
		go queue.Run(ctx)
	}

	indexer := rag.NewIndexer(store, embedder, rag.IndexerConfig{
		BatchSize:    cfg.Index.BatchSize,
		ExcerptRunes: cfg.Index.ExcerptRunes,
	}, notifier, logger)

	expander := rag.NewExpander(completer, logger)
	retriever := rag.NewRetriever(store, embedder, expander, rag.RetrieverConfig{
		OverFetch: cfg.Retrieval.OverFetch,
	}, logger)
	composer := rag.NewComposer(completer, rag.ComposerConfig{
		Temperature: cfg.Answer.Temperature,
		MaxTokens:   cfg.Answer.MaxTokens,
	}, logger)

	ragSvc := rag.NewService(store, retriever, composer, rag.ServiceConfig{
		TopK:        cfg.Retrieval.TopK,
		MinTextLen:  cfg.Retrieval.MinTextLen,
		TokenBudget: cfg.Answer.ContextTokens,
	}, logger)

	srv, err := httpapi.NewServer(ragSvc, indexer, contactSvc, source, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureCollections creates the paired message and contact
// collections. Content stores use single-element dummy vectors and are
// only ever read by id or scroll.
func ensureCollections(ctx context.Context, store *vecstore.Store, dimension uint64) error {
	pairs := []struct {
		name string
		size uint64
	}{
		{rag.CollectionIndex, dimension},
		{rag.CollectionContent, 1},
		{contacts.CollectionContactIndex, dimension},
		{contacts.CollectionContacts, 1},
	}
	for _, p := range pairs {
		if err := store.EnsureCollection(ctx, p.name, p.size); err != nil {
			return fmt.Errorf("collection %s: %w", p.name, err)
		}
	}
	return nil
}
