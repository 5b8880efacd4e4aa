package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rememo/rememo/internal/domain/ports"
	"github.com/rememo/rememo/internal/domain/services"
	"github.com/rememo/rememo/internal/infrastructure/config"
	"github.com/rememo/rememo/internal/infrastructure/embedder/cached"
	ollamaembed "github.com/rememo/rememo/internal/infrastructure/embedder/ollama"
	openaiembed "github.com/rememo/rememo/internal/infrastructure/embedder/openai"
	openaillm "github.com/rememo/rememo/internal/infrastructure/llm/openai"
	"github.com/rememo/rememo/internal/infrastructure/relationaldb/postgres"
	"github.com/rememo/rememo/internal/infrastructure/relationaldb/sqlite"
	"github.com/rememo/rememo/internal/infrastructure/vectordb/exhaustive"
	"github.com/rememo/rememo/internal/infrastructure/vectordb/pgvector"
	"github.com/rememo/rememo/internal/infrastructure/vectordb/qdrant"
)

// deps holds everything the serve and migrate commands need.
type deps struct {
	cfg      *config.Config
	store    ports.Store
	embedder ports.Embedder
	index    ports.VectorIndex
	admin    ports.IndexAdmin
	llm      ports.LLMClient

	ingestion *services.IngestionService
	retrieval *services.RetrievalService
	topics    *services.TopicService
	insights  *services.InsightsService
	chat      *services.ChatService

	closers []func() error
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles cleanup automatically.
func withDeps(ctx context.Context, log zerolog.Logger, fn func(*deps) error) error {
	cfg, err := config.Load(globalConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	d := &deps{cfg: cfg}
	defer func() {
		for i := len(d.closers) - 1; i >= 0; i-- {
			if cerr := d.closers[i](); cerr != nil {
				log.Warn().Err(cerr).Msg("closing dependency")
			}
		}
	}()

	if err := d.buildStore(ctx); err != nil {
		return err
	}
	if err := d.buildEmbedder(); err != nil {
		return err
	}
	if err := d.buildIndex(ctx); err != nil {
		return err
	}

	llmClient, err := openaillm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	d.llm = llmClient

	d.ingestion = services.NewIngestionService(d.store, d.embedder, d.index, d.llm, services.IngestionOptions{
		MaxFactsPerEntry: cfg.Retrieval.MaxFactsPerEntry,
	})
	d.retrieval = services.NewRetrievalService(d.store, d.embedder, d.index, d.llm, services.RetrievalOptions{
		Threshold: cfg.Retrieval.SimilarityThreshold,
		Limit:     cfg.Retrieval.DefaultLimit,
	})
	d.topics = services.NewTopicService(d.store)
	d.insights = services.NewInsightsService(d.store, d.llm)
	d.chat = services.NewChatService(d.store, d.embedder, d.index, d.llm, services.ChatOptions{
		ContextFacts: cfg.Chat.ContextFacts,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Threshold:    cfg.Retrieval.SimilarityThreshold,
	})

	return fn(d)
}

func (d *deps) buildStore(ctx context.Context) error {
	switch d.cfg.Database.Driver {
	case "postgres":
		repo, err := postgres.NewRepository(ctx, d.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("creating postgres store: %w", err)
		}
		d.store = repo
		d.closers = append(d.closers, repo.Close)
	case "sqlite":
		repo, err := sqlite.NewRepository(d.cfg.Database)
		if err != nil {
			return fmt.Errorf("creating sqlite store: %w", err)
		}
		d.store = repo
		d.closers = append(d.closers, repo.Close)
	default:
		return fmt.Errorf("unknown database driver %q", d.cfg.Database.Driver)
	}
	return nil
}

func (d *deps) buildEmbedder() error {
	var inner ports.Embedder
	switch d.cfg.Embedder.Provider {
	case "openai":
		emb, err := openaiembed.NewEmbedder(d.cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating openai embedder: %w", err)
		}
		inner = emb
	case "ollama":
		inner = ollamaembed.NewEmbedder(d.cfg.Embedder)
	default:
		return fmt.Errorf("unknown embedder provider %q", d.cfg.Embedder.Provider)
	}

	if d.cfg.Embedder.CacheSize > 0 {
		d.embedder = cached.NewEmbedder(inner, d.cfg.Embedder.Model, d.cfg.Embedder.CacheSize)
	} else {
		d.embedder = inner
	}
	return nil
}

func (d *deps) buildIndex(ctx context.Context) error {
	dimension := d.embedder.Dimension()

	switch d.cfg.VectorDB.Backend {
	case "pgvector":
		pg, ok := d.store.(*postgres.Repository)
		if !ok {
			return fmt.Errorf("pgvector backend requires the postgres database driver")
		}
		d.index = pgvector.NewRepository(pg.Pool(), dimension)
		d.admin = pgvector.NewRepository(pg.Pool(), dimension)
	case "qdrant":
		repo, err := qdrant.NewRepository(d.cfg.VectorDB.Qdrant, dimension)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		d.index = repo
		d.admin = repo
		d.closers = append(d.closers, repo.Close)
	case "memory":
		idx := exhaustive.NewIndex(dimension)
		d.index = idx
		d.admin = idx
	default:
		return fmt.Errorf("unknown vectordb backend %q", d.cfg.VectorDB.Backend)
	}
	return nil
}
