package main

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/sohamgugale/finrag/internal/api"
	"github.com/sohamgugale/finrag/internal/chunk"
	"github.com/sohamgugale/finrag/internal/config"
	"github.com/sohamgugale/finrag/internal/index"
	"github.com/sohamgugale/finrag/internal/logger"
	"github.com/sohamgugale/finrag/internal/service"
	"github.com/sohamgugale/finrag/internal/store"
)

func main() {
	// config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logg.Sync() }()

	// store
	dbStore, err := store.NewPgStore(cfg.PgConn, cfg.EmbedDim)
	if err != nil {
		logg.Fatalw("postgres connection failed", "err", err)
	}

	// rebuild the sparse index from whatever survived the last run
	idx := index.New()
	chunks, err := dbStore.AllChunks()
	if err != nil {
		logg.Fatalw("failed to load corpus", "err", err)
	}
	idx.Replace(chunks)

	// services
	llm := service.NewLLMClient(cfg)
	var vectors service.VectorSearcher
	if llm.EmbeddingsEnabled() {
		vectors = dbStore
	}
	rag := service.NewRAGService(idx, vectors, llm, cfg, logg)
	chunker := chunk.New(cfg.SentencesPerChunk, cfg.ChunkMinChars, cfg.ChunkMaxChars)

	// api
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // room for multi-file PDF uploads
	})
	h := api.NewHandler(rag, dbStore, idx, llm, chunker, cfg, logg)
	api.RegisterRoutes(app, h)

	logg.Infow("server started", "addr", cfg.ServerAddr, "chunks", idx.Len(), "dense", llm.EmbeddingsEnabled())
	if err := app.Listen(cfg.ServerAddr); err != nil {
		logg.Fatalw("server stopped", "err", err)
	}
}
