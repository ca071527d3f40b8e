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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"courserag/internal/chunker"
	"courserag/internal/config"
	"courserag/internal/embedding"
	"courserag/internal/embedding/hash"
	"courserag/internal/embedding/openai"
	"courserag/internal/generation"
	"courserag/internal/generation/anthropic"
	"courserag/internal/server"
	"courserag/internal/service"
	"courserag/internal/session"
	"courserag/internal/tools"
	"courserag/internal/vectorstore"
	"courserag/internal/vectorstore/memory"
	"courserag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		docsDir string
		query   string
		clear   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/courserag/config.yaml if not provided)")
	flag.StringVar(&docsDir, "docs", "docs", "Folder of course documents to ingest on startup")
	flag.StringVar(&query, "q", "", "Answer a single query and exit instead of serving")
	flag.BoolVar(&clear, "clear", false, "Clear existing collections before ingesting")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hash", "":
		emb = hash.NewEmbedder(hash.DefaultDimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			logger.Fatal("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Embedder.OpenAI.Dimension,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			logger.Fatal("openai embedder init failed", zap.Error(err))
		}
		emb = client
	default:
		logger.Fatal("unknown embedder", zap.String("type", cfg.Embedder.Type))
	}

	var engine vectorstore.Engine
	switch cfg.VectorStore.Type {
	case "memory", "":
		engine = memory.NewEngine()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			logger.Fatal("qdrant config missing")
		}
		qe, err := qdrant.NewEngine(qdrant.Config{
			URL:       cfg.VectorStore.Qdrant.URL,
			APIKey:    cfg.VectorStore.Qdrant.APIKey,
			Dimension: emb.Dimension(),
			Timeout:   time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
		if err != nil {
			logger.Fatal("qdrant engine init failed", zap.Error(err))
		}
		engine = qe
	default:
		logger.Fatal("unknown vector store", zap.String("type", cfg.VectorStore.Type))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.New(ctx, engine, emb, cfg.VectorStore.MaxResults)
	if err != nil {
		logger.Fatal("vector store init failed", zap.Error(err))
	}

	client, err := anthropic.NewClient(anthropic.Config{
		BaseURL:   cfg.Generator.BaseURL,
		APIKeyEnv: cfg.Generator.APIKeyEnv,
		Timeout:   time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Fatal("generator init failed", zap.Error(err))
	}
	generator := generation.NewGenerator(client, cfg.Generator.Model, cfg.Generator.MaxTokens, cfg.Generator.Temperature)

	toolManager := tools.NewManager()
	if err := toolManager.Register(tools.NewCourseSearchTool(store)); err != nil {
		logger.Fatal("register search tool", zap.Error(err))
	}
	if err := toolManager.Register(tools.NewCourseOutlineTool(store)); err != nil {
		logger.Fatal("register outline tool", zap.Error(err))
	}

	sessions := session.NewManager(cfg.Session.MaxHistory)
	svc := service.New(chunker.NewProcessor(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		store, generator, sessions, toolManager, logger)

	courses, chunks, err := svc.AddCourseFolder(ctx, docsDir, clear)
	if err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
	logger.Info("startup ingestion complete",
		zap.Int("courses", courses),
		zap.Int("chunks", chunks))

	if query != "" {
		answer, sources, err := svc.Query(ctx, query, "")
		if err != nil {
			logger.Fatal("query failed", zap.Error(err))
		}
		fmt.Println(answer)
		for _, src := range sources {
			if src.Link != "" {
				fmt.Printf("  %s (%s)\n", src.Text, src.Link)
			} else {
				fmt.Printf("  %s\n", src.Text)
			}
		}
		return
	}

	srv := server.NewServer(svc, &cfg.Server, logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
