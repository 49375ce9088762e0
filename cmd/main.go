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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/api"
	"github.com/fyerfyer/pitch-analyst/api/handler"
	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/config"
	"github.com/fyerfyer/pitch-analyst/internal/agent"
	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
	"github.com/fyerfyer/pitch-analyst/internal/bootstrap"
	"github.com/fyerfyer/pitch-analyst/internal/cache"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/embedding"
	"github.com/fyerfyer/pitch-analyst/internal/llm"
	"github.com/fyerfyer/pitch-analyst/internal/refiner"
	"github.com/fyerfyer/pitch-analyst/internal/report"
	"github.com/fyerfyer/pitch-analyst/internal/repository"
	"github.com/fyerfyer/pitch-analyst/internal/retrieval"
	"github.com/fyerfyer/pitch-analyst/internal/services"
	"github.com/fyerfyer/pitch-analyst/internal/vectordb"
	"github.com/fyerfyer/pitch-analyst/pkg/storage"
)

// embedWorkers 入库时并发的嵌入请求数
const embedWorkers = 4

// models 启动时创建的模型客户端，未配置密钥的为nil
type models struct {
	text     llm.Client
	vision   llm.Client
	docEmbed embedding.Client
	qryEmbed embedding.Client
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// .env 不存在时只使用进程环境变量
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	logger := setupLogger(cfg)
	logger.Info("Starting pitch analyst...")

	db, err := bootstrap.Database(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()
	runs := repository.NewRunRepositoryWithDB(db)
	memos := repository.NewMemoRepositoryWithDB(db)
	decks := repository.NewDeckRepositoryWithDB(db)

	store, err := bootstrap.Storage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	c, err := bootstrap.Cache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}
	registry := corpus.NewRegistry(c)

	index, err := bootstrap.VectorIndex(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector index: %v", err)
	}
	defer index.Close()

	queue, err := bootstrap.TaskQueue(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize task queue: %v", err)
	}
	defer queue.Close()

	m := setupModels(cfg, logger)
	retrier := bootstrap.Retrier(cfg, logger)
	renderer := report.NewRenderer()
	pageRenderer := document.NewRenderer(cfg.Extraction.DPI, cfg.Extraction.RenderWorkers)

	var uploader *corpus.Uploader
	if m.docEmbed != nil {
		uploader = corpus.NewUploader(store,
			embedding.NewBatchProcessor(m.docEmbed, cfg.Embed.BatchSize, embedWorkers),
			index, corpus.WithUploaderLogger(logger))
	}

	pitch := setupPitchService(cfg, logger, m, store, queue, registry, uploader, decks, runs, renderer, pageRenderer, retrier)
	memo := setupMemoService(cfg, logger, m, index, c, registry, uploader, runs, renderer, retrier)
	ingest, bench := setupBenchmark(cfg, logger, m, store, queue, memos, runs, renderer, pageRenderer, retrier)

	services.RegisterTaskHandlers(queue, services.NewArtifactUploader(store, logger), ingest)
	if err := queue.Start(); err != nil {
		logger.Fatalf("Failed to start task worker: %v", err)
	}

	health := handler.NewHealthHandler(map[string]bool{
		handler.ServicePDFProcessor: pitch != nil,
		handler.ServiceRAG:          uploader != nil,
		handler.ServiceAgent:        memo != nil,
		handler.ServiceDealNote:     pitch != nil && m.text != nil,
		handler.ServiceBenchmark:    bench != nil,
		handler.ServiceMemoStore:    ingest != nil,
		handler.ServiceTaskQueue:    true,
	})

	r := api.SetupRouter(api.Handlers{
		Pitch:     handler.NewPitchHandler(pitch),
		Memo:      handler.NewMemoHandler(memo),
		Benchmark: handler.NewBenchmarkHandler(bench, ingest),
		Task:      handler.NewTaskHandler(queue),
		Health:    health,
	}, registry, cfg.Server.MaxUploadMB<<20)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}

// setupLogger 设置日志级别和输出文件
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := middleware.GetLogger()
	err := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to configure logger, using defaults")
	}
	return logger
}

// setupModels 创建模型客户端，失败的客户端对应服务标记为不可用
func setupModels(cfg *config.Config, logger *logrus.Logger) models {
	var m models
	var err error
	if m.text, err = bootstrap.LLM(cfg); err != nil {
		logger.WithError(err).Warn("LLM client unavailable")
		m.text = nil
	}
	if m.vision, err = bootstrap.VisionLLM(cfg); err != nil {
		logger.WithError(err).Warn("Vision client unavailable")
		m.vision = nil
	}
	if m.docEmbed, err = bootstrap.Embedder(cfg, embedding.TaskRetrievalDocument); err != nil {
		logger.WithError(err).Warn("Embedding client unavailable")
		m.docEmbed = nil
	}
	if m.qryEmbed, err = bootstrap.Embedder(cfg, embedding.TaskRetrievalQuery); err != nil {
		m.qryEmbed = nil
	}
	return m
}

// setupPitchService 路演上传和交易备忘，需要多模态模型和嵌入
func setupPitchService(
	cfg *config.Config,
	logger *logrus.Logger,
	m models,
	store storage.Storage,
	queue *bootstrap.Queue,
	registry *corpus.Registry,
	uploader *corpus.Uploader,
	decks repository.DeckRepository,
	runs repository.RunRepository,
	renderer *report.Renderer,
	pageRenderer *document.Renderer,
	retrier llm.Retrier,
) *services.PitchService {
	if m.vision == nil || uploader == nil {
		return nil
	}

	processor := document.NewPDFProcessor(store, m.vision,
		document.WithRenderer(pageRenderer),
		document.WithRetrier(retrier),
		document.WithTaskQueue(queue),
		document.WithArtifactUpload(cfg.Extraction.UploadImages),
		document.WithLogger(logger),
	)

	chunkCfg := document.DefaultChunkConfig()
	chunkCfg.MinChunkSize = cfg.Chunking.MinChunkSize
	chunkCfg.MaxChunkSize = cfg.Chunking.MaxChunkSize
	chunkCfg.Overlap = cfg.Chunking.Overlap

	opts := []services.PitchOption{
		services.WithStatusManager(services.NewDeckStatusManager(decks, logger)),
		services.WithPitchRuns(runs),
		services.WithPitchLogger(logger),
	}
	if m.text != nil {
		rf := refiner.NewRefiner(m.text, refiner.WithRetrier(retrier), refiner.WithLogger(logger))
		opts = append(opts, services.WithDealNotes(rf, renderer))
	}
	return services.NewPitchService(processor, document.NewChunkAssembler(chunkCfg), uploader, registry, opts...)
}

// setupMemoService 检索增强的投资备忘录
func setupMemoService(
	cfg *config.Config,
	logger *logrus.Logger,
	m models,
	index vectordb.Repository,
	c cache.Cache,
	registry *corpus.Registry,
	uploader *corpus.Uploader,
	runs repository.RunRepository,
	renderer *report.Renderer,
	retrier llm.Retrier,
) *services.MemoService {
	if m.text == nil || m.qryEmbed == nil || uploader == nil {
		return nil
	}

	tool := retrieval.NewTool(m.qryEmbed, index, retrieval.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		HybridAlpha:         cfg.Retrieval.HybridAlpha,
		CacheTTL:            time.Duration(cfg.Retrieval.CacheTTL) * time.Second,
	}, retrieval.WithCache(c), retrieval.WithLogger(logger))

	analyst := agent.NewAgent(m.text, tool,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithRetrier(retrier),
		agent.WithLogger(logger),
	)
	return services.NewMemoService(registry, uploader, analyst, renderer, runs, logger)
}

// setupBenchmark 备忘录入库和行业基准分析
func setupBenchmark(
	cfg *config.Config,
	logger *logrus.Logger,
	m models,
	store storage.Storage,
	queue *bootstrap.Queue,
	memos repository.MemoRepository,
	runs repository.RunRepository,
	renderer *report.Renderer,
	pageRenderer *document.Renderer,
	retrier llm.Retrier,
) (*services.IngestService, *services.BenchmarkService) {
	if m.text == nil {
		return nil, nil
	}

	textOpts := []benchmark.TextExtractorOption{
		benchmark.WithTextRetrier(retrier),
		benchmark.WithTextLogger(logger),
	}
	if cfg.Benchmark.UseVision && m.vision != nil {
		textOpts = append(textOpts, benchmark.WithVision(m.vision, pageRenderer))
	}
	text := benchmark.NewTextExtractor(textOpts...)

	extractor := benchmark.NewExtractor(m.text,
		benchmark.WithExtractorRetrier(retrier),
		benchmark.WithExtractorLogger(logger),
	)

	flowOpts := []benchmark.FlowOption{
		benchmark.WithRenderer(renderer),
		benchmark.WithUSDToINR(cfg.Benchmark.UsdToInr),
		benchmark.WithFlowLogger(logger),
	}
	if cfg.Benchmark.AISummary {
		flowOpts = append(flowOpts, benchmark.WithSummarizer(benchmark.NewSummarizer(m.text, retrier, logger)))
	}
	flow := benchmark.NewFlow(extractor, memos, flowOpts...)

	ingest := services.NewIngestService(store, text, extractor, memos, queue, logger)
	bench := services.NewBenchmarkService(store, text, flow, runs, logger)
	return ingest, bench
}
