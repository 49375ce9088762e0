package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/config"
	"github.com/fyerfyer/pitch-analyst/internal/benchmark"
	"github.com/fyerfyer/pitch-analyst/internal/bootstrap"
	"github.com/fyerfyer/pitch-analyst/internal/database"
	"github.com/fyerfyer/pitch-analyst/internal/document"
	"github.com/fyerfyer/pitch-analyst/internal/repository"
	"github.com/fyerfyer/pitch-analyst/internal/services"
)

// commonFlags 每个子命令各自持有一份
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config file",
			Value: "config.yaml",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Path to .env file",
			Value: ".env",
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "memo-ingest",
		Usage: "Manage the sector memo library used for benchmarking",
		Commands: []*cli.Command{
			{
				Name:  "dir",
				Usage: "Ingest every PDF in a directory",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Directory of memo PDFs, defaults to benchmark.memo_folder",
					},
				}, commonFlags()...),
				Action: ingestDirAction,
			},
			{
				Name:   "list",
				Usage:  "List ingested memos",
				Flags:  commonFlags(),
				Action: listAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// ingestDirAction 同步入库目录下的备忘录
func ingestDirAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := load(cmd)
	if err != nil {
		return err
	}
	dir := cmd.String("path")
	if dir == "" {
		dir = cfg.Benchmark.MemoFolder
	}
	if dir == "" {
		return errors.New("no memo directory given")
	}

	ingest, err := newIngestService(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	logger.WithField("dir", dir).Info("Ingesting sector memos")
	summary, err := ingest.IngestDir(ctx, dir)
	if summary != nil {
		logger.WithFields(logrus.Fields{
			"stored": len(summary.Stored),
			"failed": len(summary.Failed),
		}).Info("Memo ingestion finished")
		if out, mErr := json.MarshalIndent(summary, "", "  "); mErr == nil {
			fmt.Println(string(out))
		}
	}
	return err
}

// listAction 输出备忘录库
func listAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := load(cmd)
	if err != nil {
		return err
	}
	db, err := bootstrap.Database(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	memos, err := repository.NewMemoRepositoryWithDB(db).List(ctx)
	if err != nil {
		return err
	}
	for _, m := range memos {
		fmt.Printf("%-32s %-24s %v\n", m.ID, m.CompanyName, []string(m.Sectors))
	}
	return nil
}

func load(cmd *cli.Command) (*config.Config, *logrus.Logger, error) {
	if err := godotenv.Load(cmd.String("env")); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger := middleware.GetLogger()
	if err := middleware.ConfigureLogger(middleware.LogOptions{Level: cfg.Log.Level}); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newIngestService 不经过任务队列的入库服务
func newIngestService(cfg *config.Config, logger *logrus.Logger) (*services.IngestService, error) {
	db, err := bootstrap.Database(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := bootstrap.Storage(cfg)
	if err != nil {
		return nil, err
	}
	client, err := bootstrap.LLM(cfg)
	if err != nil {
		return nil, err
	}
	retrier := bootstrap.Retrier(cfg, logger)

	textOpts := []benchmark.TextExtractorOption{
		benchmark.WithTextRetrier(retrier),
		benchmark.WithTextLogger(logger),
	}
	if cfg.Benchmark.UseVision {
		vision, err := bootstrap.VisionLLM(cfg)
		if err != nil {
			return nil, err
		}
		renderer := document.NewRenderer(cfg.Extraction.DPI, cfg.Extraction.RenderWorkers)
		textOpts = append(textOpts, benchmark.WithVision(vision, renderer))
	}

	extractor := benchmark.NewExtractor(client,
		benchmark.WithExtractorRetrier(retrier),
		benchmark.WithExtractorLogger(logger),
	)
	return services.NewIngestService(store, benchmark.NewTextExtractor(textOpts...), extractor,
		repository.NewMemoRepositoryWithDB(db), nil, logger), nil
}
