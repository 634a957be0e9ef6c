// Command stagerun runs one participant session of an experiment: it loads
// the experiment definition from the remote store, walks the participant
// through the stages in the terminal, and synchronizes progress as the run
// advances.
//
// Usage:
//
//	stagerun --config config.yaml
//	stagerun --store http://localhost:8080 --experiment exp-42
//	stagerun --store http://localhost:8080 --experiment exp-42 --participant p-7 --resume
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/stagerun/config"
	"github.com/vadiminshakov/stagerun/internal"
	"github.com/vadiminshakov/stagerun/internal/clients"
	"github.com/vadiminshakov/stagerun/internal/services/progress"
	"github.com/vadiminshakov/stagerun/internal/services/scenario"
	"github.com/vadiminshakov/stagerun/internal/setup"
	"github.com/vadiminshakov/stagerun/internal/storage/journal"
	"github.com/vadiminshakov/stagerun/pkg/retrier"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	store := clients.NewStoreClient(cfg.StoreURL, cfg.RequestTimeout)

	jrnl, err := journal.NewStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open completion journal", zap.Error(err))
	}
	defer jrnl.Close()

	retr := retrier.New(
		retrier.WithMaxAttempts(cfg.RetryAttempts),
		retrier.WithBaseDelay(cfg.RetryBaseDelay),
		retrier.WithAttemptTimeout(cfg.RequestTimeout),
	)

	syncer := progress.NewSyncer(store, jrnl, retr, logger.Named("progress"))
	seq := internal.NewSequencer(store, syncer, cfg.ExperimentID, cfg.ParticipantID, cfg.Resume, logger.Named("sequencer"))
	scenarios := scenario.NewRunner(store, logger.Named("scenario"))
	ui := setup.NewUI(seq, scenarios, logger.Named("ui"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return ui.Run(ctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("session ended with error", zap.Error(err))
	}

	// one last shot at anything the network refused during the run
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := syncer.Flush(flushCtx); err != nil {
		logger.Warn("deferred progress left in the journal for the next session", zap.Error(err))
	}

	logger.Info("session finished",
		zap.String("experiment", cfg.ExperimentID),
		zap.String("participant", cfg.ParticipantID))
}
