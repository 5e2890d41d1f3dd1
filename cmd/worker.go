package cmd

import (
	"example.com/backstage/services/erpgateway/internal/itemsync"
	"example.com/backstage/services/erpgateway/internal/repositories"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that syncs item changes into the search index, the event queue and the cache`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func newSyncer(a *app) *itemsync.Syncer {
	opts := itemsync.Options{
		Cache:     a.cache,
		Publisher: a.publisher,
		Metrics:   a.metrics,
	}
	if a.db != nil {
		opts.Checkpoints = repositories.NewCheckpointRepository(a.db)
	} else {
		log.Warn().Msg("Database not configured, sync checkpoints are kept in memory")
	}
	if a.elastic != nil {
		opts.Indexer = a.elastic
	}
	return itemsync.NewSyncer(a.sessions, a.client, a.cfg.ItemGroups, a.syncStart, a.location, opts)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	syncer := newSyncer(a)

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		log.Info().Dur("interval", cfg.Sync.Interval).Msg("Starting item sync job")

		scheduler, err := gocron.NewScheduler(gocron.WithLocation(a.location))
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Sync.Interval),
			gocron.NewTask(func() {
				txnCtx, txn := a.tracer.StartTransaction(ctx, "item-sync")
				defer a.tracer.EndTransaction(txn)

				if _, err := syncer.Run(txnCtx); err != nil {
					a.tracer.RecordError(txn, err)
					log.Error().Err(err).Msg("Item sync pass failed")
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
