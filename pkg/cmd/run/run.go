package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/cmd/util"
	"github.com/mpapenbr/trackprogress/pkg/config"
	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/publish"
	"github.com/mpapenbr/trackprogress/pkg/publish/nats"
	"github.com/mpapenbr/trackprogress/pkg/sim"
	"github.com/mpapenbr/trackprogress/pkg/track/trackfile"
	"github.com/mpapenbr/trackprogress/pkg/utils"
)

var watch bool

//nolint:funlen // by design
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run file",
		Short: "runs scripted cars continuously and publishes ranking changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startRun(cmd.Context(), args[0])
		},
	}
	util.AddDriverFlags(cmd)
	cmd.Flags().StringVar(&config.TickRate,
		"tick-rate",
		"50ms",
		"duration between two ticks")
	cmd.Flags().BoolVar(&watch,
		"watch",
		true,
		"reload the tracks when the file changes")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout prints to console)")
	return cmd
}

//nolint:funlen,cyclop // by design
func startRun(ctx context.Context, file string) error {
	logger := log.GetFromContext(ctx).Named("run")
	path, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	rate, err := time.ParseDuration(config.TickRate)
	if err != nil || rate <= 0 {
		logger.Warn("Invalid tick rate. Setting default 50ms", log.String("value", config.TickRate))
		rate = 50 * time.Millisecond
	}

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		logger.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			logger.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			logger.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}
	if telemetry != nil {
		defer telemetry.Shutdown()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := publish.NewRankingFeed(publish.WithLogger(logger.Named("feed")))
	defer feed.Close()
	go logRankingEvents(logger.Named("ranking"), feed.Subscribe())

	var publisher *nats.Publisher
	if config.NatsURL != "" {
		var closeConn func()
		if publisher, closeConn, err = util.ConnectNats("tps-run"); err != nil {
			return err
		}
		defer closeConn()
		publisher.Forward(ctx, feed)
	}

	lp := newLoop(path, trackfile.NewStore(trackfile.WithLogger(logger.Named("store"))),
		feed, publisher, logger)
	if err := lp.build(ctx); err != nil {
		return err
	}

	var fileEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		// editors often replace the file, so the directory is watched
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		fileEvents, watchErrors = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	logger.Info("Run started", log.String("file", path), log.Duration("tickRate", rate))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Run terminated", log.Int("generations", lp.generation))
			return nil
		case <-ticker.C:
			lp.tick()
		case ev := <-fileEvents:
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			logger.Info("track file changed", log.String("op", ev.Op.String()))
			if err := lp.reload(ctx); err != nil {
				logger.Error("reload failed, keeping current tracks", log.ErrorField(err))
			}
		case err := <-watchErrors:
			logger.Warn("file watcher", log.ErrorField(err))
		}
	}
}

func logRankingEvents(l *log.Logger, ch <-chan model.RankingEvent) {
	for ev := range ch {
		l.Debug("ranking changed",
			log.String("track", ev.TrackName),
			log.String("slot", ev.Slot.String()),
			log.String("car", ev.CarID),
			log.Float("reward", ev.Reward),
			log.Uint64("tick", ev.Tick))
	}
}

// loop owns the manager of the current tracks. All methods are called from
// the run goroutine.
type loop struct {
	path       string
	store      *trackfile.Store
	feed       *publish.RankingFeed
	publisher  *nats.Publisher
	runner     *sim.Runner
	generation int
	hash       string // content hash of the loaded file
	l          *log.Logger
}

var errNoRunner = errors.New("no tracks loaded")

//nolint:whitespace // editor/linter issue
func newLoop(
	path string,
	store *trackfile.Store,
	feed *publish.RankingFeed,
	publisher *nats.Publisher,
	l *log.Logger,
) *loop {
	return &loop{path: path, store: store, feed: feed, publisher: publisher, l: l}
}

func (lp *loop) build(ctx context.Context) error {
	hash, err := utils.HashFile(lp.path)
	if err != nil {
		return err
	}
	entries, err := util.LoadEntries(ctx, lp.store, lp.path, config.Tracks)
	if err != nil {
		return err
	}
	m, err := util.BuildManager(entries, config.Cars, util.PrototypeOptions())
	if err != nil {
		return err
	}
	for _, s := range m.Sessions() {
		lp.feed.Attach(s)
	}
	lp.runner = sim.NewRunner(m, sim.WithLogger(lp.l.Named("sim")))
	lp.hash = hash
	lp.l.Info("tracks loaded",
		log.Int("tracks", len(entries)),
		log.Int("cars", config.Cars),
		log.String("runId", lp.runner.RunID()))
	return nil
}

// reload rebuilds the ledgers if the file content changed. On error the
// current tracks stay in use.
func (lp *loop) reload(ctx context.Context) error {
	if hash, err := utils.HashFile(lp.path); err == nil && hash == lp.hash {
		lp.l.Debug("track file content unchanged")
		return nil
	}
	lp.store.InvalidateFile(ctx, lp.path)
	prev := lp.runner
	if err := lp.build(ctx); err != nil {
		lp.runner = prev
		return err
	}
	if prev != nil {
		// the cars of the replaced tracks are destroyed
		if err := prev.Manager().SetCarCount(0); err != nil {
			lp.l.Warn("could not release previous cars", log.ErrorField(err))
		}
	}
	lp.generation = 0
	return nil
}

// tick steps the cars. Once no car is active anymore the generation is
// finished and all cars start over.
func (lp *loop) tick() {
	if lp.runner == nil {
		lp.l.Error("tick skipped", log.ErrorField(errNoRunner))
		return
	}
	if lp.runner.Active() {
		lp.runner.Step()
		return
	}
	lp.finishGeneration()
	if err := lp.runner.Manager().Restart(); err != nil {
		lp.l.Error("restart failed", log.ErrorField(err))
	}
}

func (lp *loop) finishGeneration() {
	lp.generation++
	snapshots := lp.runner.Snapshots()
	for i := range snapshots {
		snap := &snapshots[i]
		if len(snap.Standings) > 0 {
			lp.l.Info("generation finished",
				log.Int("generation", lp.generation),
				log.String("track", snap.TrackName),
				log.String("best", snap.Standings[0].CarID),
				log.String("completion", util.Percent(snap.Standings[0].Reward)))
		}
		if lp.publisher == nil {
			continue
		}
		if err := lp.publisher.PublishFitness(snap); err != nil {
			lp.l.Error("could not publish fitness", log.ErrorField(err))
		}
	}
}
