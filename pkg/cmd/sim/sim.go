package sim

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/cmd/util"
	"github.com/mpapenbr/trackprogress/pkg/config"
	"github.com/mpapenbr/trackprogress/pkg/model"
	simulation "github.com/mpapenbr/trackprogress/pkg/sim"
	"github.com/mpapenbr/trackprogress/pkg/track/trackfile"
)

func NewSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim file",
		Short: "runs scripted cars on the tracks of a file and displays the standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	util.AddDriverFlags(cmd)
	cmd.Flags().IntVar(&config.Ticks,
		"ticks",
		1000,
		"max number of ticks to simulate")
	return cmd
}

func runSim(ctx context.Context, w io.Writer, path string) error {
	logger := log.GetFromContext(ctx).Named("sim")
	entries, err := util.LoadEntries(ctx, trackfile.NewStore(), path, config.Tracks)
	if err != nil {
		return err
	}
	m, err := util.BuildManager(entries, config.Cars, util.PrototypeOptions())
	if err != nil {
		return err
	}
	runner := simulation.NewRunner(m, simulation.WithLogger(logger))
	done, err := runner.Run(ctx, config.Ticks)
	if err != nil {
		return err
	}
	logger.Info("simulation done", log.String("runId", runner.RunID()), log.Int("ticks", done))

	snapshots := runner.Snapshots()
	for i := range snapshots {
		if err := printStandings(w, &snapshots[i]); err != nil {
			return err
		}
	}
	if config.NatsURL == "" {
		return nil
	}
	publisher, closeConn, err := util.ConnectNats("tps-sim")
	if err != nil {
		return err
	}
	defer closeConn()
	for i := range snapshots {
		if err := publisher.PublishFitness(&snapshots[i]); err != nil {
			return err
		}
	}
	logger.Info("fitness published", log.Int("tracks", len(snapshots)))
	return nil
}

func printStandings(w io.Writer, snap *model.FitnessSnapshot) error {
	fmt.Fprintf(w, "track %s after %d ticks\n", snap.TrackName, snap.Tick)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "rank\tcar\tcheckpoint\tcompletion\tenabled\t")
	for _, st := range snap.Standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%t\t\n",
			st.Rank, st.CarID, st.CheckpointIndex, util.Percent(st.Reward), st.Enabled)
	}
	return tw.Flush()
}
