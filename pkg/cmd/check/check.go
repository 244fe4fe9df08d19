package check

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/cmd/util"
	"github.com/mpapenbr/trackprogress/pkg/config"
	"github.com/mpapenbr/trackprogress/pkg/track/trackfile"
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check file",
		Short: "validates a track file and displays the checkpoint ledgers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkTracks(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().StringSliceVar(&config.Tracks,
		"track",
		[]string{},
		"tracks to check (default: all tracks of the file)")
	return cmd
}

func checkTracks(ctx context.Context, w io.Writer, path string) error {
	logger := log.GetFromContext(ctx).Named("check")
	entries, err := util.LoadEntries(ctx,
		trackfile.NewStore(trackfile.WithLogger(logger)), path, config.Tracks)
	if err != nil {
		logger.Error("track file not valid", log.String("file", path), log.ErrorField(err))
		return err
	}
	for _, e := range entries {
		if err := printLedger(w, e); err != nil {
			return err
		}
	}
	logger.Info("track file is valid", log.String("file", path), log.Int("tracks", len(entries)))
	return nil
}

func printLedger(w io.Writer, e *trackfile.Entry) error {
	fmt.Fprintf(w, "track %s: %d checkpoints, length %s\n",
		e.Track.Name, e.Ledger.Len(), util.Fixed(e.Ledger.Length()))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "idx\tx\ty\tradius\tdist\taccDist\treward\taccReward\t")
	for _, cp := range e.Ledger.Checkpoints() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			cp.Index,
			util.Fixed(cp.Position.X),
			util.Fixed(cp.Position.Y),
			util.Fixed(cp.CaptureRadius),
			util.Fixed(cp.DistanceToPrevious),
			util.Fixed(cp.AccumulatedDistance),
			util.Percent(cp.RewardValue),
			util.Percent(cp.AccumulatedReward))
	}
	return tw.Flush()
}
