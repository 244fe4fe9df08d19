package util

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackprogress/pkg/config"
)

// AddDriverFlags registers the flags shared by the commands driving cars
func AddDriverFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&config.Tracks,
		"track",
		[]string{},
		"tracks to use (default: all tracks of the file)")
	cmd.Flags().IntVar(&config.Cars,
		"cars",
		10,
		"number of cars per track")
	cmd.Flags().Uint64Var(&config.Seed,
		"seed",
		1,
		"seed for the driver speeds")
	cmd.Flags().Float64Var(&config.MinSpeed,
		"min-speed",
		0.5,
		"min distance a driver moves per tick")
	cmd.Flags().Float64Var(&config.MaxSpeed,
		"max-speed",
		1.5,
		"max distance a driver moves per tick")
	cmd.Flags().IntVar(&config.MaxSteps,
		"max-steps",
		0,
		"steps after which a driver is disabled (0: no limit)")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server to publish to (empty: no publishing)")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		"tps",
		"subject prefix for published messages")
}
