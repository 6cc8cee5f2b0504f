package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sensorledger/integrity/module/metrics"
)

func init() {
	rootCmd.AddCommand(contractCmd)
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "print the current sensor, cid format and root of the contract",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := LoadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}

		ctx := context.Background()
		services, err := InitServices(ctx, config, metrics.NewNoopCollector())
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize services")
		}
		defer services.Close()

		sensor, err := services.Reader.Sensor(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read sensor address")
		}
		format, err := services.Reader.CidFormat(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read cid format")
		}
		root, err := services.Reader.CurrentRoot(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read merkle root")
		}

		PrettyPrint(map[string]interface{}{
			"sensor":      sensor,
			"cid_format":  format,
			"merkle_root": root,
		})
	},
}
