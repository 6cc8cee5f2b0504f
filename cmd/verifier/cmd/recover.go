package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sensorledger/integrity/engine/verification/signature"
	"github.com/sensorledger/integrity/module/metrics"
)

var (
	flagRecoverRow string
	flagCheck      bool
)

func init() {
	rootCmd.AddCommand(recoverCmd)

	recoverCmd.Flags().StringVar(&flagRecoverRow, "row", "", "reading row as JSON array, or @file")
	recoverCmd.Flags().BoolVar(&flagCheck, "check", false, "compare the signer with the current sensor of the contract")
	_ = recoverCmd.MarkFlagRequired("row")
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "recover the signer of a reading",
	Run: func(cmd *cobra.Command, args []string) {
		reading, err := ParseReading(flagRecoverRow)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid reading")
		}

		signer, err := signature.RecoverSigner(reading)
		if err != nil {
			log.Fatal().Err(err).Msg("could not recover signer")
		}
		fmt.Println(signer.Hex())

		if !flagCheck {
			return
		}

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
		if sensor != signer {
			log.Error().Str("sensor", sensor.Hex()).Str("signer", signer.Hex()).Msg("signer is not the current sensor")
			services.Close()
			os.Exit(1)
		}
		log.Info().Str("sensor", sensor.Hex()).Msg("signer is the current sensor")
	},
}
