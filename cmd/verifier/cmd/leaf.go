package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sensorledger/integrity/engine/verification/leaf"
	"github.com/sensorledger/integrity/module/metrics"
)

var flagLeafRow string

func init() {
	rootCmd.AddCommand(leafCmd)

	leafCmd.Flags().StringVar(&flagLeafRow, "row", "", "reading row as JSON array, or @file")
	_ = leafCmd.MarkFlagRequired("row")
}

var leafCmd = &cobra.Command{
	Use:   "leaf",
	Short: "build the leaf of a reading with the current cid format of the contract",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := LoadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}

		reading, err := ParseReading(flagLeafRow)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid reading")
		}

		ctx := context.Background()
		services, err := InitServices(ctx, config, metrics.NewNoopCollector())
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize services")
		}
		defer services.Close()

		format, err := services.Reader.CidFormat(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read cid format")
		}
		template, err := services.Content.Fetch(ctx, format.TemplateRef)
		if err != nil {
			log.Fatal().Err(err).Str("ref", format.TemplateRef).Msg("could not fetch leaf template")
		}

		cid, err := leaf.BuildLeaf(template, format, config.Deployment(), reading)
		if err != nil {
			log.Fatal().Err(err).Msg("could not build leaf")
		}
		fmt.Println(cid)
	},
}
