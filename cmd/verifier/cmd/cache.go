package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sensorledger/integrity/module/content"
)

func init() {
	rootCmd.AddCommand(cacheGCCmd)
}

var cacheGCCmd = &cobra.Command{
	Use:   "cache-gc",
	Short: "run value log garbage collection on the on-disk content cache",
	Run: func(cmd *cobra.Command, args []string) {
		dir := viperString(keyCacheDir)
		if dir == "" {
			log.Fatal().Msg("no content cache directory configured")
		}

		datastore, err := content.OpenDatastore(log.Logger, dir)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open content cache")
		}
		defer func() {
			if err := datastore.Close(); err != nil {
				log.Error().Err(err).Msg("could not close content cache")
			}
		}()

		err = datastore.CollectGarbage(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("garbage collection failed")
			return
		}
		log.Info().Str("dir", dir).Msg("garbage collection finished")
	},
}
