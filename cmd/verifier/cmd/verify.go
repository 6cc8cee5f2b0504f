package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sensorledger/integrity/engine/verification/verifier"
	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/module/merkle"
	"github.com/sensorledger/integrity/module/metrics"
	"github.com/sensorledger/integrity/module/readings"
)

const defaultTimezone = "Europe/Berlin"

var (
	flagData        string
	flagReport      string
	flagTimezone    string
	flagMetricsFile string
)

type runMetrics interface {
	module.IntegrityMetrics
	module.ContentCacheMetrics
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&flagData, "data", "",
		"readings file or data API URL, defaults to the configured data API")
	verifyCmd.Flags().StringVar(&flagReport, "report", "", "write the full result as JSON to this file")
	verifyCmd.Flags().StringVar(&flagTimezone, "timezone", defaultTimezone, "time zone used to print the verified range")
	verifyCmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write run metrics in the prometheus text format to this file")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "verify stored readings against the commitments of the contract",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := LoadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}

		loc, err := time.LoadLocation(flagTimezone)
		if err != nil {
			log.Fatal().Err(err).Str("timezone", flagTimezone).Msg("unknown time zone")
		}

		source := flagData
		if source == "" {
			source = config.DataAPIURL
		}
		if source == "" {
			log.Fatal().Msg("missing flag --data and no data API configured")
		}

		var (
			collector runMetrics = metrics.NewNoopCollector()
			registry  *prometheus.Registry
		)
		if flagMetricsFile != "" {
			registry = prometheus.NewRegistry()
			collector = metrics.NewIntegrityCollector(registry)
		}

		ctx := context.Background()
		data, err := readings.NewLoader(log.Logger).Load(ctx, source)
		if err != nil {
			log.Fatal().Err(err).Str("source", source).Msg("could not load readings")
		}

		services, err := InitServices(ctx, config, collector)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize services")
		}
		defer services.Close()

		engine := verifier.New(log.Logger, collector, services.Reader, services.Content,
			merkle.NewBuilder(), config.Deployment(), config.Workers)
		result, err := engine.Verify(ctx, data)
		if err != nil {
			log.Fatal().Err(err).Msg("verification run aborted")
		}
		log.Debug().
			Uint64("cache_hits", services.Content.Hits()).
			Uint64("cache_misses", services.Content.Misses()).
			Msg("content cache statistics")

		NewSummary(os.Stdout, loc).Write(result)

		if flagReport != "" {
			writeReport(flagReport, result)
		}
		if registry != nil {
			err = prometheus.WriteToTextfile(flagMetricsFile, registry)
			if err != nil {
				log.Error().Err(err).Str("file", flagMetricsFile).Msg("could not write metrics")
			}
		}

		if !result.Passed {
			services.Close()
			os.Exit(1)
		}
	},
}

func writeReport(path string, result *verifier.Result) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("could not encode report")
	}
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("could not write report")
	}
	log.Info().Str("file", path).Msg("report written")
}
