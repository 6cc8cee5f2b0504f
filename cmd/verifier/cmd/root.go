package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagConfigFile string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "verifier",
	Short: "Verify sensor readings against their on-chain commitments",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"dotenv file holding the deployment settings")
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "loglevel", "l", "info",
		"log level (panic, fatal, error, warn, info, debug)")

	initDeploymentFlags(rootCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.AutomaticEnv()

	if flagConfigFile == "" {
		return
	}
	viper.SetConfigFile(flagConfigFile)
	viper.SetConfigType("env")
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("could not read config file %s: %v\n", flagConfigFile, err)
		os.Exit(1)
	}
}

func initLogger() {
	lvl, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).
		With().
		Timestamp().
		Logger().
		Level(lvl)
	if err != nil {
		log.Warn().Str("loglevel", flagLogLevel).Msg("unknown log level, using info")
	}
}
