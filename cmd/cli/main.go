package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecosense/invascope/cmd/cli/commands"
	"github.com/ecosense/invascope/pkg/constants"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "invascope",
		Short: "Detect invasion signals in digital activity time series",
		Long: `invascope aligns multi-source digital activity series (Wikipedia,
Google health searches, Flickr, iNaturalist, YouTube, GBIF) for invasive
alien species, flags anomalous activity upticks, and measures their lead
or lag against documented invasion years.`,
		Version: constants.AppVersion,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.invascope.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(commands.NewDetectCmd())
	rootCmd.AddCommand(commands.NewSourcesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType(constants.DefaultConfigType)
		viper.SetConfigName(constants.DefaultConfigName)
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(constants.EnvPrefix)

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
