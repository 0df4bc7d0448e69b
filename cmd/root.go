package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inkwell/internal/observability"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Multi-role collaboration engine for novel writing",
	Long: `Inkwell runs collaboration sessions where a writer works with a
fixed panel of AI roles (plot advisor, dialogue master, reviewer, ...).
Roles propose suggestions in parallel; the writer accepts or rejects
them and merges the accepted ones into the story.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.inkwell.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".inkwell")
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		observability.Logger().Info("using config file", "file", viper.ConfigFileUsed())
	}

	switch viper.GetString("log_level") {
	case "debug":
		observability.SetLevel(slog.LevelDebug)
	case "warn":
		observability.SetLevel(slog.LevelWarn)
	case "error":
		observability.SetLevel(slog.LevelError)
	}
}
