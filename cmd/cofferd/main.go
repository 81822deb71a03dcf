// Command cofferd runs the Coffer engine as a standalone HTTP daemon.
//
// Configuration is read from cofferd.yaml (or the file named by
// --config), overridable through COFFER_* environment variables and
// command-line flags. Deployments embedding Coffer in a Forge app use
// the extension package instead.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "cofferd",
		Short:         "Permissioned object store daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cofferd.yaml)")
	root.AddCommand(newServeCmd())

	return root
}

func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cofferd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/coffer")
	}

	viper.SetEnvPrefix("COFFER")
	viper.AutomaticEnv()

	viper.SetDefault("listen", ":8420")
	viper.SetDefault("backend", "memory")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("audit.disabled", false)

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; env and defaults cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("cofferd: read config: %w", err)
		}
	}
	return nil
}
