package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/observability"
)

const defaultConfigPath = "rtmctl.toml"

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "rtmctl",
		Short:         "Real-time messaging socket client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "path to the rtmctl TOML config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log_level from the config")

	root.AddCommand(
		newWatchCmd(flags),
		newSendCmd(flags),
		newRoutesCmd(),
		newConfigCmd(flags),
	)
	return root
}

// loadConfig reads the config file and applies the process log level.
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	observability.InitLogger("rtmctl")
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg, nil
}
