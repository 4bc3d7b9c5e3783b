package cli

import (
	"fmt"

	"reqlens/internal/bootstrap"
	"reqlens/internal/config"
	"reqlens/internal/logger"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inspection server",
		Long:  "Start the inspection server. Settings come from the environment and an optional .env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	conf, err := config.MustLoad()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(conf.LogLevel(), conf.LogFormat())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	b, err := bootstrap.New(conf, log)
	if err != nil {
		return err
	}
	return b.Run()
}
