// Copyright © 2019 Andrei Gubarev <agubarev@protonmail.com>

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server"
	"github.com/agubarev/handbook/pkg/auth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the main Handbook server.",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, closeFn, err := core.Open(cfg, logger)
		if err != nil {
			return err
		}

		defer func() {
			if err := closeFn(); err != nil {
				logger.Warn("failed to release storage", zap.Error(err))
			}
		}()

		backend, err := auth.NewCacheBackend(cfg.Auth.TTL)
		if err != nil {
			return errors.Wrap(err, "failed to initialize token backend")
		}

		a, err := auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TTL, backend)
		if err != nil {
			return err
		}

		if err = a.SetLogger(logger); err != nil {
			return err
		}

		srv, err := server.New(c, a)
		if err != nil {
			return err
		}

		return srv.Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
