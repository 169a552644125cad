// Copyright © 2019 Andrei Gubarev <agubarev@protonmail.com>

package cmd

import (
	"fmt"
	"os"

	"github.com/agubarev/handbook/internal/config"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "handbook",
	Short: "Training manuals and quizzes for the whole business.",
	Long:  ``,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}

		if cfg, err = config.Load(v); err != nil {
			return err
		}

		if logger, err = util.DefaultLogger(cfg.Log.Debug, cfg.Log.Dir); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.handbook.yaml)")
}
