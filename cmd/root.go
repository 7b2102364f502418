// Package cmd defines and implements the CLI commands of the wxmaps executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/app"
	"github.com/nickelblock/forecast-maps/internal/bulletins"
	"github.com/nickelblock/forecast-maps/internal/config"
	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/datasets"
	"github.com/nickelblock/forecast-maps/internal/logging"
	pkgconfig "github.com/nickelblock/forecast-maps/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application container.
// Tests inject a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Download(ctx context.Context, product string) ([]crawler.Artifact, error)
	Maps(ctx context.Context, req app.MapRequest) ([]string, error)
	Bulletins(ctx context.Context, kind string) ([]string, error)
	Schedule(ctx context.Context) error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.Build(ctx, cfg, app.Options{})
}

// newRootCmd creates the root command and its subcommands. The returned
// func closes the application if a command built one.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		opened  App
	)
	closeApp := func() {
		if opened != nil {
			opened.Close()
			opened = nil
		}
	}

	cmd := &cobra.Command{
		Use:   "wxmaps",
		Short: "Weather forecast maps and bulletins from NOAA data.",
		Long: `wxmaps downloads NOAA forecast datasets, renders regional weather maps
from them and scrapes the text bulletins of the NWS, SPC and NHC.
Every product lands in the configured blob store.`,
		SilenceUsage: true,

		// Runs after the config is loaded and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}
			cfg, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opened = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cobra.OnInitialize(func() {
		logger, err := logging.New(viper.GetBool("logging.development"))
		if err != nil {
			logger = zap.NewNop()
		}
		pkgconfig.InitConfig(cfgFile, logger)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.String("output", "output", "directory products are written to")
	flags.Bool("dev", false, "human-readable development logging")
	_ = viper.BindPFlag("output.dir", flags.Lookup("output"))
	_ = viper.BindPFlag("logging.development", flags.Lookup("dev"))

	cmd.AddCommand(
		newDownloadCmd(),
		newMapsCmd(),
		newBulletinsCmd(),
		newScheduleCmd(),
	)
	return cmd, closeApp
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// printLines writes one URI per line to the command's output.
func printLines(cmd *cobra.Command, lines []string) {
	for _, line := range lines {
		cmd.Println(line)
	}
}

// partialFailure reports whether err only says that some of the products
// were missing upstream. Joined errors qualify when every one of them does.
func partialFailure(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		for _, e := range errs {
			if !partialFailure(e) {
				return false
			}
		}
		return len(errs) > 0
	}
	if err == datasets.ErrIncompleteDays || err == bulletins.ErrSectionNotFound {
		return true
	}
	return partialFailure(errors.Unwrap(err))
}

// execute runs the command tree and closes the application on every path,
// including a failed RunE.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, closeApp := newRootCmd()
	defer closeApp()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
