// Package cli wires the golfstats commands together.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mickamy/golfstats/internal/config"
	"github.com/mickamy/golfstats/internal/logging"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// app is the state shared by every command of one invocation.
type app struct {
	version string

	envFile     string
	databaseURL string
	logLevel    string
	logFormat   string

	cfg *config.Config
	log *logrus.Logger
}

// NewRootCmd creates the root command and all subcommands.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}
	cmd := &cobra.Command{
		Use:   "golfstats",
		Short: "Load, query and serve PGA Tour statistics",
		Long: `golfstats downloads PGA Tour datasets from Kaggle, loads the CSV files
into a relational database and serves them through a JSON API, a small
web front end and plain-English questions.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file read before the environment")
	f.StringVar(&a.databaseURL, "database-url", "", "database URL (env: DATABASE_URL)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text or json (env: LOG_FORMAT)")

	cmd.AddCommand(
		a.serveCmd(),
		a.setupCmd(),
		a.downloadCmd(),
		a.loadCmd(),
		a.dedupeCmd(),
		a.askCmd(),
		a.tokenCmd(),
		a.versionCmd(),
	)
	return cmd
}

// setup resolves configuration with flags taking precedence over the
// environment, then builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.databaseURL != "" {
		cfg.DatabaseURL = a.databaseURL
		cfg.DatabaseURLDefaulted = false
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.cfg.DatabaseURLDefaulted {
		a.log.WithField("database_url", a.cfg.DatabaseURL).Warn("DATABASE_URL is not set, using the local SQLite file")
	}
	var queryLog orm.Logger
	if a.log.IsLevelEnabled(logrus.DebugLevel) {
		queryLog = logging.NewQueryLogger(a.log)
	}
	return store.Open(ctx, a.cfg.DatabaseURL, a.log, queryLog)
}

// openMigrated opens the store and fails unless setup has been run.
func (a *app) openMigrated(ctx context.Context) (*store.Store, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.RequireSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(version).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
