package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/golfstats/internal/auth"
	"github.com/mickamy/golfstats/internal/etl"
	"github.com/mickamy/golfstats/internal/kaggle"
	"github.com/mickamy/golfstats/internal/nlq"
	"github.com/mickamy/golfstats/internal/server"
	"github.com/mickamy/golfstats/internal/store"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and web front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openMigrated(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var signer *auth.Signer
			if a.cfg.SecretKey != "" {
				if signer, err = auth.NewSigner(a.cfg.SecretKey, a.cfg.TokenTTL); err != nil {
					return err
				}
			}
			srv, err := server.New(server.Options{Store: s, Signer: signer, Log: a.log, Version: a.version})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Addr
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env: GOLF_ADDR, default :5000)")
	return cmd
}

func (a *app) setupCmd() *cobra.Command {
	var reset, sample bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if reset {
				if err := s.Reset(ctx); err != nil {
					return err
				}
			}
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if sample {
				smp, err := s.SeedSample(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sample data: %d rows created (%s at %s, %s)\n",
					smp.Created, smp.Tournament.TournamentName, smp.Course.CourseName, smp.Player.FullName())
			}
			version, err := s.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			counts, err := s.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Database ready at schema %s (%s)\n", version, s.Dialect().Name())
			writeCounts(out, counts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop every table before migrating")
	cmd.Flags().BoolVar(&sample, "sample", false, "add a sample course, tournament and player")
	return cmd
}

func writeCounts(w io.Writer, c store.Counts) {
	fmt.Fprintf(w, "  players:            %d\n", c.Players)
	fmt.Fprintf(w, "  courses:            %d\n", c.Courses)
	fmt.Fprintf(w, "  tournaments:        %d\n", c.Tournaments)
	fmt.Fprintf(w, "  tournament results: %d\n", c.Results)
	fmt.Fprintf(w, "  yearly stats:       %d\n", c.YearlyStats)
	fmt.Fprintf(w, "  rounds:             %d\n", c.Rounds)
}

const manualDownload = `Kaggle credentials were not found. Either:
  1. create an API token at https://www.kaggle.com/settings and save it as
     ~/.kaggle/kaggle.json, or set KAGGLE_USERNAME and KAGGLE_KEY; or
  2. download the datasets by hand and unzip them under %s:
`

func (a *app) downloadCmd() *cobra.Command {
	var (
		refs    []string
		dataDir string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download PGA Tour datasets from Kaggle",
		Long: `Download PGA Tour datasets from Kaggle into <data-dir>/kaggle and write
a download report. Without --dataset the recommended datasets are fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataDir == "" {
				dataDir = a.cfg.DataDir
			}
			datasets := kaggle.RecommendedDatasets()
			if len(refs) > 0 {
				datasets = datasets[:0:0]
				for _, ref := range refs {
					ds, err := kaggle.ParseDataset(ref)
					if err != nil {
						return err
					}
					datasets = append(datasets, ds)
				}
			}

			out := cmd.OutOrStdout()
			creds, err := kaggle.LoadCredentials(a.cfg.KaggleUsername, a.cfg.KaggleKey)
			if errors.Is(err, kaggle.ErrNoCredentials) {
				fmt.Fprintf(out, manualDownload, filepath.Join(dataDir, kaggle.SubDir))
				for _, ds := range datasets {
					fmt.Fprintf(out, "     https://www.kaggle.com/datasets/%s → %s/\n", ds.Ref, ds.Name)
				}
			}
			if err != nil {
				return err
			}

			var opts []kaggle.Option
			if baseURL != "" {
				opts = append(opts, kaggle.WithBaseURL(baseURL))
			}
			client := kaggle.NewClient(creds, a.log.WithField("component", "kaggle"), opts...)
			outcomes := kaggle.NewDownloader(client, a.log).DownloadAll(cmd.Context(), datasets, dataDir)
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(out, "✗ %s: %v\n", o.Dataset.Ref, o.Err)
					continue
				}
				fmt.Fprintf(out, "✓ %s → %s (%d files)\n", o.Dataset.Ref, o.Download.Dir, len(o.Download.Files))
			}

			ok := kaggle.Succeeded(outcomes)
			if ok > 0 {
				path, err := kaggle.WriteReport(dataDir, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Report written to %s\n", path)
			}
			if ok == 0 {
				return fmt.Errorf("none of %d datasets could be downloaded", len(outcomes))
			}
			fmt.Fprintf(out, "%d of %d datasets downloaded\n", ok, len(outcomes))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&refs, "dataset", nil, "dataset as owner/slug[=directory], repeatable")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (env: GOLF_DATA_DIR, default ./data)")
	cmd.Flags().StringVar(&baseURL, "kaggle-api", "", "Kaggle API base URL")
	_ = cmd.Flags().MarkHidden("kaggle-api")
	return cmd
}

func (a *app) loadCmd() *cobra.Command {
	var (
		opts   etl.Options
		report string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load tournament and yearly CSV files into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if opts.DataDir == "" {
				opts.DataDir = a.cfg.DataDir
			}
			s, err := a.openMigrated(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			rep, err := etl.NewLoader(s, a.log.WithField("component", "etl")).Run(ctx, opts)
			if err != nil {
				return err
			}
			counts, err := s.Counts(ctx)
			if err != nil {
				return err
			}
			if err := rep.Write(cmd.OutOrStdout(), counts); err != nil {
				return err
			}
			if report != "" {
				if err := rep.Save(report, counts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nReport written to %s\n", report)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory holding the default CSV files")
	cmd.Flags().StringVar(&opts.TournamentCSV, "tournament-csv", "", "tournament-level CSV (default <data-dir>/"+etl.DefaultTournamentCSV+")")
	cmd.Flags().StringVar(&opts.YearlyCSV, "yearly-csv", "", "yearly statistics CSV (default <data-dir>/"+etl.DefaultYearlyCSV+")")
	cmd.Flags().StringVar(&report, "report", "", "also save the markdown report to this path")
	return cmd
}

func (a *app) dedupeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Merge duplicate courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			rep, err := s.DedupeCourses(ctx, dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rep.Groups) == 0 {
				fmt.Fprintln(out, "No duplicate courses found.")
				return nil
			}
			for _, g := range rep.Groups {
				fmt.Fprintf(out, "%s (%s): keep %d, merge %v, %d tournaments\n",
					g.CourseName, g.Location, g.KeepID, g.Duplicates(), g.AffectedTournaments)
			}
			verb := "Merged"
			if rep.DryRun {
				verb = "Would merge"
			}
			fmt.Fprintf(out, "%s %d groups: %d courses removed, %d tournaments re-pointed, %d courses remain\n",
				verb, len(rep.Groups), rep.CoursesRemoved, rep.TournamentsRepointed, rep.CoursesRemaining)
			if !rep.DryRun && rep.DuplicateGroupsRemain > 0 {
				return fmt.Errorf("%d duplicate groups remain", rep.DuplicateGroupsRemain)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func (a *app) askCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "ask <question...>",
		Short:   "Answer a plain-English question",
		Example: `  golfstats ask who won the masters in 2019`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", format)
			}
			ctx := cmd.Context()
			s, err := a.openMigrated(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ans, err := nlq.NewEngine(s, a.log).Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			return ans.WriteText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the write API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl == 0 {
				ttl = a.cfg.TokenTTL
			}
			signer, err := auth.NewSigner(a.cfg.SecretKey, ttl)
			if err != nil {
				return fmt.Errorf("%w: set SECRET_KEY", err)
			}
			token, exp, err := signer.Issue()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			a.log.WithField("expires", exp.Format(time.RFC3339)).Info("admin token issued")
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (env: GOLF_TOKEN_TTL, default 24h)")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "golfstats", a.version)
		},
	}
}
