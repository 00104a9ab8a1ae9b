package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/flemzord/crongen/internal/config"
	"github.com/flemzord/crongen/internal/history"
	"github.com/flemzord/crongen/internal/metrics"
	"github.com/flemzord/crongen/internal/telemetry"
	"github.com/flemzord/crongen/pkg/app"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

type compileFlags struct {
	set   string
	roles []string
	watch bool
}

func rootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "crongen",
		Short:         "Compile schedule definitions into crontab entries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to crongen.yaml")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		cronCmd(&g), yamlCmd(&g), checkCmd(&g), nextCmd(&g),
		serveCmd(&g), historyCmd(&g), versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print crongen version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crongen %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func addCompileFlags(cmd *cobra.Command, f *compileFlags, watch bool) {
	cmd.Flags().StringVarP(&f.set, "set", "s", "", `Pre-set variables, e.g. "environment=staging&path=/srv/app"`)
	cmd.Flags().StringSliceVarP(&f.roles, "roles", "r", nil, "Only render jobs with one of these roles")
	if watch {
		cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Recompile whenever the schedule changes")
	}
}

// session is the per-invocation wiring shared by compile commands.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	history    *history.Store
	shutdown   telemetry.ShutdownFunc
}

func newSession(ctx context.Context, g *globalFlags, stderr io.Writer) (*session, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	configPath := g.configPath
	if configPath == "" {
		found, err := config.Locate()
		if err != nil {
			return nil, err
		}
		configPath = found
	}
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, configPath: configPath, logger: logger, shutdown: shutdown}
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			s.close()
			return nil, &app.Error{Kind: app.KindIO, Err: err}
		}
		s.history = store
	}
	return s, nil
}

func (s *session) close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("history close failed", "error", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func (s *session) params(f *compileFlags, args []string) app.Params {
	p := app.Params{
		Config: s.cfg,
		PreSet: f.set,
		Roles:   f.roles,
		History: s.history,
		Logger:  s.logger,
	}
	if len(args) > 0 {
		p.Schedule = args[0]
	}
	if s.cfg.Metrics.Textfile != "" {
		p.Metrics = metrics.New()
	}
	return p
}

// run executes fn once, or under the watch loop when requested.
func (s *session) run(ctx context.Context, p *app.Params, watch bool, fn func(context.Context) error) error {
	if !watch {
		return fn(ctx)
	}
	schedule := p.Schedule
	if schedule == "" {
		schedule = s.cfg.Schedule
	}
	if schedule == "-" {
		return errors.New("--watch needs a schedule file, not standard input")
	}
	paths := []string{schedule}
	if s.configPath != "" {
		paths = append(paths, s.configPath)
	}
	return app.Watch(ctx, *p, app.WatchParams{Paths: paths}, func(ctx context.Context) error {
		if s.configPath != "" {
			cfg, err := app.LoadConfig(s.configPath)
			if err != nil {
				return err
			}
			p.Config = cfg
		}
		return fn(ctx)
	})
}

func cronCmd(g *globalFlags) *cobra.Command {
	var (
		f     compileFlags
		write string
	)
	cmd := &cobra.Command{
		Use:   "cron [schedule]",
		Short: "Print the crontab for a schedule definition",
		Long: `Compile a schedule definition into crontab text.

The schedule defaults to the one named in crongen.yaml (config/schedule.yaml).
Use "-" to read the definition from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			p := s.params(&f, args)
			return s.run(cmd.Context(), &p, f.watch, func(ctx context.Context) error {
				out, err := app.Cron(ctx, p)
				if err != nil {
					return err
				}
				if write == "" {
					_, err = io.WriteString(cmd.OutOrStdout(), out)
					return err
				}
				if err := app.WriteFile(write, []byte(out)); err != nil {
					return err
				}
				s.logger.Info("crontab written", "path", write)
				return nil
			})
		},
	}
	addCompileFlags(cmd, &f, true)
	cmd.Flags().StringVar(&write, "write", "", "Write the crontab to this file instead of standard output")
	return cmd
}

func yamlCmd(g *globalFlags) *cobra.Command {
	var (
		f        compileFlags
		yamlPath string
	)
	cmd := &cobra.Command{
		Use:   "yaml [schedule]",
		Short: "Write the structured job list for a schedule definition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			p := s.params(&f, args)
			p.YAMLPath = yamlPath
			return s.run(cmd.Context(), &p, f.watch, func(ctx context.Context) error {
				res, err := app.YAML(ctx, p)
				if err != nil {
					return err
				}
				if !res.Written {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs defined, nothing written")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", res.Records, res.Path)
				return nil
			})
		},
	}
	addCompileFlags(cmd, &f, true)
	cmd.Flags().StringVar(&yamlPath, "yaml-path", "", "Output path (default from crongen.yaml, else ./crontab.yaml)")
	return cmd
}

func checkCmd(g *globalFlags) *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "check <schedule>",
		Short: "Validate a schedule definition without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			sum, err := app.Check(cmd.Context(), s.params(&f, args))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule OK (%d jobs, %d cron lines, %d merged, %d records)\n",
				sum.Jobs, sum.Lines, sum.Merged, sum.Records)
			return nil
		},
	}
	addCompileFlags(cmd, &f, false)
	return cmd
}

func nextCmd(g *globalFlags) *cobra.Command {
	var (
		f     compileFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "next <schedule>",
		Short: "Preview the next activations of every job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.New("--count must be at least 1")
			}
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			upcoming, err := app.Next(cmd.Context(), s.params(&f, args), count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range upcoming {
				fmt.Fprintf(out, "%d\t%s\t%s\n", u.ID, u.Time, u.Command)
				if len(u.Next) == 0 {
					fmt.Fprintln(out, "\t(at boot)")
				}
				for _, t := range u.Next {
					fmt.Fprintf(out, "\t%s\n", t.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
	addCompileFlags(cmd, &f, false)
	cmd.Flags().IntVarP(&count, "count", "n", 3, "Activations to show per job")
	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		f    compileFlags
		bind string
	)
	cmd := &cobra.Command{
		Use:   "serve [schedule]",
		Short: "Serve the compiled schedule over HTTP",
		Long: `Start an HTTP server that compiles the schedule on every request.

Routes: GET /cron (crontab text), GET /cronjobs (structured YAML),
GET /health and GET /metrics. /cron and /cronjobs honor serve.auth.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			p := s.params(&f, args)
			if p.Metrics == nil {
				p.Metrics = metrics.New()
			}
			if bind != "" {
				p.Config.Serve.Bind = bind
			}
			if err := app.NewServer(p).Run(cmd.Context()); err != nil {
				return &app.Error{Kind: app.KindIO, Err: err}
			}
			return nil
		},
	}
	addCompileFlags(cmd, &f, false)
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from crongen.yaml, else 127.0.0.1:8080)")
	return cmd
}

func historyCmd(g *globalFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent compilations recorded in the history ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			if s.history == nil {
				return errors.New("history.path is not set in crongen.yaml")
			}
			entries, err := s.history.Recent(cmd.Context(), count)
			if err != nil {
				return &app.Error{Kind: app.KindIO, Err: err}
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				mark := " "
				if e.Changed {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\t%s\t%d jobs\t%.12s\n",
					mark, e.At.Format(time.RFC3339), e.Output, e.Schedule, e.Jobs, e.Digest)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Entries to show")
	return cmd
}
