package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	verbose    bool

	cfg    *Config
	logger *zap.Logger
	cache  *BlobCache
}

// newRootCmd builds the command tree. The caller closes the returned app
// once Execute returns, whether or not a command failed.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "crossfeed",
		Short: "Fetch syndicated crosswords and turn them into numbered word slots",
		Long: `crossfeed downloads daily crossword blobs from the syndication feed,
infers the numbered across/down slots from the grid and pairs them with
their clues. It can serve puzzles over HTTP, print one, or export a date
range to CSV.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.serveCmd(), a.buildCmd(), a.scrapeCmd())
	return root, a
}

func (a *app) init() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	logger, err := NewLogger(cfg.Log, a.verbose)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger

	if cfg.Redis.Addr != "" {
		a.cache = NewBlobCache(cfg.Redis)
	}
	return nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close redis cache", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// source returns the feed fetcher, behind the Redis cache when configured.
func (a *app) source() BlobSource {
	var src BlobSource = NewFetcher(a.cfg.Feed, a.logger)
	if a.cache != nil {
		src = NewCachedSource(src, a.cache, a.logger)
	}
	return src
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	src := a.source()

	var importer ImageImporter
	if a.cfg.Gemini.ProjectID != "" {
		gemini, err := NewGeminiClient(ctx, a.cfg.Gemini)
		if err != nil {
			return err
		}
		importer = gemini
		a.logger.Info("gemini client ready", zap.String("project", a.cfg.Gemini.ProjectID))
	} else {
		a.logger.Info("GEMINI_PROJECT_ID not set, image import disabled")
	}

	srv := NewServer(ServerDeps{
		Store:    NewStore(),
		Source:   src,
		Importer: importer,
		Exporter: NewExporter(src, a.cfg.Export.Concurrency, a.logger),
		Cache:    a.cache,
		Logger:   a.logger,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (a *app) buildCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "build <YYMMDD>",
		Short: "Fetch one puzzle and print its numbered slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := a.source().Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := BuildFromResponse(blob)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(newPuzzleResponse(p))
			}
			printPuzzle(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response JSON")
	return cmd
}

func printPuzzle(w io.Writer, p *Puzzle) {
	m := p.Metadata
	bold.Fprintf(w, "%s (%s)\n", m.Title, m.Date)
	fmt.Fprintf(w, "by %v, %dx%d\n\n", m.Authors, m.Size.Rows, m.Size.Cols)
	for _, row := range p.Grid {
		cyan.Fprintln(w, row)
	}
	fmt.Fprintln(w)
	for _, s := range p.Entries {
		fmt.Fprintf(w, "%s  ", s)
		green.Fprintln(w, s.Answer)
	}
}

func (a *app) scrapeCmd() *cobra.Command {
	var from, to, out string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Export a date range of puzzles to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := NewStore().CreateExport(from, to)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exporter := NewExporter(a.source(), a.cfg.Export.Concurrency, a.logger)
			runErr := exporter.Run(ctx, job, func(evt ExportEvent) {
				if evt.Type != "export_progress" {
					return
				}
				if evt.Error != "" {
					yellow.Fprintf(cmd.ErrOrStderr(), "%s skipped: %s\n", evt.Date, evt.Error)
					return
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s saved (%d/%d)\n", evt.Date, evt.Progress.Done, evt.Progress.Total)
			})

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			if err := job.WriteCSV(f); err != nil {
				return err
			}

			snap := job.Snapshot()
			green.Fprintf(cmd.ErrOrStderr(), "wrote %d puzzle(s) to %s, %d failed\n", snap.Exported, out, len(snap.Failures))
			return runErr
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYMMDD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYMMDD")
	cmd.Flags().StringVarP(&out, "out", "o", "crossword_data.csv", "output CSV file")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
