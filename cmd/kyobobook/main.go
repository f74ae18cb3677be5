package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ChoisMath/kyobobook/config"
	"github.com/ChoisMath/kyobobook/intake"
	"github.com/ChoisMath/kyobobook/ledger"
	"github.com/ChoisMath/kyobobook/scraper"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kyobobook",
	Short:         "Collect book order requests from Kyobo Book Centre product pages",
	Long:          "Extracts title, author, publisher and price from a Kyobo product URL and records book order requests in a shared ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			c.Verbose = true
		}

		logger, level := newLogger(os.Stderr, c.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())

		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env bundles what the subcommands share.
type env struct {
	scraper *scraper.Scraper
	ledger  ledger.Ledger
	intake  *intake.Service
}

func openEnv(ctx context.Context, c *config.Config) (*env, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}

	s, err := scraper.NewScraper(c, nil)
	if err != nil {
		return nil, fmt.Errorf("initialising scraper: %w", err)
	}

	l, err := ledger.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	slog.Debug("environment ready",
		slog.String("ledger_driver", c.LedgerDriver),
		slog.String("ledger_path", c.LedgerPath),
		slog.String("timezone", c.Timezone),
	)
	return &env{scraper: s, ledger: l, intake: intake.NewService(l, loc)}, nil
}

func (e *env) Close() error {
	if err := e.ledger.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

// closeEnv folds a close failure into the command's error.
func closeEnv(e *env, err *error) {
	if cerr := e.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
