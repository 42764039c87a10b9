package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/report"
	"github.com/nao1215/sitemirror/internal/storage"
	"github.com/nao1215/sitemirror/internal/tor"
	"github.com/nao1215/sitemirror/internal/transport"
)

// errOnionNeedsTor is returned when an onion seed is combined with --direct.
var errOnionNeedsTor = errors.New("onion services are only reachable through Tor: remove --direct")

// addMirrorFlags registers the flags of a mirror run on cmd.
func addMirrorFlags(cmd *cobra.Command) {
	// Transport
	cmd.Flags().StringP("proxy", "x", config.DefaultProxyAddress,
		"Tor SOCKS5 proxy address")
	cmd.Flags().Bool("direct", false,
		"Connect without Tor (onion URLs cannot be mirrored)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon instead of using --proxy")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Crawl
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent downloads")
	cmd.Flags().String("user-agent", transport.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemirror in current or home directory)")

	// Report
	cmd.Flags().StringP("report", "r", config.DefaultReportFormat,
		"Summary report format: text, markdown, json or none")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file; a text summary is still printed")

	// Journal
	cmd.Flags().String("journal-dir", config.XDGDataDir(),
		"Directory of the crawl journal")
	cmd.Flags().Bool("no-journal", false,
		"Do not record the run in the crawl journal")
}

func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.LoadSiteConfigs(); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runMirror(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from the command's flags and arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Direct, err = flags.GetBool("direct"); err != nil {
		return nil, err
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.JournalDir, err = flags.GetString("journal-dir"); err != nil {
		return nil, err
	}
	if cfg.NoJournal, err = flags.GetBool("no-journal"); err != nil {
		return nil, err
	}
	if err := readLogFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	if len(args) > 1 {
		cfg.Destination = args[1]
	}

	return cfg, nil
}

// readLogFlags copies the persistent logging flags into cfg.
func readLogFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return err
	}
	if cfg.Quiet, err = cmd.Flags().GetBool("quiet"); err != nil {
		return err
	}
	cfg.LogJSON, err = cmd.Flags().GetBool("log-json")
	return err
}

// newLogger returns a redacting logger writing to w at the configured level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.LogLevel())
	}
	return log.NewSecureLogger(w, cfg.LogLevel())
}

// runMirror mirrors cfg.Seed into cfg.Destination and reports the result to stdout.
// Failed resources are reported but do not make the run fail.
func runMirror(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	if host := cfg.SeedHost(); tor.IsOnionHost(host) {
		if err := tor.ValidateOnionHost(host); err != nil {
			return fmt.Errorf("invalid onion address %q: %w", host, err)
		}
		if cfg.Direct {
			return errOnionNeedsTor
		}
	}

	root, err := filepath.Abs(cfg.Destination)
	if err != nil {
		return fmt.Errorf("invalid destination %q: %w", cfg.Destination, err)
	}

	client, cleanup, err := newHTTPClient(ctx, cfg, stdout, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	site := cfg.SiteConfig()
	fetcher := transport.NewHTTPFetcher(client,
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithHeaders(site.Headers),
		transport.WithCookie(site.Cookie),
		transport.WithLogger(logger),
	)

	runID := uuid.NewString()
	opts := []crawler.SpiderOption{
		crawler.WithWorkers(cfg.Workers),
		crawler.WithLogger(logger),
		crawler.WithRunID(runID),
		crawler.WithFollowPolicy(crawler.FollowPolicy{
			SameHostOnly:   site.SameHostOnly,
			IgnorePatterns: site.IgnorePatterns,
			FollowPatterns: site.FollowPatterns,
		}),
	}

	var journal *database.Journal
	if cfg.JournalEnabled() {
		journal, err = database.Open(cfg.JournalDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()

		run := database.Run{ID: runID, Seed: cfg.Seed, Root: root, StartedAt: time.Now()}
		if err := journal.StartRun(ctx, run); err != nil {
			return err
		}
		opts = append(opts, crawler.WithRecorder(journal.Recorder(runID)))
		logger.Debug("journal opened", "path", journal.Path(), "run_id", runID)
	}

	spider := crawler.NewSpider(fetcher, storage.NewOSStore(), root, opts...)
	summary, mirrorErr := spider.Mirror(ctx, cfg.Seed)

	if journal != nil {
		if err := journal.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Error("failed to finish journal run", "run_id", runID, "error", err)
		}
	}

	cancelled := errors.Is(mirrorErr, context.Canceled) || errors.Is(mirrorErr, context.DeadlineExceeded)
	if mirrorErr != nil && !cancelled {
		return mirrorErr
	}

	if err := writeReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cancelled {
		logger.Warn("mirror interrupted; run the same command again to resume", "run_id", runID)
		return fmt.Errorf("mirror interrupted: %w", mirrorErr)
	}
	return nil
}

// newHTTPClient returns the HTTP client selected by cfg and a cleanup
// function that must be called when the mirror is done.
func newHTTPClient(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.Direct:
		logger.Warn("connecting directly, requests are not routed through Tor")
		return tor.NewDirectHTTPClient(cfg.Timeout), noop, nil

	case cfg.EmbeddedTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, cfg, stdout, logger)
		if err != nil {
			return nil, nil, err
		}
		stopTor := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.NewHTTPClient(), stopTor, nil

	default:
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s, or use --embedded-tor)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), noop, nil
	}
}

// startEmbeddedTor starts a private Tor daemon and returns a client using it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(stdout, "Starting embedded Tor daemon...")
	fmt.Fprintf(stdout, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithEmbeddedLogger(logger),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socks_addr", embeddedTor.SocksAddr(),
		"control_addr", embeddedTor.ControlAddr(),
	)

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // the client error is returned
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	return client, embeddedTor, nil
}

// writeReport renders summary in cfg.ReportFormat. With a report file the
// chosen format goes to the file and a text summary to stdout.
func writeReport(cfg *config.Config, summary *model.Summary, stdout io.Writer) error {
	if cfg.ReportFormat == "none" {
		return nil
	}

	if cfg.ReportFile == "" {
		w, err := newReportWriter(cfg, cfg.ReportFormat, stdout)
		if err != nil {
			return err
		}
		_, err = w.Write(summary)
		return err
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Failure messages may contain URLs with credentials.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	fileWriter, err := newReportWriter(cfg, cfg.ReportFormat, f)
	if err != nil {
		return err
	}
	textWriter, err := newReportWriter(cfg, report.FormatText, stdout)
	if err != nil {
		return err
	}
	w := report.NewMultiWriter(fileWriter, textWriter)
	if _, err := w.Write(summary); err != nil {
		return err
	}
	return f.Close()
}

// newReportWriter returns the report writer for format. The text report
// lists every outcome and the local path of failures when cfg.Verbose is set.
func newReportWriter(cfg *config.Config, format string, output io.Writer) (report.Writer, error) {
	if format == report.FormatText {
		return report.NewSimpleWriter(output,
			report.WithShowEmpty(cfg.Verbose),
			report.WithVerbose(cfg.Verbose),
		), nil
	}
	return report.New(format, output, getVersion())
}
