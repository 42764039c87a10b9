package config

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitemirror/internal/transport"
)

// Default configuration values.
const (
	// DefaultProxyAddress is the local Tor daemon's SOCKS5 port.
	// 127.0.0.1 rather than localhost avoids resolving through IPv6 first.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout is the per-request timeout. Tor circuits are slow,
	// so it is generous.
	DefaultTimeout = 120 * time.Second

	// DefaultWorkers fetches one URL at a time.
	DefaultWorkers = 1

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultReportFormat is the summary printed after a run.
	DefaultReportFormat = "text"

	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"
)

// ReportFormats lists the accepted values of Config.ReportFormat.
// "none" disables the summary report.
var ReportFormats = []string{"text", "markdown", "json", "none"}

// Config holds every option of a mirror run. It is built from CLI flags
// and passed down explicitly.
type Config struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// Destination is the mirror root directory.
	Destination string

	// ProxyAddress is the Tor SOCKS5 proxy in "host:port" form.
	// Ignored when Direct or EmbeddedTor is set.
	ProxyAddress string

	// Direct disables the proxy and connects to sites directly.
	Direct bool

	// EmbeddedTor starts a private Tor daemon instead of using ProxyAddress.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Workers is the number of URLs fetched concurrently.
	Workers int

	// UserAgent is sent with every request.
	UserAgent string

	// ConfigFilePath is an explicit .sitemirror file. When empty the
	// working directory and then the home directory are searched.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// ReportFormat is one of ReportFormats.
	ReportFormat string

	// ReportFile receives the report instead of stdout when set.
	ReportFile string

	// JournalDir is where the crawl journal is kept.
	JournalDir string

	// NoJournal disables the crawl journal.
	NoJournal bool

	// Verbose logs at debug level.
	Verbose bool

	// Quiet logs warnings and errors only.
	Quiet bool

	// LogJSON switches the log output to JSON.
	LogJSON bool
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		ProxyAddress:      DefaultProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		Workers:           DefaultWorkers,
		UserAgent:         transport.DefaultUserAgent,
		ReportFormat:      DefaultReportFormat,
		JournalDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the sitemirror data directory, which holds the journal.
// On Linux: ~/.local/share/sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the sitemirror config directory.
// On Linux: ~/.config/sitemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeedURL
	}
	if !isHTTPURL(c.Seed) {
		return ErrInvalidSeedURL
	}

	if c.Destination == "" {
		return ErrNoDestination
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.EmbeddedTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Direct && c.EmbeddedTor {
		return ErrConflictingTransport
	}

	if !slices.Contains(ReportFormats, c.ReportFormat) {
		return ErrInvalidReportFormat
	}

	if c.Verbose && c.Quiet {
		return ErrConflictingVerbosity
	}

	return nil
}

// LogLevel returns the slog level selected by Verbose and Quiet.
func (c *Config) LogLevel() slog.Level {
	switch {
	case c.Verbose:
		return slog.LevelDebug
	case c.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// JournalEnabled reports whether the run is journaled.
func (c *Config) JournalEnabled() bool {
	return !c.NoJournal && c.JournalDir != ""
}

// SeedHost returns the host of the seed URL without port, or "" if the
// seed cannot be parsed.
func (c *Config) SeedHost() string {
	u, err := url.Parse(c.Seed)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SiteConfig returns the merged site configuration for the seed host.
func (c *Config) SiteConfig() SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(c.SeedHost())
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
