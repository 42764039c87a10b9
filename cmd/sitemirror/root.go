package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Running it with a URL and a
// destination directory mirrors the site.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemirror <url> <destination>",
		Short: "Mirror a website into a local directory",
		Long: `sitemirror downloads a website, starting from <url>, into <destination>.

Every downloaded HTML, CSS, JavaScript, JSON and PHP file is scanned for
references to other resources. Those resources are downloaded too, and the
references are rewritten to root-relative paths so the mirror can be served
from <destination>. Files that already exist are skipped, so an interrupted
mirror can be resumed by running the same command again.

Requests go through the Tor SOCKS5 proxy at 127.0.0.1:9050 by default.
Use --embedded-tor to start a private Tor daemon, or --direct to connect
without Tor.

Examples:
  # Mirror an onion service through a local Tor daemon
  sitemirror http://exampleonionaddress.onion ./mirror

  # Mirror a clearnet site with 4 concurrent downloads
  sitemirror --direct -w 4 https://example.com ./example

  # Write a Markdown report to a file
  sitemirror -r markdown -o report.md https://example.com ./example

  # Show previous runs
  sitemirror history`,
		Args:          cobra.ExactArgs(2),
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMirrorCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Log warnings and errors only")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	addMirrorFlags(cmd)

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
