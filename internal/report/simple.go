package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/sitemirror/internal/model"
)

// SimpleWriter outputs a plain text report for terminals and log files.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints outcomes with a zero count and an empty failure section.
	showEmpty bool

	// verbose adds the local path of each failed resource.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty rows and sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITEMIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:           %s\n", s.Seed)
	fmt.Fprintf(sb, "Destination:    %s\n", s.Root)
	fmt.Fprintf(sb, "Run ID:         %s\n", s.RunID)
	fmt.Fprintf(sb, "Started:        %s\n", s.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Elapsed:        %s\n", s.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(s))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *model.Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, o := range model.Outcomes {
		n := s.Count(o)
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-16s %d\n", string(o)+":", n)
	}
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  TOTAL:           %d resources, %s written\n",
		s.Total(), humanize.Bytes(uint64(max(s.BytesWritten, 0))))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, s *model.Summary) {
	if len(s.Failures) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(s.Failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, f := range s.Failures {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Outcome, f.URL)
		if f.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", f.Error)
		}
		if w.verbose && f.LocalPath != "" {
			fmt.Fprintf(sb, "    Path:  %s\n", f.LocalPath)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitemirror\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
