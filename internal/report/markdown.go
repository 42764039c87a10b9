package report

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitemirror/internal/model"
)

// MarkdownWriter outputs the summary as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + s.Seed + "`"},
			{"Destination", "`" + s.Root + "`"},
			{"Run ID", "`" + s.RunID + "`"},
			{"Started", s.StartedAt.Format(timeLayout)},
			{"Elapsed", s.Elapsed().Round(time.Millisecond).String()},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, s *model.Summary) {
	md.H2("Resources")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Outcomes)+2)
	for _, o := range model.Outcomes {
		rows = append(rows, []string{string(o), strconv.Itoa(s.Count(o))})
	}
	rows = append(rows,
		[]string{"**Total**", "**" + strconv.Itoa(s.Total()) + "**"},
		[]string{"Bytes written", humanize.Bytes(uint64(max(s.BytesWritten, 0)))},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Total() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Outcomes"),
		piechart.WithShowData(true),
	)

	for _, o := range model.Outcomes {
		if n := s.Count(o); n > 0 {
			chart.LabelAndIntValue(string(o), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch {
	case s.Cancelled:
		md.Warningf("The mirror was cancelled after %d resource(s); re-run to resume.", s.Total())
	case s.FailureCount() > 0:
		md.Importantf("%d resource(s) could not be mirrored.", s.FailureCount())
	case s.Total() == 0:
		md.Note("No resources were processed.")
	default:
		md.Tip("Every discovered resource was mirrored.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.Summary) {
	md.H2("Failures")
	md.PlainText("")

	if len(s.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Failures))
	for i, f := range s.Failures {
		errText := f.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			"`" + truncateString(f.URL, 60) + "`",
			string(f.Outcome),
			truncateString(errText, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Outcome", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by sitemirror*")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
