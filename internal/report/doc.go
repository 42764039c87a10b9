// Package report renders the summary of a mirror run.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - MarkdownWriter: GitHub Flavored Markdown with a mermaid pie chart
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface, so the CLI selects one by name
// with New and can combine several with MultiWriter.
package report
