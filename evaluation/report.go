package evaluation

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown renders the summary as a report with one row per metric and the
// two variants side by side.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("# RAG evaluation report\n\n")
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", s.RunID)
		if s.OutputPath != "" {
			fmt.Fprintf(&b, ", results in `%s`", s.OutputPath)
		}
		b.WriteString(".\n\n")
	}

	b.WriteString("| Cases | Successful | Failed | Skipped |\n|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", s.Total, s.Successful, s.Failed, s.Skipped)

	b.WriteString("## Mean scores\n\n")
	b.WriteString("| Metric | With pipeline | Without pipeline | Delta |\n|---|---:|---:|---:|\n")
	for _, m := range MetricNames {
		with, okWith := s.Mean(ScoreColumn(m, VariantWithPipeline))
		without, okWithout := s.Mean(ScoreColumn(m, VariantWithoutPipeline))
		delta := "n/a"
		if okWith && okWithout {
			delta = fmt.Sprintf("%+.4f", with-without)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", m, meanCell(with, okWith), meanCell(without, okWithout), delta)
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n## Failed cases\n\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- Case %d: %s\n", f.Index, escapeMarkdown(truncate(f.Message)))
		}
	}
	return b.String()
}

// HTML renders Markdown with GitHub-flavoured tables.
func (s *Summary) HTML() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>RAG evaluation report</title></head><body>\n")
	if err := md.Convert([]byte(s.Markdown()), &buf); err != nil {
		return nil, fmt.Errorf("evaluation: render report: %w", err)
	}
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
}

// WriteReport writes the Markdown report to base+".md" and its HTML
// rendering to base+".html".
func (s *Summary) WriteReport(base string) error {
	if err := os.WriteFile(base+".md", []byte(s.Markdown()), 0o644); err != nil {
		return fmt.Errorf("evaluation: write report: %w", err)
	}
	html, err := s.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".html", html, 0o644); err != nil {
		return fmt.Errorf("evaluation: write report: %w", err)
	}
	return nil
}

func meanCell(v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return FormatScore(&v)
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "*", `\*`, "_", `\_`, "<", "&lt;")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
