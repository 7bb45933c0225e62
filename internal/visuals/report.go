package visuals

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lrp-copilot/internal/copilot"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
)

// mermaidLoader turns the fenced mermaid blocks goldmark renders as code into
// diagrams once the mermaid bundle has loaded.
const mermaidLoader = `
(function () {
  var blocks = document.querySelectorAll("pre > code.language-mermaid");
  for (var i = 0; i < blocks.length; i++) {
    var source = blocks[i].textContent;
    var container = document.createElement("div");
    container.className = "mermaid";
    container.textContent = source;
    blocks[i].parentNode.replaceWith(container);
  }
  var script = document.createElement("script");
  script.src = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js";
  script.onload = function () {
    window.mermaid.initialize({ startOnLoad: false, theme: "neutral" });
    window.mermaid.run({ querySelector: ".mermaid" });
  };
  document.head.appendChild(script);
})();
`

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;line-height:1.5}pre{background:#f5f5f5;padding:1rem;overflow-x:auto}</style>
</head>
<body>
%s
<script>%s</script>
</body>
</html>
`

// ReportMarkdown assembles the narrative and, when charts is set, the Mermaid charts of a.
func ReportMarkdown(a *copilot.Analysis, charts bool) string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	if a.RunLabel != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", a.RunLabel))
	}
	sb.WriteString(a.Narrative)

	if a.Result.Truncated {
		sb.WriteString(fmt.Sprintf("\n> Simulation was interrupted after %d trials.\n", a.Result.Trials))
	}
	for _, insight := range a.Result.Insights {
		sb.WriteString(fmt.Sprintf("\n- %s", insight))
	}
	if len(a.Result.Insights) > 0 {
		sb.WriteString("\n")
	}

	if !charts {
		return sb.String()
	}
	for _, chart := range []string{
		GenerateARRBridge(a.Summary),
		GeneratePercentileChart(a.Result, a.Request.TargetUSD),
		GenerateDistributionChart(a.Result.Histogram),
		GenerateOptionsChart(a.Options),
	} {
		if chart != "" {
			sb.WriteString("\n\n")
			sb.WriteString(chart)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// MinifyScript minifies inline JavaScript with esbuild.
func MinifyScript(js string) (string, error) {
	result := api.Transform(js, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("minify script: %s", result.Errors[0].Text)
	}
	return string(result.Code), nil
}

// RenderHTML converts report markdown into a standalone HTML page.
func RenderHTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.New().Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	script, err := MinifyScript(mermaidLoader)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(pageTemplate, html.EscapeString(title), body.String(), script)), nil
}

// WriteReport renders a into dir and returns the file path.
func WriteReport(dir string, a *copilot.Analysis) (string, error) {
	name := a.RunLabel
	if name == "" {
		name = "report_" + time.Now().Format("20060102_150405")
	}
	page, err := RenderHTML("LRP Copilot - "+name, ReportMarkdown(a, true))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, name+".html")
	if err := os.WriteFile(path, page, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")
	return path, nil
}

// OpenReport opens a written report in the default browser.
func OpenReport(path string) error {
	log.Info().Str("path", path).Msg("Opening report in browser")
	return browser.OpenFile(path)
}
