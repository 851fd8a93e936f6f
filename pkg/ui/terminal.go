package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"chanscraper/pkg/cache"
	"chanscraper/pkg/crawler"
)

// Logo for the application banner
const Logo = `
  ┌─┐┬ ┬┌─┐┌┐┌┌─┐┌─┐┬─┐┌─┐┌─┐┌─┐┬─┐
  │  ├─┤├─┤│││└─┐│  ├┬┘├─┤├─┘├┤ ├┬┘
  └─┘┴ ┴┴ ┴┘└┘└─┘└─┘┴└─┴ ┴┴  └─┘┴└─
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	orange  = lipgloss.Color("#FF6700")
	red     = lipgloss.Color("#FF0000")
	dim     = lipgloss.Color("#B0B0B0")

	logoStyle      = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(orange).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta)
	dimStyle       = lipgloss.NewStyle().Foreground(dim).Faint(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)
)

// PrintLogo prints the banner
func PrintLogo(w io.Writer) {
	fmt.Fprintln(w, logoStyle.Render(Logo))
}

// PrintError prints an error message
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(w, errorStyle.Render(msg))
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, warningStyle.Render(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(w io.Writer, label, value string) {
	fmt.Fprintln(w, infoLine(label, value))
}

// PrintHighlight prints a highlighted message
func PrintHighlight(w io.Writer, msg string) {
	fmt.Fprintln(w, highlightStyle.Render(msg))
}

func infoLine(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// RenderCycle renders a finished cycle as a short panel
func RenderCycle(r crawler.CycleReport) string {
	var b strings.Builder
	b.WriteString(highlightStyle.Render("cycle "+shortID(r.ID)) + "\n")

	if r.CatalogEmpty {
		b.WriteString(warningStyle.Render("catalog empty or unavailable, backing off"))
		return panelStyle.Render(b.String())
	}

	lines := []string{
		infoLine("threads", fmt.Sprintf("%d (%d errors)", len(r.Threads), r.ThreadErrors)),
		infoLine("new posts", fmt.Sprint(r.NewPosts)),
		infoLine("downloaded", fmt.Sprintf("%d (%s)", r.Downloads.Downloaded, FormatBytes(r.Downloads.Bytes))),
		infoLine("skipped", fmt.Sprint(r.Downloads.Skipped)),
	}
	if r.Downloads.Blocked > 0 {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("blocked: %d", r.Downloads.Blocked)))
	}
	if r.Downloads.Failed > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("failed: %d", r.Downloads.Failed)))
	}
	if !r.Persisted {
		lines = append(lines, errorStyle.Render("cache not saved"))
	}
	lines = append(lines, dimStyle.Render("took "+r.Duration.Round(time.Millisecond).String()))

	b.WriteString(strings.Join(lines, "\n"))
	return panelStyle.Render(b.String())
}

// RenderCacheSummary renders the cache contents, largest threads first
func RenderCacheSummary(c *cache.Cache, source string, limit int) string {
	threads, posts := c.Stats()

	lines := []string{
		infoLine("board", "/"+c.Board()+"/"),
		infoLine("source", source),
		infoLine("threads", fmt.Sprint(threads)),
		infoLine("processed posts", fmt.Sprint(posts)),
	}

	ids := c.ThreadIDs()
	if len(ids) > 0 && limit > 0 {
		lines = append(lines, "")
		sortBySize(ids, c)
		if len(ids) > limit {
			ids = ids[:limit]
		}
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("  %s %s",
				valueStyle.Render(fmt.Sprintf("%-12s", id)),
				dimStyle.Render(fmt.Sprintf("%d posts", len(c.Posts(id))))))
		}
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

// sortBySize orders thread ids by processed post count, descending, keeping
// numeric order for ties
func sortBySize(ids []string, c *cache.Cache) {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = len(c.Posts(id))
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && counts[ids[j]] > counts[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// FormatBytes renders a byte count for humans
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
