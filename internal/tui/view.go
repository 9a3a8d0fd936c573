package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/analytics"
)

const (
	barWidth   = 30
	sparkChars = "▁▂▃▄▅▆▇█"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	accent  lipgloss.Style
	up      lipgloss.Style
	down    lipgloss.Style
	warning lipgloss.Style
	danger  lipgloss.Style
	panel   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bd93f9")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")).Width(22),
		value:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f8f8f2")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
		accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd")),
		up:      lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")),
		down:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c")),
		danger:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555")),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#44475a")).
			Padding(0, 1),
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	st := m.state
	switch {
	case st.Err != nil && st.Data == nil:
		b.WriteString(m.renderError(st.Err))
	case st.Data == nil:
		b.WriteString(m.spinner.View() + " " + m.styles.muted.Render("Loading analytics..."))
	default:
		b.WriteString(m.styles.panel.Render(m.renderDashboard(*st.Data)))
	}

	if m.refreshErr != nil && st.Data != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.warning.Render("refresh failed: " + m.refreshErr.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(m.styles.muted.Render("r refresh • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	parts := []string{m.styles.title.Render(m.title)}

	st := m.state
	if st.Loading || m.refreshing {
		parts = append(parts, m.spinner.View()+m.styles.accent.Render("refreshing"))
	}
	if st.IsStale {
		parts = append(parts, m.styles.warning.Render("● stale"))
	}
	if st.Data != nil {
		parts = append(parts, m.styles.muted.Render("updated "+st.FetchedAt.Local().Format(time.TimeOnly)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderError(err error) string {
	kind := creditpulse.ErrorKind(err)
	return m.styles.danger.Render("Failed to load analytics ("+kind+")") + "\n" +
		m.styles.muted.Render(err.Error()) + "\n" +
		m.styles.muted.Render("press r to retry")
}

func (m Model) renderDashboard(d analytics.Dashboard) string {
	s := m.styles
	row := func(label, value string) string {
		return s.label.Render(label) + value
	}

	change := s.up
	if strings.HasPrefix(d.MarketPrice.Change24h, "-") {
		change = s.down
	}

	pct := d.MonthlyProgressPercent()
	rows := []string{
		row("Credits owned", s.value.Render(formatNumber(d.TotalCreditsOwned))),
		row("Traded today", s.value.Render(formatNumber(d.CreditsTraded.Today))+
			s.muted.Render(fmt.Sprintf("  (%s this week)", formatNumber(d.CreditsTraded.ThisWeek)))),
		row("Market price", s.value.Render("$"+formatNumber(d.MarketPrice.Current))+"  "+
			change.Render(signed(d.MarketPrice.Change24h)+"% 24h")),
		row("CO₂ offset total", s.value.Render(formatNumber(d.EmissionsOffset.Total)+" kg")),
		row("CO₂ offset this month", s.value.Render(formatNumber(d.EmissionsOffset.MonthlyProgress)+" kg")+
			s.muted.Render(" / "+formatNumber(d.EmissionsOffset.Target)+" kg")),
		row("", progressBar(pct, barWidth, s.up, s.muted)+s.muted.Render(fmt.Sprintf(" %.1f%%", pct))),
	}

	if len(d.MarketPriceTrend) > 1 {
		rows = append(rows, row(fmt.Sprintf("Price trend (%dd)", len(d.MarketPriceTrend)),
			s.accent.Render(sparkline(d.MarketPriceTrend))))
	}

	if extra := d.AdditionalMetrics; extra != nil {
		rows = append(rows,
			row("Transactions", s.value.Render(strconv.Itoa(extra.TotalTransactions))),
			row("Active orders", s.value.Render(strconv.Itoa(extra.ActiveOrders))),
			row("Batches produced", s.value.Render(strconv.Itoa(extra.BatchesProduced))),
		)
	}

	return strings.Join(rows, "\n")
}

// progressBar renders pct (0-100) as a bar of width cells.
func progressBar(pct float64, width int, filled, empty lipgloss.Style) string {
	n := int(pct / 100 * float64(width))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return filled.Render(strings.Repeat("█", n)) + empty.Render(strings.Repeat("░", width-n))
}

// sparkline maps each price onto one of eight block heights.
func sparkline(points []analytics.PricePoint) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := points[0].Price, points[0].Price
	for _, p := range points {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}

	levels := []rune(sparkChars)
	var b strings.Builder
	for _, p := range points {
		idx := 0
		if hi > lo {
			idx = int((p.Price - lo) / (hi - lo) * float64(len(levels)-1))
		}
		b.WriteRune(levels[idx])
	}
	return b.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
