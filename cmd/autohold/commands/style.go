package commands

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hako/durafmt"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")
	warn    = lipgloss.Color("#ffb86c")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	helpStyle   = lipgloss.NewStyle().Foreground(dim)
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(warn)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1)
)

// shortDuration renders d with its two largest units, e.g. "2m 31s".
func shortDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}
