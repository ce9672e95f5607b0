package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chase3718/autohold/internal/config"
	"github.com/chase3718/autohold/internal/control"
	"github.com/chase3718/autohold/internal/score"
	"github.com/chase3718/autohold/internal/song"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events <song>",
	Short: "Print the press/release timeline computed for a song",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, s, err := loadTrack(globalConfig, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		size := "?"
		if info, err := os.Stat(args[0]); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		length := time.Duration(score.Duration(t.Events)) * time.Millisecond
		header := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(t.Name),
			field("file", size),
			field("notes", humanize.Comma(int64(len(s.Notes)))),
			field("events", humanize.Comma(int64(len(t.Events)))),
			field("length", shortDuration(length)),
		)
		fmt.Fprintln(out, boxStyle.Render(header))

		timeCol := lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
		kindCol := lipgloss.NewStyle().Width(9).PaddingLeft(2)
		fmt.Fprintln(out, labelStyle.Render(timeCol.Render("ms")+kindCol.Render("kind")+"  key"))
		for i, ev := range t.Events {
			if eventsLimit > 0 && i >= eventsLimit {
				fmt.Fprintln(out, helpStyle.Render(fmt.Sprintf("... %s more, use --limit 0 for all",
					humanize.Comma(int64(len(t.Events)-i)))))
				break
			}
			fmt.Fprintln(out, timeCol.Render(strconv.FormatInt(ev.Time, 10))+kindCol.Render(ev.Kind.String())+"  "+ev.Key)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 40, "events to print, 0 for all")
}

// loadTrack reads a song and computes its events with the configured key map
// and hold tuning.
func loadTrack(cfg *config.Config, path string) (*control.Track, *song.Song, error) {
	s, err := song.Load(path)
	if err != nil {
		return nil, nil, err
	}
	calc := score.NewCalculator(cfg.KeyMap, cfg.ScoreParams())
	events, err := calc.Events(s.Notes)
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		logger.Warn("song has no playable notes", "song", s.Name, "notes", len(s.Notes))
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = path
	}
	return &control.Track{Name: name, Events: events}, s, nil
}
