package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chase3718/autohold/internal/control"
	"github.com/chase3718/autohold/internal/playback"
	"github.com/chase3718/autohold/internal/score"
)

var stayOpen bool

var playCmd = &cobra.Command{
	Use:   "play <song>",
	Short: "Play a song on the configured actuator",
	Long: `Play a song sheet (.json/.txt) or a MIDI file (.mid) on the configured
actuator. Controls are read from stdin, one per line:

  p or empty line   pause / resume
  + / -             speed up / down one step
  <number>          set the speed multiplier, e.g. 0.75
  r                 replay the song from the start
  s                 stop and release every key
  q                 quit
`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&stayOpen, "stay", false, "keep running after the song ends, for replay")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	track, _, err := loadTrack(cfg, args[0])
	if err != nil {
		return err
	}
	length := time.Duration(score.Duration(track.Events)) * time.Millisecond

	out, err := openActuator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("closing actuator", "err", err)
		}
	}()

	player := playback.NewPlayer(out, cfg.PlayerOptions(logger)...)
	ctrl := control.New(player, control.Config{
		Keys:     cfg.KeyMap.Keys(),
		Step:     cfg.Playback.SpeedStep,
		Every:    cfg.Playback.SpeedRate,
		Speed:    cfg.Playback.Speed,
		MinSpeed: cfg.Playback.MinSpeed,
		MaxSpeed: cfg.Playback.MaxSpeed,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cmds := make(chan control.Command, 16)
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx, cmds) }()
	cmds <- control.Command{Op: control.Start, Track: track}
	go readCommands(ctx, cmd.InOrStdin(), cmds, cancel)

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, helpStyle.Render("p pause · +/- speed · r replay · s stop · q quit"))

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	var last string
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			st := ctrl.Status()
			if line := statusLine(track.Name, st, length); line != last {
				fmt.Fprintln(w, line)
				last = line
			}
			if !stayOpen && st.Session != nil && !st.Active && st.Queued == "" {
				cancel()
			}
		}
	}
}

// readCommands turns stdin lines into controller commands until EOF or q.
func readCommands(ctx context.Context, r io.Reader, cmds chan<- control.Command, quit func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		c, ok, err := parseCommand(sc.Text())
		if err != nil {
			logger.Warn("unknown control", "input", sc.Text())
			continue
		}
		if !ok {
			quit()
			return
		}
		select {
		case cmds <- c:
		case <-ctx.Done():
			return
		}
	}
}

// parseCommand maps one line of input to a command. ok is false for quit.
func parseCommand(line string) (cmd control.Command, ok bool, err error) {
	switch s := strings.ToLower(strings.TrimSpace(line)); s {
	case "", "p", "pause", "space":
		return control.Command{Op: control.TogglePause}, true, nil
	case "+", "u", "up":
		return control.Command{Op: control.SpeedUp}, true, nil
	case "-", "d", "down":
		return control.Command{Op: control.SpeedDown}, true, nil
	case "r", "replay":
		return control.Command{Op: control.Replay}, true, nil
	case "s", "stop":
		return control.Command{Op: control.Stop}, true, nil
	case "q", "quit", "exit":
		return control.Command{}, false, nil
	default:
		m, perr := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64)
		if perr != nil {
			return control.Command{}, true, fmt.Errorf("unknown control %q", line)
		}
		return control.Command{Op: control.SetSpeed, Speed: m}, true, nil
	}
}

func statusLine(name string, st control.Status, length time.Duration) string {
	state := playback.Idle
	var pos time.Duration
	held := 0
	if st.Session != nil {
		state = st.Session.State
		pos = st.Session.Position.Truncate(time.Second)
		held = len(st.Session.Pressed)
	}

	stateText := labelStyle.Render(state.String())
	if state == playback.Paused {
		stateText = pausedStyle.Render(state.String())
	}
	return fmt.Sprintf("%s %s %s %s/%s %s",
		titleStyle.Render(name),
		stateText,
		field("speed", fmt.Sprintf("%.0f%%", st.Speed*100)),
		shortDuration(min(pos, length)),
		shortDuration(length),
		helpStyle.Render(fmt.Sprintf("held %d", held)),
	)
}
