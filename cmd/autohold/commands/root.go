package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chase3718/autohold/internal/actuator"
	"github.com/chase3718/autohold/internal/config"
	"github.com/chase3718/autohold/internal/playback"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	actuatorKind string
	serialDevice string
	serialBaud   int
	midiPort     string
	speed        float64

	globalConfig *config.Config
)

// logger is the package-wide structured logger. Safe to use before
// initLogger is called.
var logger = slog.Default()

// initLogger configures the shared slog logger and makes it the default.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

var rootCmd = &cobra.Command{
	Use:   "autohold",
	Short: "Play song sheets as timed key presses with automatic hold",
	Long: `autohold turns a song sheet or MIDI file into key presses and releases,
holding each key almost until the next note so the result sounds legato.

Keys go to one of three outputs:
  log     print what would be pressed (default)
  serial  a microcontroller acting as a USB keyboard
  midi    notes on a MIDI output port

Configuration is read from ~/.autohold/config.yaml.

Examples:
  # See what a song turns into
  autohold events songs/canon.json

  # Play through a keyboard bridge at 90% speed
  autohold play --actuator serial --device /dev/ttyACM0 --speed 0.9 songs/canon.json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger(debug)
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		globalConfig = cfg
		return nil
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.autohold/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&actuatorKind, "actuator", "a", "", "key output: log, serial or midi")
	rootCmd.PersistentFlags().StringVar(&serialDevice, "device", "", "serial device of the keyboard bridge")
	rootCmd.PersistentFlags().IntVar(&serialBaud, "baud", 0, "serial baud rate")
	rootCmd.PersistentFlags().StringVar(&midiPort, "midi-port", "", "MIDI output name substring")
	rootCmd.PersistentFlags().Float64VarP(&speed, "speed", "s", 0, "initial speed multiplier")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)
}

// applyFlags lets command line flags override the file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("actuator") {
		cfg.Actuator.Kind = actuatorKind
	}
	if flags.Changed("device") {
		cfg.Actuator.Serial.Device = serialDevice
	}
	if flags.Changed("baud") {
		cfg.Actuator.Serial.Baud = serialBaud
	}
	if flags.Changed("midi-port") {
		cfg.Actuator.MIDI.Port = midiPort
	}
	if flags.Changed("speed") {
		cfg.Playback.Speed = speed
	}
}

// keyOutput is an actuator the command must close when done.
type keyOutput interface {
	playback.Actuator
	io.Closer
}

func openActuator(cfg *config.Config) (keyOutput, error) {
	a := cfg.Actuator
	switch a.Kind {
	case config.KindSerial:
		if a.Serial.Device == "" {
			return nil, fmt.Errorf("serial actuator needs a device, see 'autohold ports'")
		}
		return actuator.OpenSerial(a.Serial.Device, a.Serial.Baud, cfg.Layout(), logger)
	case config.KindMIDI:
		return actuator.OpenMIDI(a.MIDI.Port, cfg.MIDIPitches(), a.MIDI.Channel, a.MIDI.Velocity, logger)
	default:
		return actuator.NewLog(logger), nil
	}
}
