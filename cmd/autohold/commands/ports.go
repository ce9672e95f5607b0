package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chase3718/autohold/internal/actuator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial devices and MIDI outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		fmt.Fprintln(w, titleStyle.Render("Serial devices"))
		serials, err := actuator.SerialPorts()
		if err != nil {
			logger.Warn("listing serial ports", "err", err)
		}
		printList(cmd, serials)

		fmt.Fprintln(w, titleStyle.Render("MIDI outputs"))
		outs, err := actuator.MIDIOutputs()
		if err != nil {
			logger.Warn("listing midi outputs", "err", err)
		}
		printList(cmd, outs)
		return nil
	},
}

func printList(cmd *cobra.Command, items []string) {
	w := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(w, helpStyle.Render("  (none)"))
		return
	}
	for _, it := range items {
		fmt.Fprintln(w, "  "+it)
	}
}
