package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List remembered per-stream preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		srv, err := connect(ctx, serverOptions())
		if err != nil {
			return err
		}
		defer srv.Close()

		entries, err := srv.ListEntries(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No stream-restore entries found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tDEVICE\tVOLUME\tMUTE")
		for _, e := range entries {
			device := e.Device
			if device == "" {
				device = "-"
			}
			volume := "-"
			if p := e.VolumePercent(); p >= 0 {
				volume = strconv.Itoa(p) + "%"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", e.Name, device, volume, e.Mute)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(entriesCmd)
}
