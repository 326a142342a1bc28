package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the current default sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		srv, err := connect(ctx, serverOptions())
		if err != nil {
			return err
		}
		defer srv.Close()

		sink, err := srv.CurrentDefaultSink(ctx)
		if err != nil {
			return err
		}
		if sink == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No default sink set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), sink)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(currentCmd)
}
