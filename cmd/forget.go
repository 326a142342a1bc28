package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <entry>...",
	Short: "Delete remembered per-stream preferences by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		srv, err := connect(ctx, serverOptions())
		if err != nil {
			return err
		}
		defer srv.Close()

		if err := srv.Forget(ctx, args...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d stream-restore entries.\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}
