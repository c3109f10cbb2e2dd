package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the forwarding outcome log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.outcomes.Entries(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No outcome entries.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(out, e)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many entries (0 for all)")
	cmd.AddCommand(newLogsLatestCmd())
	cmd.AddCommand(newLogsClearCmd())
	return cmd
}

func newLogsLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show only the newest outcome entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintln(cmd.OutOrStdout(), r.outcomes.Latest())
			return nil
		},
	}
}

func newLogsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every outcome entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.outcomes.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Outcome log cleared.")
			return nil
		},
	}
}
