package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// associate: pair with the database, or confirm an existing pairing.
func associateCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "associate",
		Short: "Pair with the open KeePassXC database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if s.access.ConnectionAvailable(ctx) {
				fmt.Fprintf(cmd.OutOrStdout(), "already associated as %s\n", s.access.AssociateID())
				return nil
			}
			if !s.access.Associate(ctx) {
				return failed("associate")
			}
			exported := s.access.ExportConnection()
			fmt.Fprintf(cmd.OutOrStdout(), "associated as %s\nid key: %s\n", exported["id"], exported["key"])
			return nil
		},
	}
	return cmd
}
