package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func groupsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List database groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			groups := s.access.DatabaseGroupsToMap(s.access.GetDatabaseGroups(cmd.Context()))
			names := make([]string, 0, len(groups))
			for name := range groups {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", groups[name], name)
			}
			return nil
		},
	}
}

// create-group <path>: create every missing level of a slash separated path.
func createGroupCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "create-group <path>",
		Short: "Create a group path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			group := s.access.CreateNewGroup(cmd.Context(), args[0])
			if len(group) == 0 {
				return failed("create-group")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", group["uuid"], group["name"])
			return nil
		},
	}
}

func lockCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Lock the active database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			if !s.access.LockDatabase(cmd.Context()) {
				return failed("lock")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "locked")
			return nil
		},
	}
}

// hash [--unlock]: print the active database hash.
func hashCmd(s *session) *cobra.Command {
	var unlock bool
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the active database hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := s.access.GetDatabaseHash(cmd.Context(), unlock)
			if hash == "" {
				return failed("hash")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unlock, "unlock", false, "ask KeePassXC to unlock the database first")
	return cmd
}
