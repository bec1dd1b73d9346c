package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/kpxc/protocol"
)

// logins <url>: list matching entries. Passwords are hidden unless asked for.
func loginsCmd(s *session) *cobra.Command {
	var (
		submitURL     string
		httpAuth      bool
		showPasswords bool
	)
	cmd := &cobra.Command{
		Use:   "logins <url>",
		Short: "List the entries matching a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			entries := s.access.GetLogins(cmd.Context(), args[0], submitURL, httpAuth, nil)
			if len(entries) == 0 {
				return fmt.Errorf("no logins found for %s", args[0])
			}
			for _, e := range entries {
				if showPasswords {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", e.UUID, e.Name, e.Login, e.Password)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.UUID, e.Name, e.Login)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&submitURL, "submit-url", "", "form submit URL")
	cmd.Flags().BoolVar(&httpAuth, "http-auth", false, "include HTTP Basic Auth entries")
	cmd.Flags().BoolVar(&showPasswords, "show-passwords", false, "print passwords")
	return cmd
}

// set-login: create an entry, or update the one named by --uuid.
func setLoginCmd(s *session) *cobra.Command {
	var l protocol.Login
	cmd := &cobra.Command{
		Use:   "set-login",
		Short: "Create or update an entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			if !s.access.SetLogin(cmd.Context(), l) {
				return failed("set-login")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&l.URL, "url", "", "entry URL")
	cmd.Flags().StringVar(&l.SubmitURL, "submit-url", "", "form submit URL")
	cmd.Flags().StringVar(&l.Login, "login", "", "user name")
	cmd.Flags().StringVar(&l.Password, "password", "", "password")
	cmd.Flags().StringVar(&l.Group, "group", "", "group name")
	cmd.Flags().StringVar(&l.GroupUUID, "group-uuid", "", "group uuid")
	cmd.Flags().StringVar(&l.UUID, "uuid", "", "uuid of the entry to update")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func generateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a password with KeePassXC's generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			password := s.access.GeneratePassword(cmd.Context())
			if password == "" {
				return failed("generate")
			}
			fmt.Fprintln(cmd.OutOrStdout(), password)
			return nil
		},
	}
}

func totpCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "totp <uuid>",
		Short: "Print the current TOTP of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			totp := s.access.GetTOTP(cmd.Context(), args[0])
			if totp == "" {
				return failed("totp")
			}
			fmt.Fprintln(cmd.OutOrStdout(), totp)
			return nil
		},
	}
}

func deleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uuid>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			if !s.access.DeleteEntry(cmd.Context(), args[0]) {
				return failed("delete")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

// autotype <search>: start global Auto-Type for entries matching search.
func autotypeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "autotype <search>",
		Short: "Start global Auto-Type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAssociation(); err != nil {
				return err
			}
			if !s.access.RequestAutotype(cmd.Context(), args[0]) {
				return failed("autotype")
			}
			return nil
		},
	}
}
