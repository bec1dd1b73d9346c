package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/kpxc"
	"github.com/opd-ai/kpxc/factory"
	"github.com/opd-ai/kpxc/proxy"
)

var errNotAssociated = errors.New("not associated with this database, run 'kpxc associate' first")

// session is the state shared by the subcommands of one invocation.
type session struct {
	socketPath  string
	credentials string
	passphrase  string
	timeout     int
	logLevel    string
	simulate    bool

	access *kpxc.Access
}

func (s *session) open(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(s.logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())

	f := factory.NewTransportFactory()
	cfg := f.GetCurrentConfig()
	if s.socketPath != "" {
		cfg.SocketPath = s.socketPath
	}
	if s.timeout > 0 {
		cfg.ResponseTimeout = s.timeout
	}
	if s.simulate {
		cfg.UseSimulation = true
	}
	if err := f.UpdateConfig(cfg); err != nil {
		return err
	}

	transport, err := f.CreateTransport()
	if err != nil {
		return err
	}

	options := kpxc.NewOptions()
	options.CredentialsPath = s.credentials
	if s.passphrase != "" {
		options.Passphrase = []byte(s.passphrase)
	}
	access, err := kpxc.New(transport, cfg, options)
	if err != nil {
		return err
	}
	s.access = access

	if !access.Connect(cmd.Context()) {
		return errors.New("cannot reach KeePassXC, is browser integration enabled?")
	}
	return nil
}

func (s *session) close() {
	if s.access != nil {
		s.access.Shutdown()
		s.access = nil
	}
}

// requireAssociation fails unless the stored association was accepted on
// connect.
func (s *session) requireAssociation() error {
	if s.access.Connection().State() != proxy.StateAssociated {
		return errNotAssociated
	}
	return nil
}

func failed(op string) error {
	return fmt.Errorf("%s failed, run with --log-level=info for details", op)
}

// newRootCommand builds the kpxc command tree around s. The caller closes s
// after Execute returns.
func newRootCommand(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:          "kpxc",
		Short:        "Talk to KeePassXC through its browser integration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&s.socketPath, "socket", "", "KeePassXC socket or pipe path (default: discovered)")
	root.PersistentFlags().StringVar(&s.credentials, "credentials", "", "credential file (default: user config dir)")
	root.PersistentFlags().StringVarP(&s.passphrase, "passphrase", "p", "", "passphrase to encrypt the credential file")
	root.PersistentFlags().IntVar(&s.timeout, "timeout", 0, "response timeout in milliseconds for bounded requests")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&s.simulate, "simulate", false, "use an in-memory KeePassXC instead of the real one")

	root.AddCommand(
		associateCmd(s),
		hashCmd(s),
		loginsCmd(s),
		setLoginCmd(s),
		groupsCmd(s),
		generateCmd(s),
		lockCmd(s),
		totpCmd(s),
		createGroupCmd(s),
		deleteCmd(s),
		autotypeCmd(s),
	)
	return root
}

// Execute runs the CLI until it finishes or is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := &session{}
	defer s.close()
	return newRootCommand(s).ExecuteContext(ctx)
}
