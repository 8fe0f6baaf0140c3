// Package cli implements quotectl, a command line client for a visitor's
// quote kept in a file or sqlite store shared with running servers.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/document"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/authapi"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/config"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/di"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

type options struct {
	driver  string
	dir     string
	db      string
	visitor string
	verbose bool
	auth    config.AuthAPI
}

// RootCmd builds the quotectl command tree.
func RootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Inspect and edit a Party Wings quote",
		Long: `quotectl reads and edits the quote selections of one visitor.
Changes are seen by every open tab sharing the same store.`,
		SilenceUsage: true,
	}

	cfg := config.Default(config.Development)
	if loaded, err := config.Load(); err == nil {
		cfg = loaded
	}
	opts.auth = cfg.AuthAPI
	defaults := cfg.Storage
	if defaults.Driver != config.DriverSQLite {
		defaults.Driver = config.DriverFile
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", defaults.Driver, "store driver (file|sqlite)")
	flags.StringVar(&opts.dir, "dir", defaults.Dir, "directory of the file store")
	flags.StringVar(&opts.db, "db", defaults.Path, "path of the sqlite store")
	flags.StringVar(&opts.visitor, "visitor", "local", "visitor whose quote to use")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log store activity")
	flags.StringVar(&opts.auth.BaseURL, "auth", authapi.BaseURL(cfg.AuthAPI), "vendor auth API base URL")

	root.AddCommand(addCmd(opts))
	root.AddCommand(removeCmd(opts))
	root.AddCommand(clearCmd(opts))
	root.AddCommand(listCmd(opts))
	root.AddCommand(watchCmd(opts))
	root.AddCommand(submitCmd(opts))
	root.AddCommand(signupCmd(opts))
	root.AddCommand(loginCmd(opts))
	root.AddCommand(whoamiCmd(opts))
	root.AddCommand(logoutCmd(opts))
	return root
}

// session is one open tab over the configured store.
type session struct {
	backend storage.Backend
	doc     *document.Document
	logger  *zap.Logger
	out     io.Writer
}

func (o *options) open() (*session, error) {
	logger := zap.NewNop()
	if o.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}

	var cfg config.Storage
	switch o.driver {
	case config.DriverFile:
		cfg = config.Storage{Driver: config.DriverFile, Dir: o.dir}
	case config.DriverSQLite:
		cfg = config.Storage{Driver: config.DriverSQLite, Path: o.db, PollInterval: defaultPoll}
	default:
		return nil, fmt.Errorf("unsupported driver %q (want file or sqlite)", o.driver)
	}

	backend, err := di.NewStorageBackend(cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	doc, err := document.Open(backend, o.visitor, document.WithLogger(logger))
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("open quote: %w", err)
	}
	return &session{backend: backend, doc: doc, logger: logger}, nil
}

func (s *session) Close() {
	s.doc.Close()
	if err := s.backend.Close(); err != nil {
		s.logger.Warn("Failed to close store", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func withSession(o *options, fn func(ctx context.Context, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s, err := o.open()
		if err != nil {
			return err
		}
		defer s.Close()
		s.out = cmd.OutOrStdout()
		return fn(cmd.Context(), s)
	}
}
