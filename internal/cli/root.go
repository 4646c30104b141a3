package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlease/internal/config"
	"github.com/roach88/seqlease/internal/sequence"
	"github.com/roach88/seqlease/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Store      string // driver override
	DSN        string // dsn override
	Verbose    bool
	Format     string // "json" | "text"

	// Registry options appended by tests (instance id, clock).
	RegistryOptions []sequence.Option

	// Now supplies the time for date and time prefixes. Default: time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the seqctl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seqctl",
		Short: "seqctl - segment-leased global sequences",
		Long: `Define, allocate from and inspect named sequences whose values are
unique across every process sharing the same durable store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "seqlease.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store driver override (sqlite|postgres|redis|memory)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "store dsn override")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewDefineCommand(opts))
	cmd.AddCommand(NewNextCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is what a command needs: resolved config, logger and an open store.
type session struct {
	cfg       config.Config
	logger    *slog.Logger
	store     store.Backend
	formatter *OutputFormatter
}

// openSession loads config, applies flag overrides and opens the store.
// The caller must call close.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, outputError(formatter, ErrCodeConfig, "loading config", err)
	}
	if opts.Store != "" {
		cfg.Store.Driver = opts.Store
	}
	if opts.DSN != "" {
		cfg.Store.DSN = opts.DSN
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, outputError(formatter, ErrCodeConfig, "configuring logger", err)
	}

	st, err := config.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, outputError(formatter, ErrCodeStore, "opening store", err)
	}
	logger.Debug("store ready", "driver", cfg.Store.Driver)

	return &session{cfg: cfg, logger: logger, store: st, formatter: formatter}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "error", err)
	}
}

// registry builds an allocation registry over the session's store.
func (s *session) registry(extra []sequence.Option) (*sequence.Registry, error) {
	opts := append([]sequence.Option{
		sequence.WithCacheConfig(s.cfg.Cache),
		sequence.WithLogger(s.logger),
	}, extra...)
	return sequence.NewRegistry(s.store, opts...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
