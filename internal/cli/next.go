package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlease/internal/seqservice"
	"github.com/roach88/seqlease/internal/sequence"
)

// NextOptions holds flags for the next command.
type NextOptions struct {
	*RootOptions
	N          int
	Dynamic    bool
	Prefix     string
	DatePrefix bool
	TimePrefix bool
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next <name>",
		Short: "Allocate values from a sequence",
		Long: `Allocate one or more values from a sequence.

Fixed sequences must have been created with define. With --dynamic an
unknown name is created with the default parameters (start at 1, step 1,
100 values per segment).

Values from one invocation come from the segment this process leases, so
running next repeatedly skips the unused tail of each lease.

Example:
  seqctl next invoice
  seqctl next orders --dynamic -n 5 --date-prefix`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.N, "num", "n", 1, "number of values to allocate")
	cmd.Flags().BoolVar(&opts.Dynamic, "dynamic", false, "create the sequence on first use")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "text prepended to each value")
	cmd.Flags().BoolVar(&opts.DatePrefix, "date-prefix", false, "prepend the current date (yyyyMMdd)")
	cmd.Flags().BoolVar(&opts.TimePrefix, "time-prefix", false, "prepend the current time (yyyyMMddHHmmss)")
	cmd.MarkFlagsMutuallyExclusive("prefix", "date-prefix", "time-prefix")

	return cmd
}

// nextResult lists allocated values, already rendered with any prefix.
type nextResult struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (r nextResult) writeText(w io.Writer) error {
	for _, v := range r.Values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

func runNext(opts *NextOptions, name string, cmd *cobra.Command) error {
	if opts.N < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid count %d: must be at least 1", opts.N))
	}

	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	reg, err := sess.registry(opts.RegistryOptions)
	if err != nil {
		return outputError(sess.formatter, ErrCodeConfig, "creating registry", err)
	}
	defer reg.Close()

	next := nextFunc(opts, reg, name)

	result := nextResult{Name: name, Values: make([]string, 0, opts.N)}
	for i := 0; i < opts.N; i++ {
		v, err := next(ctx)
		if err != nil {
			sess.formatter.VerboseLog("allocated %d of %d values before failing", len(result.Values), opts.N)
			return outputError(sess.formatter, classify(err), "allocating from "+name, err)
		}
		result.Values = append(result.Values, v)
	}
	return sess.formatter.Success(result)
}

// allocator returns one rendered value.
type allocator func(ctx context.Context) (string, error)

func nextFunc(opts *NextOptions, reg *sequence.Registry, name string) allocator {
	if opts.Dynamic {
		d := seqservice.NewDynamic(reg)
		d.Clock = opts.Now
		switch {
		case opts.DatePrefix:
			return func(ctx context.Context) (string, error) { return d.NextWithDatePrefix(ctx, name) }
		case opts.TimePrefix:
			return func(ctx context.Context) (string, error) { return d.NextWithTimePrefix(ctx, name) }
		}
		return func(ctx context.Context) (string, error) { return d.NextWithPrefix(ctx, opts.Prefix, name) }
	}

	f := seqservice.NewFixed(reg)
	f.Clock = opts.Now
	switch {
	case opts.DatePrefix:
		return func(ctx context.Context) (string, error) { return f.NextWithDatePrefix(ctx, name) }
	case opts.TimePrefix:
		return func(ctx context.Context) (string, error) { return f.NextWithTimePrefix(ctx, name) }
	}
	return func(ctx context.Context) (string, error) { return f.NextWithPrefix(ctx, opts.Prefix, name) }
}
