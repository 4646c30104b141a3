package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlease/internal/sequence"
	"github.com/roach88/seqlease/internal/store"
)

// DefineOptions holds flags for the define command.
type DefineOptions struct {
	*RootOptions
	Min   int64
	Max   int64
	Step  int64
	Count int64
	Loop  bool
}

// NewDefineCommand creates the define command.
func NewDefineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DefineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "define <name>",
		Short: "Create or redefine a fixed sequence",
		Long: `Create or redefine the durable row of a fixed-mode sequence.

Redefining an existing sequence keeps its high-water mark when the mark
still lies inside the new range, so values already handed out are not
reissued. Otherwise the mark resets to --min.

Example:
  seqctl define invoice --min 1000 --max 1000000 --count 50
  seqctl define ticket --max 10000 --loop`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefine(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Min, "min", sequence.DefaultMin, "first value")
	cmd.Flags().Int64Var(&opts.Max, "max", math.MaxInt64, "exclusive upper bound")
	cmd.Flags().Int64Var(&opts.Step, "step", sequence.DefaultStep, "increment between values")
	cmd.Flags().Int64Var(&opts.Count, "count", sequence.DefaultCount, "values per leased segment")
	cmd.Flags().BoolVar(&opts.Loop, "loop", false, "wrap to --min instead of failing when the range is used up")

	return cmd
}

// defineResult reports the row after a define.
type defineResult struct {
	sequenceView
}

func (d defineResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "defined %s: [%d, %d) step=%d count=%d loop=%t current=%d\n",
		d.Name, d.Min, d.Max, d.Step, d.Count, d.Loop, d.Current)
	return err
}

func runDefine(opts *DefineOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sequence.StoreKey(name, false)
	if err != nil {
		return outputError(sess.formatter, ErrCodeInvalid, "invalid name", err)
	}

	rec := store.Record{
		Name:    key,
		Current: opts.Min,
		Min:     opts.Min,
		Max:     opts.Max,
		Step:    opts.Step,
		Count:   opts.Count,
		Loop:    opts.Loop,
	}
	if err := rec.Validate(); err != nil {
		return outputError(sess.formatter, ErrCodeInvalid, "invalid definition", err)
	}

	if err := sess.store.Put(ctx, rec); err != nil {
		return outputError(sess.formatter, ErrCodeStore, "defining sequence", err)
	}
	sess.logger.Info("sequence defined", "sequence", key, "min", rec.Min, "max", rec.Max)

	saved, err := sess.store.Get(ctx, key)
	if err != nil {
		return outputError(sess.formatter, classify(err), "reading back sequence", err)
	}
	return sess.formatter.Success(defineResult{newSequenceView(saved)})
}
