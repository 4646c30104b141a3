package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlease/internal/sequence"
)

// InspectOptions holds flags for commands that address one sequence.
type InspectOptions struct {
	*RootOptions
	Dynamic bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the durable record of a sequence",
		Long: `Print the durable record of a sequence: its range, lease size and
high-water mark, and which instance reserved the last segment.

Example:
  seqctl show invoice
  seqctl show orders --dynamic --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Dynamic, "dynamic", false, "address the dynamic sequence of that name")

	return cmd
}

func runShow(opts *InspectOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sequence.StoreKey(name, opts.Dynamic)
	if err != nil {
		return outputError(sess.formatter, ErrCodeInvalid, "invalid name", err)
	}

	rec, err := sess.store.Get(ctx, key)
	if err != nil {
		return outputError(sess.formatter, classify(err), "reading sequence", err)
	}
	return sess.formatter.Success(newSequenceView(rec))
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all sequences",
		Long: `List the durable records of all fixed and dynamic sequences,
ordered by name.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	recs, err := sess.store.List(ctx)
	if err != nil {
		return outputError(sess.formatter, ErrCodeStore, "listing sequences", err)
	}

	views := make(listView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newSequenceView(rec))
	}
	return sess.formatter.Success(views)
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Delete the durable record of a sequence",
		Long: `Delete the durable record of a sequence.

Processes that still hold a lease keep allocating from it until it runs
out; their next refill then fails. A dynamic sequence is re-created from
scratch on its next use, so its values may repeat.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrop(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Dynamic, "dynamic", false, "address the dynamic sequence of that name")

	return cmd
}

// dropResult reports a deleted row.
type dropResult struct {
	Name    string `json:"name"`
	Dynamic bool   `json:"dynamic"`
}

func (d dropResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "dropped %s\n", d.Name)
	return err
}

func runDrop(opts *InspectOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	sess, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sequence.StoreKey(name, opts.Dynamic)
	if err != nil {
		return outputError(sess.formatter, ErrCodeInvalid, "invalid name", err)
	}

	if err := sess.store.Delete(ctx, key); err != nil {
		return outputError(sess.formatter, classify(err), "dropping sequence", err)
	}
	sess.logger.Info("sequence dropped", "sequence", key)
	return sess.formatter.Success(dropResult{Name: name, Dynamic: opts.Dynamic})
}
