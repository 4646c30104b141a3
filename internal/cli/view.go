package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/roach88/seqlease/internal/sequence"
	"github.com/roach88/seqlease/internal/store"
)

// sequenceView is the printable form of a durable row.
type sequenceView struct {
	Name      string     `json:"name"`
	Dynamic   bool       `json:"dynamic"`
	Current   int64      `json:"current"`
	Min       int64      `json:"min"`
	Max       int64      `json:"max"`
	Step      int64      `json:"step"`
	Count     int64      `json:"count"`
	Loop      bool       `json:"loop"`
	LeasedBy  string     `json:"leased_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newSequenceView(rec store.Record) sequenceView {
	name, dynamic := sequence.DisplayName(rec.Name)
	v := sequenceView{
		Name:     name,
		Dynamic:  dynamic,
		Current:  rec.Current,
		Min:      rec.Min,
		Max:      rec.Max,
		Step:     rec.Step,
		Count:    rec.Count,
		Loop:     rec.Loop,
		LeasedBy: rec.LeasedBy,
	}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

func (v sequenceView) mode() string {
	if v.Dynamic {
		return "dynamic"
	}
	return "fixed"
}

func (v sequenceView) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", v.Name)
	fmt.Fprintf(tw, "mode:\t%s\n", v.mode())
	fmt.Fprintf(tw, "current:\t%d\n", v.Current)
	fmt.Fprintf(tw, "range:\t[%d, %d)\n", v.Min, v.Max)
	fmt.Fprintf(tw, "step:\t%d\n", v.Step)
	fmt.Fprintf(tw, "count:\t%d\n", v.Count)
	fmt.Fprintf(tw, "loop:\t%t\n", v.Loop)
	if v.LeasedBy != "" {
		fmt.Fprintf(tw, "leased_by:\t%s\n", v.LeasedBy)
	}
	if v.UpdatedAt != nil {
		fmt.Fprintf(tw, "updated_at:\t%s\n", v.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// listView renders rows as a table in text mode and an array in JSON.
type listView []sequenceView

func (l listView) writeText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "no sequences defined")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODE\tCURRENT\tMIN\tMAX\tSTEP\tCOUNT\tLOOP")
	for _, v := range l {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
			v.Name, v.mode(), v.Current, v.Min, v.Max, v.Step, v.Count, v.Loop)
	}
	return tw.Flush()
}
