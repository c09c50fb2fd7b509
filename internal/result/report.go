package result

import (
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/reconcile"
)

// ErrorRow is one line of the errored-rows report.
type ErrorRow struct {
	Row    int    `csv:"row"`
	Error  string `csv:"error"`
	Values string `csv:"values"`
}

// ErrorReport renders errored outcomes as CSV. It returns nil when there is
// nothing to report.
func ErrorReport(errored []reconcile.Outcome) ([]byte, error) {
	if len(errored) == 0 {
		return nil, nil
	}
	rows := make([]*ErrorRow, 0, len(errored))
	for _, o := range errored {
		r := &ErrorRow{Row: o.Row}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		if o.Record != nil {
			r.Values = rawValues(o.Record.Fields())
		}
		rows = append(rows, r)
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("encode error report: %w", err)
	}
	return out, nil
}

func rawValues(fs model.Fields) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Value)
	}
	return strings.Join(parts, "; ")
}
