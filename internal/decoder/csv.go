package decoder

import (
	"encoding/csv"
	"io"

	"github.com/jfyne/csvd"
)

// newDelimitedReader sniffs the delimiter (comma, semicolon, tab, pipe) from
// the first lines of the input.
func newDelimitedReader(r io.Reader) *csv.Reader {
	return csvd.NewReader(r)
}
