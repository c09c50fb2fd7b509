// Package decoder reads uploaded lead spreadsheets (xlsx or delimited text)
// into records keyed by internal field names.
package decoder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/h2non/filetype"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/mapper"
	"github.com/unclebandit/lead-ingest/internal/model"
)

// Format of a decoded upload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// rowSource yields raw row values and the 1-based sheet row they came from.
type rowSource interface {
	next() ([]any, int, error)
}

// Reader is a single pass over one uploaded file.
type Reader struct {
	name    string
	format  Format
	headers []string
	columns []string
	src     rowSource
	done    bool
}

// NewReader detects the file format, reads the header row and maps it.
// Unreadable content is an ErrDecode; an empty sheet is a reader that
// returns io.EOF straight away.
func NewReader(name string, data []byte, fm *mapper.FieldMap) (*Reader, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, appErrors.NewDecode(name, 0, err)
	}

	var src rowSource
	var headers []string
	switch format {
	case FormatXLSX:
		xs, err := openXLSX(data)
		if err != nil {
			return nil, appErrors.NewDecode(name, 0, err)
		}
		headers, src = xs.headers, xs
	default:
		cs, err := openCSV(data)
		if err != nil {
			return nil, appErrors.NewDecode(name, 1, err)
		}
		headers, src = cs.headers, cs
	}

	r := &Reader{
		name:    name,
		format:  format,
		headers: headers,
		columns: fm.Map(headers),
		src:     src,
	}
	if len(headers) == 0 {
		r.done = true
	}
	return r, nil
}

// Detect sniffs the content. Workbooks and plain zip containers are read as
// xlsx, text as delimited values, anything else (docx and pptx included) is
// rejected.
func Detect(data []byte) (Format, error) {
	kind, _ := filetype.Match(data)
	switch {
	case isZipContainer(kind.Extension):
		return FormatXLSX, nil
	case kind != filetype.Unknown:
		return "", fmt.Errorf("unsupported file type %s (%s)", kind.Extension, kind.MIME.Value)
	}

	contentType := http.DetectContentType(data)
	switch {
	case contentType == "application/zip":
		return FormatXLSX, nil
	case strings.HasPrefix(contentType, "text/"):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported content type %s", contentType)
}

func isZipContainer(ext string) bool {
	switch ext {
	case "xlsx", "zip":
		return true
	}
	return false
}

func (r *Reader) Format() Format { return r.format }

// Headers returns the header row as it appears in the file.
func (r *Reader) Headers() []string { return r.headers }

// Read returns the next non-blank row, or io.EOF once the sheet is exhausted.
// Columns without a mapping are dropped; empty cells are omitted.
func (r *Reader) Read() (*model.Record, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		values, row, err := r.src.next()
		if err != nil {
			r.done = true
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, appErrors.NewDecode(r.name, row, err)
		}
		if blank(values) {
			continue
		}

		rec := model.NewRecord(row)
		for i, v := range values {
			if i >= len(r.columns) || r.columns[i] == "" || isEmpty(v) {
				continue
			}
			rec.Set(r.columns[i], v)
		}
		return rec, nil
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func blank(values []any) bool {
	for _, v := range values {
		if !isEmpty(v) {
			return false
		}
	}
	return true
}

type csvSource struct {
	reader  *csv.Reader
	headers []string
	row     int
}

func (s *csvSource) next() ([]any, int, error) {
	fields, err := s.reader.Read()
	s.row++
	if err != nil {
		return nil, s.row, err
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = f
	}
	return values, s.row, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func openCSV(data []byte) (*csvSource, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := newDelimitedReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	s := &csvSource{reader: reader}
	headers, err := reader.Read()
	s.row = 1
	if errors.Is(err, io.EOF) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s.headers = headers
	return s, nil
}
