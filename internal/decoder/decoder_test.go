package decoder_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unclebandit/lead-ingest/internal/decoder"
	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/mapper"
	"github.com/unclebandit/lead-ingest/internal/model"
)

func fieldMap() *mapper.FieldMap {
	return mapper.New([]model.FieldMapping{
		{ReadableField: "E-mail", InternalField: "email"},
		{ReadableField: "Amount", InternalField: "amount"},
		{ReadableField: "Notes", InternalField: "notes"},
	})
}

func readAll(t *testing.T, r *decoder.Reader) []*model.Record {
	t.Helper()
	var out []*model.Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", axis, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := workbook(t, [][]any{
		{"E-mail", "Amount", "Unmapped", "Notes"},
		{"alice@example.com", 42.5, "dropped", "call back"},
		{nil, nil, nil, nil},
		{"bob@example.com", nil, "dropped", "12345"},
	})

	r, err := decoder.NewReader("leads.xlsx", data, fieldMap())
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatXLSX, r.Format())
	assert.Equal(t, []string{"E-mail", "Amount", "Unmapped", "Notes"}, r.Headers())

	recs := readAll(t, r)
	require.Len(t, recs, 2)

	assert.Equal(t, 2, recs[0].Row)
	assert.Equal(t, model.Fields{
		{Name: "email", Value: "alice@example.com"},
		{Name: "amount", Value: 42.5},
		{Name: "notes", Value: "call back"},
	}, recs[0].Fields())

	// text cells stay text even when they look numeric
	assert.Equal(t, 4, recs[1].Row)
	assert.Equal(t, model.Fields{
		{Name: "email", Value: "bob@example.com"},
		{Name: "notes", Value: "12345"},
	}, recs[1].Fields())

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadDelimitedText(t *testing.T) {
	data := []byte("\xEF\xBB\xBFE-mail;Amount;Other\nalice@example.com;10;x\nbob@example.com;;y\ncarol@example.com;7;z\n")

	r, err := decoder.NewReader("leads.csv", data, fieldMap())
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatCSV, r.Format())

	recs := readAll(t, r)
	require.Len(t, recs, 3)
	assert.Equal(t, model.Fields{{Name: "email", Value: "alice@example.com"}, {Name: "amount", Value: "10"}}, recs[0].Fields())
	assert.Equal(t, model.Fields{{Name: "email", Value: "bob@example.com"}}, recs[1].Fields())
	assert.Equal(t, 4, recs[2].Row)
}

func TestEmptySheetIsEmptySequence(t *testing.T) {
	r, err := decoder.NewReader("empty.xlsx", workbook(t, nil), fieldMap())
	require.NoError(t, err)
	assert.Empty(t, readAll(t, r))

	r, err = decoder.NewReader("empty.csv", []byte{}, fieldMap())
	require.NoError(t, err)
	assert.Empty(t, readAll(t, r))
}

func TestUnreadableContentIsDecodeError(t *testing.T) {
	cases := map[string][]byte{
		"report.pdf": []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"),
		"blob.bin":   {0x00, 0x01, 0x02, 0x03, 0xff, 0xfe, 0x00, 0x00},
		"broken.xlsx": append([]byte("PK\x03\x04"), make([]byte, 64)...),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decoder.NewReader(name, data, fieldMap())
			var decodeErr *appErrors.ErrDecode
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Equal(t, name, decodeErr.File)
		})
	}
}

func officeDocument(t *testing.T, part string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", part} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types/>`))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOfficeDocumentsAreUnsupported(t *testing.T) {
	cases := map[string]string{
		"notes.docx": "word/document.xml",
		"deck.pptx":  "ppt/presentation.xml",
	}
	for name, part := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decoder.NewReader(name, officeDocument(t, part), fieldMap())
			var decodeErr *appErrors.ErrDecode
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Contains(t, err.Error(), "unsupported file type")
		})
	}
}
