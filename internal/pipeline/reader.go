package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Row is one line of the table, split into cells.
type Row []string

// Table is a parsed input file.
type Table struct {
	Header Row
	Rows   []Row
}

// ReadOptions configures ReadRecords. The zero value reads UTF-8 with commas.
type ReadOptions struct {
	Delimiter rune
	Encoding  string
}

// WriteOptions configures WriteResults. Use the same values the input was
// read with so the output keeps the input's conventions.
type WriteOptions = ReadOptions

// ReadRecords parses the delimited file at path. The first row becomes the
// header. Cell counts are not checked.
func ReadRecords(path string, opts ReadOptions) (*Table, error) {
	enc, err := readEncoding(opts.Encoding)
	if err != nil {
		return nil, &Error{Kind: KindInput, Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindInput, Path: path, Err: eris.Wrap(err, "reader: open input")}
	}
	defer f.Close() //nolint:errcheck

	records, err := readAll(enc.NewDecoder().Reader(f), opts.Delimiter)
	if err != nil {
		return nil, &Error{Kind: KindInput, Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, &Error{Kind: KindInput, Path: path, Err: eris.New("reader: input has no header row")}
	}

	t := &Table{Header: Row(records[0])}
	for _, rec := range records[1:] {
		t.Rows = append(t.Rows, Row(rec))
	}
	return t, nil
}

func readAll(r io.Reader, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "reader: read input")
	}
	return records, nil
}

func isUTF8(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8")
}

// readEncoding resolves a WHATWG encoding label for reading. A leading UTF-8
// byte order mark is dropped.
func readEncoding(name string) (encoding.Encoding, error) {
	if isUTF8(name) {
		return unicode.UTF8BOM, nil
	}
	return lookupEncoding(name)
}

// writeEncoding resolves the label for writing. UTF-8 output carries no BOM.
func writeEncoding(name string) (encoding.Encoding, error) {
	if isUTF8(name) {
		return unicode.UTF8, nil
	}
	return lookupEncoding(name)
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, eris.Wrapf(err, "unsupported encoding %q", name)
	}
	return enc, nil
}
