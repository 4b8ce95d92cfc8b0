package tables

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat indicates a source file extension that cannot be read.
	ErrUnsupportedFormat = errors.New("tables: unsupported format")
	// ErrEmptySource indicates a source without a header row.
	ErrEmptySource = errors.New("tables: source has no header row")
)

// SupportedExtensions lists readable source formats in lookup order.
var SupportedExtensions = []string{".csv", ".xlsx"}

// Frame is a source table with canonical column names.
type Frame struct {
	Name        string
	Path        string
	DF          dataframe.DataFrame
	Diagnostics []schema.Diagnostic
}

// ReadFile loads a delimited text or xlsx table into a string-typed gota
// DataFrame whose headers are canonicalized.
func ReadFile(name, path string) (*Frame, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv", ".txt":
		records, err = readDelimited(path)
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return FromRecords(name, records)
}

// FromRecords builds a Frame from a header row plus data rows. Ragged rows
// are padded or truncated to the header width.
func FromRecords(name string, records [][]string) (*Frame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, name)
	}
	header, diags := canonicalHeader(name, records[0])
	width := len(header)

	rows := make([][]string, 0, len(records))
	rows = append(rows, header)
	for _, r := range records[1:] {
		if isBlank(r) {
			continue
		}
		rows = append(rows, fitWidth(r, width))
	}

	if len(rows) == 1 {
		cols := make([]series.Series, width)
		for i, col := range header {
			cols[i] = series.New([]string{}, series.String, col)
		}
		return &Frame{Name: name, DF: dataframe.New(cols...), Diagnostics: diags}, nil
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("tables: build frame %s: %w", name, df.Err)
	}
	return &Frame{Name: name, DF: df, Diagnostics: diags}, nil
}

// canonicalHeader canonicalizes labels and makes them unique; repeated
// names get a positional suffix and a diagnostic.
func canonicalHeader(source string, raw []string) ([]string, []schema.Diagnostic) {
	var diags []schema.Diagnostic
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, label := range raw {
		name := schema.Canonicalize(strings.TrimPrefix(label, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			diags = append(diags, schema.Diagnostic{
				Kind: schema.KindDuplicateColumn, Severity: schema.SeverityWarning, Source: source, Column: name,
				Message: fmt.Sprintf("column %q repeated at position %d; later copy ignored", name, i+1),
			})
			seen[name] = n + 1
			name = fmt.Sprintf("%s#%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out, diags
}

func fitWidth(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readDelimited(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tables: open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("tables: read %s: %w", path, err)
	}

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(first)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tables: parse %s: %w", path, err)
	}
	return records, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// header line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', bytes.Count(head, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(head, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("tables: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("tables: read %s: %w", path, err)
	}
	return rows, nil
}
