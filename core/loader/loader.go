// Package loader reads delimited and spreadsheet files into rows. The first
// record of a file is the header naming the fields of every following record.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asaidimu/go-rowcase/core/record"
)

var (
	// ErrFileNotFound is returned when a data file does not exist.
	ErrFileNotFound = errors.New("data file not found")
	// ErrMalformedData is returned when a file cannot be parsed, its header is
	// invalid, or a row does not have as many fields as the header.
	ErrMalformedData = errors.New("malformed data")
)

// Format identifies how a data file is parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// Options tune how a file is read. The zero value detects the format from
// the file extension.
type Options struct {
	// Format overrides extension based detection.
	Format Format
	// Comma overrides the field delimiter of delimited formats.
	Comma rune
	// Sheet selects the spreadsheet sheet; defaults to the first one.
	Sheet string
}

// DetectFormat infers the format from the extension of path. Unknown
// extensions are treated as CSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// LoadFromFile reads path, resolved against the working directory, with
// default options.
func LoadFromFile(path string) ([]record.Row, error) {
	return Load(path, Options{})
}

// Load reads path, resolved against the working directory. The file must
// exist; every data row must have exactly as many fields as the header.
func Load(path string, opts Options) ([]record.Row, error) {
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fullPath)
		}
		return nil, fmt.Errorf("checking %s: %w", fullPath, err)
	}

	format := opts.Format
	if format == "" {
		format = DetectFormat(fullPath)
	}

	switch format {
	case FormatXLSX:
		return loadXLSX(fullPath, opts.Sheet)
	case FormatCSV, FormatTSV:
		if opts.Comma == 0 && format == FormatTSV {
			opts.Comma = '\t'
		}
		f, err := os.Open(fullPath)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fullPath, err)
		}
		defer f.Close()
		return parse(f, fullPath, opts.Comma)
	default:
		return nil, fmt.Errorf("unsupported data format %q", format)
	}
}

// Parse reads delimited text from r. A zero comma means ','.
func Parse(r io.Reader, comma rune) ([]record.Row, error) {
	return parse(r, "input", comma)
}

func parse(r io.Reader, name string, comma rune) ([]record.Row, error) {
	if comma == 0 {
		comma = ','
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	cr := csv.NewReader(bytes.NewReader(dropSpaceAfterQuotes(data, comma)))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var header []string
	var rows []record.Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedData, name, err)
		}
		trimFields(rec)
		if isBlank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)

		if header == nil {
			rec[0] = strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff"))
			if err := checkHeader(rec); err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedData, name, line, err)
			}
			header = rec
			continue
		}

		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: %s line %d: expected %d fields, got %d",
				ErrMalformedData, name, line, len(header), len(rec))
		}
		rows = append(rows, record.New(header, rec))
	}
	return rows, nil
}

// dropSpaceAfterQuotes removes the blanks between the closing quote of a
// quoted field and the following delimiter or line end, which encoding/csv
// would otherwise reject. Everything else is copied unchanged.
func dropSpaceAfterQuotes(data []byte, comma rune) []byte {
	space := func(r rune) bool { return r == ' ' || (r == '\t' && comma != '\t') }

	out := make([]byte, 0, len(data))
	fieldStart, inQuotes, closed := true, false, false
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		chunk := data[i : i+size]
		i += size

		switch {
		case inQuotes:
			if r == '"' {
				if i < len(data) && data[i] == '"' {
					out = append(out, '"', '"')
					i++
					continue
				}
				inQuotes, closed = false, true
			}
		case closed && space(r):
			continue
		case r == comma || r == '\n' || r == '\r':
			fieldStart, closed = true, false
		case fieldStart && space(r):
		case fieldStart && r == '"':
			fieldStart, inQuotes = false, true
		default:
			fieldStart, closed = false, false
		}
		out = append(out, chunk...)
	}
	return out
}

func trimFields(rec []string) {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
}

// isBlank reports whether a record came from a line holding only whitespace.
func isBlank(rec []string) bool {
	return len(rec) == 0 || (len(rec) == 1 && rec[0] == "")
}

func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		if name == "" {
			return fmt.Errorf("header column %d is empty", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
