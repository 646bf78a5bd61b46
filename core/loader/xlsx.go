package loader

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/asaidimu/go-rowcase/core/record"
)

// loadXLSX reads one sheet of a workbook. Spreadsheets drop trailing empty
// cells, so short rows are padded with empty values; rows wider than the
// header are malformed. Rows with no content are skipped.
func loadXLSX(path, sheet string) ([]record.Row, error) {
	xlFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx %s: %w", ErrMalformedData, path, err)
	}
	defer xlFile.Close()

	if sheet == "" {
		sheet = xlFile.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("%w: no sheets found in %s", ErrMalformedData, path)
		}
	}

	grid, err := xlFile.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q of %s: %w", ErrMalformedData, sheet, path, err)
	}

	var header []string
	var rows []record.Row
	for i, cells := range grid {
		trimFields(cells)
		if isEmptyRow(cells) {
			continue
		}
		if header == nil {
			if err := checkHeader(cells); err != nil {
				return nil, fmt.Errorf("%w: %s sheet %q row %d: %v", ErrMalformedData, path, sheet, i+1, err)
			}
			header = cells
			continue
		}
		if len(cells) > len(header) {
			return nil, fmt.Errorf("%w: %s sheet %q row %d: expected %d fields, got %d",
				ErrMalformedData, path, sheet, i+1, len(header), len(cells))
		}
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		rows = append(rows, record.New(header, cells))
	}
	return rows, nil
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
