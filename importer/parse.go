package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrParse marks malformed input that the parsers could not read at all, as
// opposed to readable files that simply contain no holdings.
var ErrParse = errors.New("failed to parse file")

// ParseCSV reads a header-row CSV into raw rows. Ragged records are
// tolerated; fully empty lines are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	return recordsToRows(header, records[1:]), nil
}

// ParseXLS reads the first sheet of an xls/xlsx workbook, treating its first
// row as the header.
func ParseXLS(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	return recordsToRows(header, records[1:]), nil
}

func recordsToRows(header []string, records [][]string) []Row {
	var rows []Row
	for _, record := range records {
		row := make(Row, len(header))
		empty := true
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			row[name] = record[i]
			if strings.TrimSpace(record[i]) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
