package workbook

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ritzau/mfa-dashboard/pkg/logging"
	"github.com/xuri/excelize/v2"
)

// Sheet names the loader requires
const (
	InputSheet  = "input_to_sector"
	OutputSheet = "sector_to_output"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidNumber = errors.New("invalid number")
)

// InputRow is one row of the input_to_sector sheet
type InputRow struct {
	Source string  `json:"source"` // External entity or sector feeding material in
	Target string  `json:"target"` // Receiving sector
	Value  float64 `json:"value"`  // Empty cells read as 0
}

// OutputRow is one row of the sector_to_output sheet.
// Empty text cells are the empty string; an empty amount cell has HasAmount false.
type OutputRow struct {
	Sector      string  `json:"sector"`
	Output      string  `json:"output"`
	Destination string  `json:"destination,omitempty"` // Downstream node, only set in some rows
	Amount      float64 `json:"amount"`
	HasAmount   bool    `json:"-"`
}

// Complete reports whether every field of the row is filled in
func (r OutputRow) Complete() bool {
	return r.Sector != "" && r.Output != "" && r.Destination != "" && r.HasAmount
}

// Tables holds both sheets as loaded, in sheet order
type Tables struct {
	Inputs  []InputRow  `json:"inputs"`
	Outputs []OutputRow `json:"outputs"`

	// DestinationColumn is the header of the extra sector_to_output column, if any
	DestinationColumn string `json:"destinationColumn,omitempty"`
}

// Load reads both sheets from the workbook at path
func Load(path string) (*Tables, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	tables, err := readTables(f)
	if err != nil {
		return nil, fmt.Errorf("reading workbook %s: %w", path, err)
	}

	logging.Debug("loaded workbook", "path", path, "inputs", len(tables.Inputs), "outputs", len(tables.Outputs))
	return tables, nil
}

// Read reads both sheets from a workbook stream
func Read(r io.Reader) (*Tables, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	return readTables(f)
}

func readTables(f *excelize.File) (*Tables, error) {
	inputRows, err := sheetRows(f, InputSheet)
	if err != nil {
		return nil, err
	}
	outputRows, err := sheetRows(f, OutputSheet)
	if err != nil {
		return nil, err
	}

	inputs, err := parseInputs(inputRows)
	if err != nil {
		return nil, err
	}

	tables := &Tables{Inputs: inputs}
	tables.Outputs, tables.DestinationColumn, err = parseOutputs(outputRows)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// parseInputs maps input_to_sector columns by position: source, target, value
func parseInputs(rows [][]string) ([]InputRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	inputs := make([]InputRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		value, _, err := parseNumber(cell(row, 2))
		if err != nil {
			return nil, fmt.Errorf("%s row %d column 3: %w", InputSheet, i+2, err)
		}

		inputs = append(inputs, InputRow{
			Source: cell(row, 0),
			Target: cell(row, 1),
			Value:  value,
		})
	}
	return inputs, nil
}

// parseOutputs maps sector_to_output columns by header name. The first column that is not
// sector, output or amount is taken as the destination column.
func parseOutputs(rows [][]string) ([]OutputRow, string, error) {
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("%w: %s has no header row", ErrMissingColumn, OutputSheet)
	}

	header := rows[0]
	sectorCol, outputCol, amountCol, destCol := -1, -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "sector":
			sectorCol = i
		case "output":
			outputCol = i
		case "amount":
			amountCol = i
		case "":
		default:
			if destCol == -1 {
				destCol = i
			}
		}
	}

	required := []struct {
		name string
		col  int
	}{{"sector", sectorCol}, {"output", outputCol}, {"amount", amountCol}}
	for _, r := range required {
		if r.col == -1 {
			return nil, "", fmt.Errorf("%w: %s.%s", ErrMissingColumn, OutputSheet, r.name)
		}
	}

	destName := ""
	if destCol != -1 {
		destName = strings.TrimSpace(header[destCol])
	}

	outputs := make([]OutputRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		amount, ok, err := parseNumber(cell(row, amountCol))
		if err != nil {
			return nil, "", fmt.Errorf("%s row %d column %d: %w", OutputSheet, i+2, amountCol+1, err)
		}

		out := OutputRow{
			Sector:    cell(row, sectorCol),
			Output:    cell(row, outputCol),
			Amount:    amount,
			HasAmount: ok,
		}
		if destCol != -1 {
			out.Destination = cell(row, destCol)
		}
		outputs = append(outputs, out)
	}
	return outputs, destName, nil
}

// cell returns the trimmed value at col; GetRows drops trailing empty cells
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// missingMarkers are cell texts read as an empty cell, as spreadsheet exports write them
var missingMarkers = map[string]bool{
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"#n/a": true,
	"null": true,
}

// parseNumber returns (0, false, nil) for an empty or NA cell. Infinite values are rejected.
func parseNumber(s string) (float64, bool, error) {
	if s == "" || missingMarkers[strings.ToLower(s)] {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, true, nil
}
