package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Save writes tables to a new workbook at path using the same layout Load expects.
// The destination column is written only when DestinationColumn is set.
func Save(path string, tables *Tables) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", InputSheet); err != nil {
		return fmt.Errorf("naming sheet %s: %w", InputSheet, err)
	}
	if _, err := f.NewSheet(OutputSheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", OutputSheet, err)
	}

	if err := f.SetSheetRow(InputSheet, "A1", &[]interface{}{"entity", "sector", "value"}); err != nil {
		return err
	}
	for i, in := range tables.Inputs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(InputSheet, cell, &[]interface{}{in.Source, in.Target, in.Value}); err != nil {
			return err
		}
	}

	header := []interface{}{"sector", "output"}
	if tables.DestinationColumn != "" {
		header = append(header, tables.DestinationColumn)
	}
	header = append(header, "amount")
	if err := f.SetSheetRow(OutputSheet, "A1", &header); err != nil {
		return err
	}

	for i, out := range tables.Outputs {
		row := []interface{}{out.Sector, out.Output}
		if tables.DestinationColumn != "" {
			row = append(row, out.Destination)
		}
		if out.HasAmount {
			row = append(row, out.Amount)
		} else {
			row = append(row, nil)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(OutputSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

// Sample returns a small demonstration data set covering every flow kind
func Sample() *Tables {
	return &Tables{
		DestinationColumn: "destination",
		Inputs: []InputRow{
			{Source: "households", Target: "government", Value: 100},
			{Source: "mining", Target: "industry", Value: 250},
			{Source: "imports", Target: "industry", Value: 120},
			{Source: "energy", Target: "government", Value: 60},
		},
		Outputs: []OutputRow{
			{Sector: "industry", Output: "cars", Destination: "households", Amount: 40, HasAmount: true},
			{Sector: "industry", Output: "cars", Amount: 80, HasAmount: true},
			{Sector: "industry", Output: "slag", Amount: 90, HasAmount: true},
			{Sector: "industry", Output: "emissions", Amount: 60, HasAmount: true},
			{Sector: "government", Output: "sludge", Amount: 10, HasAmount: true},
			{Sector: "government", Output: "paper", Destination: "recycling", Amount: 25, HasAmount: true},
			{Sector: "government", Output: "paper", Amount: 35, HasAmount: true},
		},
	}
}
