package emissions

import (
	"github.com/ritzau/mfa-dashboard/pkg/model"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
)

const (
	// DefaultBaseline converts a material amount into its original emission
	DefaultBaseline = 0.5

	// ProductCategory is the only output category counted as useful output; every other
	// category leaving a sector is waste
	ProductCategory = "cars"
)

// Table is the emission records of one sector: original rows followed by modified rows
type Table []model.EmissionRecord

// Original returns the rows tagged original
func (t Table) Original() Table {
	return t.filter(model.EmissionOriginal)
}

// Modified returns the rows tagged modified
func (t Table) Modified() Table {
	return t.filter(model.EmissionModified)
}

func (t Table) filter(kind model.EmissionType) Table {
	out := make(Table, 0, len(t)/2)
	for _, r := range t {
		if r.EmissionType == kind {
			out = append(out, r)
		}
	}
	return out
}

// Derive builds the emissions table for sector. Input rows whose target is the sector and
// output rows whose sector matches contribute amount*baseline as original emissions; the
// modified copy multiplies those by factor. No matching rows yields an empty table.
func Derive(tables *workbook.Tables, sector string, baseline, factor float64) Table {
	original := make(Table, 0)

	for _, row := range tables.Inputs {
		if row.Target != sector {
			continue
		}
		original = append(original, model.EmissionRecord{
			Type:         model.RecordInput,
			Source:       row.Source,
			Emissions:    row.Value * baseline,
			EmissionType: model.EmissionOriginal,
		})
	}

	for _, row := range tables.Outputs {
		if row.Sector != sector {
			continue
		}
		amount := 0.0
		if row.HasAmount {
			amount = row.Amount
		}
		original = append(original, model.EmissionRecord{
			Type:         outputType(row.Output),
			Source:       row.Output,
			Emissions:    amount * baseline,
			EmissionType: model.EmissionOriginal,
		})
	}

	table := make(Table, 0, 2*len(original))
	table = append(table, original...)
	table = append(table, Modify(original, factor)...)
	return table
}

// Modify returns copies of records with emissions scaled by factor and tagged modified
func Modify(records Table, factor float64) Table {
	modified := make(Table, len(records))
	for i, r := range records {
		modified[i] = model.EmissionRecord{
			Type:         r.Type,
			Source:       r.Source,
			Emissions:    r.Emissions * factor,
			EmissionType: model.EmissionModified,
		}
	}
	return modified
}

// DeriveAll derives one independent table per sector
func DeriveAll(tables *workbook.Tables, sectors []string, baseline, factor float64) map[string]Table {
	result := make(map[string]Table, len(sectors))
	for _, sector := range sectors {
		result[sector] = Derive(tables, sector, baseline, factor)
	}
	return result
}

func outputType(category string) model.RecordType {
	if category == ProductCategory {
		return model.RecordOutput
	}
	return model.RecordWaste
}
