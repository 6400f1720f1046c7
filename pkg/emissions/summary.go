package emissions

import "github.com/ritzau/mfa-dashboard/pkg/model"

// Bin is one bar of a grouped emissions histogram
type Bin struct {
	Type         model.RecordType   `json:"type"`
	EmissionType model.EmissionType `json:"emission_type"`
	Total        float64            `json:"total"`
	Count        int                `json:"count"`
}

// Summarize sums emissions per (type, emission type). Bins keep the order in which each
// pair first appears in the table, which is the category order of the chart.
func Summarize(t Table) []Bin {
	type key struct {
		recordType   model.RecordType
		emissionType model.EmissionType
	}

	positions := make(map[key]int)
	bins := make([]Bin, 0)

	for _, r := range t {
		k := key{recordType: r.Type, emissionType: r.EmissionType}
		pos, ok := positions[k]
		if !ok {
			pos = len(bins)
			positions[k] = pos
			bins = append(bins, Bin{Type: r.Type, EmissionType: r.EmissionType})
		}
		bins[pos].Total += r.Emissions
		bins[pos].Count++
	}
	return bins
}

// Categories returns record types in first-appearance order
func Categories(t Table) []model.RecordType {
	seen := make(map[model.RecordType]bool)
	out := make([]model.RecordType, 0, 3)
	for _, r := range t {
		if !seen[r.Type] {
			seen[r.Type] = true
			out = append(out, r.Type)
		}
	}
	return out
}

// Total sums the emissions of every row
func Total(t Table) float64 {
	sum := 0.0
	for _, r := range t {
		sum += r.Emissions
	}
	return sum
}
