package chart

import (
	"github.com/ritzau/mfa-dashboard/pkg/emissions"
	"github.com/ritzau/mfa-dashboard/pkg/flow"
	"github.com/ritzau/mfa-dashboard/pkg/model"
)

// Series colours, indexed by emission type order
var seriesColors = map[model.EmissionType]string{
	model.EmissionOriginal: "#636EFA",
	model.EmissionModified: "#EF553B",
}

// LineStyle is a stroke
type LineStyle struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// SankeyNodes is the node half of a Sankey trace. Label[i] names node id i.
type SankeyNodes struct {
	Pad       int       `json:"pad"`
	Thickness int       `json:"thickness"`
	Line      LineStyle `json:"line"`
	Label     []string  `json:"label"`
	Color     string    `json:"color"`
}

// SankeyLinks holds links as parallel arrays of node ids and values
type SankeyLinks struct {
	Source []int     `json:"source"`
	Target []int     `json:"target"`
	Value  []float64 `json:"value"`
}

// SankeySpec describes a Sankey diagram for the page's charting library
type SankeySpec struct {
	Title string      `json:"title"`
	Node  SankeyNodes `json:"node"`
	Link  SankeyLinks `json:"link"`
}

// BuildSankey lays out already scaled links against the network's node labels
func BuildSankey(title string, network *flow.Network, links []model.IndexedLink) SankeySpec {
	spec := SankeySpec{
		Title: title,
		Node: SankeyNodes{
			Pad:       15,
			Thickness: 20,
			Line:      LineStyle{Color: "black", Width: 0.5},
			Label:     network.Labels(),
			Color:     "green",
		},
		Link: SankeyLinks{
			Source: make([]int, 0, len(links)),
			Target: make([]int, 0, len(links)),
			Value:  make([]float64, 0, len(links)),
		},
	}

	for _, l := range links {
		spec.Link.Source = append(spec.Link.Source, l.Source)
		spec.Link.Target = append(spec.Link.Target, l.Target)
		spec.Link.Value = append(spec.Link.Value, l.Value)
	}
	return spec
}

// HistogramSeries is one coloured group of bars; Values line up with the histogram categories
type HistogramSeries struct {
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Values []float64 `json:"values"`
}

// HistogramSpec is a grouped bar histogram of summed emissions per record type
type HistogramSpec struct {
	Title      string            `json:"title"`
	XAxis      string            `json:"xAxis"`
	YAxis      string            `json:"yAxis"`
	Categories []string          `json:"categories"`
	Series     []HistogramSeries `json:"series"`
	BarMode    string            `json:"barmode"`
	HistFunc   string            `json:"histfunc"`
	Height     int               `json:"height"`
}

// BuildHistogram groups a sector's emissions by record type, one series per emission type
func BuildHistogram(title string, table emissions.Table) HistogramSpec {
	spec := HistogramSpec{
		Title:      title,
		XAxis:      "type",
		YAxis:      "sum of emissions",
		Categories: make([]string, 0, 3),
		Series:     make([]HistogramSeries, 0, 2),
		BarMode:    "group",
		HistFunc:   "sum",
		Height:     400,
	}

	categoryPos := make(map[model.RecordType]int)
	for _, c := range emissions.Categories(table) {
		categoryPos[c] = len(spec.Categories)
		spec.Categories = append(spec.Categories, string(c))
	}

	seriesPos := make(map[model.EmissionType]int)
	for _, bin := range emissions.Summarize(table) {
		pos, ok := seriesPos[bin.EmissionType]
		if !ok {
			pos = len(spec.Series)
			seriesPos[bin.EmissionType] = pos
			spec.Series = append(spec.Series, HistogramSeries{
				Name:   string(bin.EmissionType),
				Color:  colorFor(bin.EmissionType),
				Values: make([]float64, len(spec.Categories)),
			})
		}
		spec.Series[pos].Values[categoryPos[bin.Type]] += bin.Total
	}
	return spec
}

func colorFor(kind model.EmissionType) string {
	if c, ok := seriesColors[kind]; ok {
		return c
	}
	return "#AB63FA"
}
