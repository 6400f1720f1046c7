package flow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ritzau/mfa-dashboard/pkg/logging"
	"github.com/ritzau/mfa-dashboard/pkg/model"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
)

// ErrUnresolvedNode marks a link endpoint that has no node index entry
var ErrUnresolvedNode = errors.New("unresolved node")

// Counts records how many links each source table contributed
type Counts struct {
	Inputs  int `json:"inputs"`  // input_to_sector rows, copied as-is
	Grouped int `json:"grouped"` // distinct (sector, output) pairs
	Clean   int `json:"clean"`   // complete output rows linking output -> destination
}

// Total is the length of the concatenated link table
func (c Counts) Total() int {
	return c.Inputs + c.Grouped + c.Clean
}

// Network is the node-link representation of a workbook
type Network struct {
	Links   []model.Link        `json:"links"`   // Named links in concatenation order
	Indexed []model.IndexedLink `json:"indexed"` // Same links with node ids
	Index   *model.NodeIndex    `json:"-"`
	Counts  Counts              `json:"counts"`
}

// Labels returns node names in id order
func (n *Network) Labels() []string {
	return n.Index.Names()
}

// BuildLinks concatenates input links, grouped output links and clean output links, then
// assigns node ids by first occurrence.
func BuildLinks(tables *workbook.Tables) (*Network, error) {
	inputs, err := inputLinks(tables.Inputs)
	if err != nil {
		return nil, err
	}
	grouped, err := groupedOutputLinks(tables.Outputs)
	if err != nil {
		return nil, err
	}
	clean, err := cleanOutputLinks(tables.Outputs)
	if err != nil {
		return nil, err
	}

	links := make([]model.Link, 0, len(inputs)+len(grouped)+len(clean))
	links = append(links, inputs...)
	links = append(links, grouped...)
	links = append(links, clean...)

	index := model.NodeIndexFromLinks(links)
	indexed, err := resolve(links, index)
	if err != nil {
		return nil, err
	}

	logging.Debug("built links",
		"inputs", len(inputs), "grouped", len(grouped), "clean", len(clean), "nodes", index.Len())

	return &Network{
		Links:   links,
		Indexed: indexed,
		Index:   index,
		Counts: Counts{
			Inputs:  len(inputs),
			Grouped: len(grouped),
			Clean:   len(clean),
		},
	}, nil
}

func inputLinks(rows []workbook.InputRow) ([]model.Link, error) {
	links := make([]model.Link, 0, len(rows))
	for i, row := range rows {
		l, err := model.NewLink(row.Source, row.Target, row.Value)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", workbook.InputSheet, i+2, err)
		}
		links = append(links, l)
	}
	return links, nil
}

type groupKey struct {
	sector string
	output string
}

// groupedOutputLinks sums amounts per (sector, output). Rows missing either key are not
// grouped and a missing amount adds nothing. Groups come out sorted by key.
func groupedOutputLinks(rows []workbook.OutputRow) ([]model.Link, error) {
	sums := make(map[groupKey]float64)
	keys := make([]groupKey, 0)

	for _, row := range rows {
		if row.Sector == "" || row.Output == "" {
			continue
		}
		k := groupKey{sector: row.Sector, output: row.Output}
		if _, seen := sums[k]; !seen {
			keys = append(keys, k)
		}
		amount := 0.0
		if row.HasAmount {
			amount = row.Amount
		}
		sums[k] += amount
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sector != keys[j].sector {
			return keys[i].sector < keys[j].sector
		}
		return keys[i].output < keys[j].output
	})

	links := make([]model.Link, 0, len(keys))
	for _, k := range keys {
		l, err := model.NewLink(k.sector, k.output, sums[k])
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

// cleanOutputLinks keeps only complete output rows and links output -> destination
func cleanOutputLinks(rows []workbook.OutputRow) ([]model.Link, error) {
	links := make([]model.Link, 0)
	for i, row := range rows {
		if !row.Complete() {
			continue
		}
		l, err := model.NewLink(row.Output, row.Destination, row.Amount)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", workbook.OutputSheet, i+2, err)
		}
		links = append(links, l)
	}
	return links, nil
}

func resolve(links []model.Link, index *model.NodeIndex) ([]model.IndexedLink, error) {
	indexed := make([]model.IndexedLink, 0, len(links))
	for i, l := range links {
		source, ok := index.ID(l.Source)
		if !ok {
			return nil, fmt.Errorf("link %d: %w: %q", i, ErrUnresolvedNode, l.Source)
		}
		target, ok := index.ID(l.Target)
		if !ok {
			return nil, fmt.Errorf("link %d: %w: %q", i, ErrUnresolvedNode, l.Target)
		}
		indexed = append(indexed, model.IndexedLink{Source: source, Target: target, Value: l.Value})
	}
	return indexed, nil
}

// Scale returns a copy of links with every value multiplied by factor
func Scale(links []model.IndexedLink, factor float64) []model.IndexedLink {
	scaled := make([]model.IndexedLink, len(links))
	for i, l := range links {
		scaled[i] = model.IndexedLink{Source: l.Source, Target: l.Target, Value: l.Value * factor}
	}
	return scaled
}
