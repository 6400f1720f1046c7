package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/mfa-dashboard/pkg/dashboard"
	"github.com/ritzau/mfa-dashboard/pkg/emissions"
	"github.com/ritzau/mfa-dashboard/pkg/flow"
)

// PrintReport prints the flow network, node balances and emissions for one factor
func PrintReport(w io.Writer, workbook string, m *dashboard.RenderModel) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "MFA Dashboard - Flow Report")
	bold.Fprintln(w, "===========================")
	fmt.Fprintf(w, "Workbook: %s\n", workbook)
	fmt.Fprintf(w, "Efficiency factor: %.2f\n", m.Factor)
	fmt.Fprintf(w, "Links: %d (%d input, %d grouped output, %d destination)\n",
		m.Counts.Total(), m.Counts.Inputs, m.Counts.Grouped, m.Counts.Clean)
	fmt.Fprintf(w, "Nodes: %d\n", len(m.Sankey.Node.Label))
	fmt.Fprintln(w)

	// Links
	bold.Fprintln(w, "FLOWS:")
	labels := m.Sankey.Node.Label
	for i := range m.Sankey.Link.Value {
		fmt.Fprintf(w, "  %-14s -> %-14s %10.2f\n",
			labels[m.Sankey.Link.Source[i]], labels[m.Sankey.Link.Target[i]], m.Sankey.Link.Value[i])
	}
	fmt.Fprintln(w)

	// Balances at factor 1
	bold.Fprintln(w, "NODE BALANCE (unscaled):")
	for _, b := range m.Balance {
		line := fmt.Sprintf("  %-14s in %10.2f  out %10.2f  net %+10.2f  %s\n", b.Name, b.Inflow, b.Outflow, b.Net, b.Role)
		switch {
		case b.Role == flow.RoleTransit && b.Net < 0:
			yellow.Fprint(w, line)
		case b.Role == flow.RoleSource:
			cyan.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
	fmt.Fprintln(w)

	if len(m.Cycles) > 0 {
		red.Fprintln(w, "CIRCULAR FLOWS:")
		for _, c := range m.Cycles {
			yellow.Fprintf(w, "  %s\n", c.String())
		}
		fmt.Fprintln(w)
	}

	// Emissions per sector
	for _, sector := range m.Sectors {
		bold.Fprintf(w, "%s:\n", strings.ToUpper(sector.Histogram.Title))
		if len(sector.Emissions) == 0 {
			yellow.Fprintln(w, "  no rows for this sector")
			fmt.Fprintln(w)
			continue
		}
		for _, bin := range emissions.Summarize(sector.Emissions) {
			fmt.Fprintf(w, "  %-7s %-9s %10.2f  (%d rows)\n", bin.Type, bin.EmissionType, bin.Total, bin.Count)
		}
		original := emissions.Total(sector.Emissions.Original())
		modified := emissions.Total(sector.Emissions.Modified())
		green.Fprintf(w, "  Total: %.2f original, %.2f modified\n", original, modified)
		fmt.Fprintln(w)
	}
}
