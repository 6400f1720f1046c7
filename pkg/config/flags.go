package config

import (
	"github.com/spf13/pflag"
)

// Flags declares the command-line flags. Flag names match config keys so posflag can
// overlay them.
func Flags(name string) *pflag.FlagSet {
	d := Defaults()

	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("workbook", "w", d["workbook"].(string), "Path to the MFA workbook (.xlsx)")
	f.Bool("web", d["web"].(bool), "Serve the interactive dashboard instead of printing a report")
	f.IntP("port", "p", d["port"].(int), "Port for the dashboard (with --web)")
	f.Bool("watch", d["watch"].(bool), "Reload the workbook when it changes (with --web)")
	f.Bool("open", d["open"].(bool), "Open the dashboard in a browser (with --web)")
	f.Float64P("factor", "f", d["factor"].(float64), "Efficiency factor in [0,1]")
	f.Float64("baseline", d["baseline"].(float64), "Baseline emission factor in [0,1]")
	f.StringSlice("sectors", d["sectors"].([]string), "Sectors to derive emissions for")
	f.String("write-sample", "", "Write a sample workbook to this path and exit")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", d["json-logs"].(bool), "Emit JSON log lines")
	return f
}
