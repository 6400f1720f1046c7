package watcher

// Action is what the dashboard should do about a workbook change
type Action int

const (
	// ActionReload re-reads the workbook and rebuilds the network
	ActionReload Action = iota

	// ActionKeep retains the last good model; the file is gone until it is written again
	ActionKeep
)

// Decide maps a debounced change to an action
func Decide(event ChangeEvent) Action {
	if event.Type == ChangeTypeRemoved {
		return ActionKeep
	}
	return ActionReload
}
