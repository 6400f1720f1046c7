package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ritzau/mfa-dashboard/pkg/chart"
	"github.com/ritzau/mfa-dashboard/pkg/cycles"
	"github.com/ritzau/mfa-dashboard/pkg/emissions"
	"github.com/ritzau/mfa-dashboard/pkg/flow"
	"github.com/ritzau/mfa-dashboard/pkg/logging"
	"github.com/ritzau/mfa-dashboard/pkg/metrics"
	"github.com/ritzau/mfa-dashboard/pkg/model"
	"github.com/ritzau/mfa-dashboard/pkg/pubsub"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
)

var (
	// ErrNotLoaded is returned until the first successful load
	ErrNotLoaded = errors.New("workbook not loaded")

	// ErrInvalidFactor is returned for NaN or out of range efficiency factors
	ErrInvalidFactor = errors.New("factor must be a number between 0 and 1")

	// ErrUnknownSector is returned for sectors not in the configured list
	ErrUnknownSector = errors.New("unknown sector")
)

// SankeyTitle is the title of the flow diagram
const SankeyTitle = "MFA"

// Options configures a Runner
type Options struct {
	Workbook string
	Factor   float64 // Default factor when a request does not name one
	Baseline float64
	Sectors  []string
}

// SectorView is the emissions table and histogram for one sector
type SectorView struct {
	Sector    string              `json:"sector"`
	Emissions emissions.Table     `json:"emissions"`
	Histogram chart.HistogramSpec `json:"histogram"`
}

// RenderModel is everything the dashboard draws for one factor
type RenderModel struct {
	Factor   float64            `json:"factor"`
	Revision int                `json:"revision"`
	Sankey   chart.SankeySpec   `json:"sankey"`
	Sectors  []SectorView       `json:"sectors"`
	Balance  []flow.NodeBalance `json:"balance"`
	Cycles   []cycles.FlowCycle `json:"cycles"`
	Counts   flow.Counts        `json:"counts"`
}

// LinksView is the scaled indexed link list with its labels
type LinksView struct {
	Factor float64             `json:"factor"`
	Labels []string            `json:"labels"`
	Links  []model.IndexedLink `json:"links"`
}

// snapshot is the immutable state derived from one successful load
type snapshot struct {
	tables   *workbook.Tables
	network  *flow.Network
	balance  []flow.NodeBalance
	cycles   []cycles.FlowCycle
	revision int
}

// Runner owns the loaded workbook and derives render models from it
type Runner struct {
	opts      Options
	publisher pubsub.Publisher
	metrics   *metrics.Registry

	loadMu sync.Mutex // Serializes loads

	mu      sync.RWMutex
	current *snapshot
	status  pubsub.WorkbookStatus
}

// NewRunner creates a runner; publisher and registry may be nil
func NewRunner(opts Options, publisher pubsub.Publisher, registry *metrics.Registry) *Runner {
	return &Runner{
		opts:      opts,
		publisher: publisher,
		metrics:   registry,
		status:    pubsub.WorkbookStatus{State: "loading", Path: opts.Workbook},
	}
}

// Reload reads the workbook from disk. On failure the last good model is kept.
func (r *Runner) Reload(ctx context.Context, reason string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	logging.InfoContext(ctx, "loading workbook", "path", r.opts.Workbook, "reason", reason)
	r.publishStatus(pubsub.WorkbookStatus{State: "loading", Message: reason})

	tables, err := workbook.Load(r.opts.Workbook)
	if err != nil {
		return r.loadFailed(ctx, err)
	}
	return r.install(ctx, tables, reason)
}

// Use installs already loaded tables, as for a generated sample
func (r *Runner) Use(ctx context.Context, tables *workbook.Tables, reason string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	return r.install(ctx, tables, reason)
}

// install builds the network for tables and swaps it in; caller holds loadMu
func (r *Runner) install(ctx context.Context, tables *workbook.Tables, reason string) error {
	network, err := flow.BuildLinks(tables)
	if err != nil {
		return r.loadFailed(ctx, err)
	}

	g := flow.NewGraph(network.Index, network.Indexed)
	found := cycles.FindFlowCycles(g)
	for _, c := range found {
		logging.WarnContext(ctx, "circular flow", "nodes", c.String())
	}
	if n := g.SelfLoops(); n > 0 {
		logging.WarnContext(ctx, "links flowing into their own source", "count", n)
	}

	r.mu.Lock()
	revision := 1
	if r.current != nil {
		revision = r.current.revision + 1
	}
	r.current = &snapshot{
		tables:   tables,
		network:  network,
		balance:  g.Balance(),
		cycles:   found,
		revision: revision,
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordWorkbookLoad(nil, len(network.Indexed), network.Index.Len())
	}

	logging.InfoContext(ctx, "workbook loaded",
		"links", len(network.Indexed),
		"nodes", network.Index.Len(),
		"revision", revision)

	r.publishStatus(pubsub.WorkbookStatus{
		State:    "ready",
		Message:  reason,
		Links:    len(network.Indexed),
		Nodes:    network.Index.Len(),
		Revision: revision,
	})
	r.publish(pubsub.TopicDashboard, "reloaded", pubsub.DashboardUpdate{Reason: reason, Revision: revision})
	return nil
}

func (r *Runner) loadFailed(ctx context.Context, err error) error {
	if r.metrics != nil {
		r.metrics.RecordWorkbookLoad(err, 0, 0)
	}

	r.mu.RLock()
	kept := r.current != nil
	r.mu.RUnlock()

	logging.ErrorContext(ctx, "failed to load workbook", "path", r.opts.Workbook, "error", err, "keeping_last_model", kept)
	r.publishStatus(pubsub.WorkbookStatus{State: "error", Message: err.Error()})
	return fmt.Errorf("load %s: %w", r.opts.Workbook, err)
}

func (r *Runner) publishStatus(status pubsub.WorkbookStatus) {
	status.Path = r.opts.Workbook

	r.mu.Lock()
	if status.Revision == 0 && r.current != nil {
		status.Revision = r.current.revision
	}
	if status.Links == 0 && status.State != "ready" && r.current != nil {
		status.Links = len(r.current.network.Indexed)
		status.Nodes = r.current.network.Index.Len()
	}
	r.status = status
	r.mu.Unlock()

	r.publish(pubsub.TopicWorkbookStatus, status.State, status)
}

func (r *Runner) publish(topic, eventType string, data interface{}) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(topic, eventType, data); err != nil {
		logging.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// Status returns the latest workbook status
func (r *Runner) Status() pubsub.WorkbookStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// DefaultFactor is the factor used when a request does not name one
func (r *Runner) DefaultFactor() float64 {
	return r.opts.Factor
}

// Sectors returns the configured sectors in display order
func (r *Runner) Sectors() []string {
	return append([]string(nil), r.opts.Sectors...)
}

// ValidateFactor rejects NaN and values outside [0, 1]
func ValidateFactor(factor float64) error {
	if math.IsNaN(factor) || factor < 0 || factor > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidFactor, factor)
	}
	return nil
}

func (r *Runner) loaded() (*snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, ErrNotLoaded
	}
	return r.current, nil
}

// Recompute derives the full render model for factor
func (r *Runner) Recompute(factor float64) (rm *RenderModel, err error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordRecompute(err, time.Since(start))
		}
	}()

	if err := ValidateFactor(factor); err != nil {
		return nil, err
	}
	snap, err := r.loaded()
	if err != nil {
		return nil, err
	}

	tables := emissions.DeriveAll(snap.tables, r.opts.Sectors, r.opts.Baseline, factor)
	sectors := make([]SectorView, 0, len(r.opts.Sectors))
	for _, sector := range r.opts.Sectors {
		table := tables[sector]
		sectors = append(sectors, SectorView{
			Sector:    sector,
			Emissions: table,
			Histogram: chart.BuildHistogram(HistogramTitle(sector), table),
		})
	}

	logging.Trace("recomputed render model", "factor", factor, "revision", snap.revision)

	return &RenderModel{
		Factor:   factor,
		Revision: snap.revision,
		Sankey:   chart.BuildSankey(SankeyTitle, snap.network, flow.Scale(snap.network.Indexed, factor)),
		Sectors:  sectors,
		Balance:  snap.balance,
		Cycles:   snap.cycles,
		Counts:   snap.network.Counts,
	}, nil
}

// Links returns the indexed links scaled by factor
func (r *Runner) Links(factor float64) (*LinksView, error) {
	if err := ValidateFactor(factor); err != nil {
		return nil, err
	}
	snap, err := r.loaded()
	if err != nil {
		return nil, err
	}
	return &LinksView{
		Factor: factor,
		Labels: snap.network.Labels(),
		Links:  flow.Scale(snap.network.Indexed, factor),
	}, nil
}

// Emissions returns the emission table for one configured sector
func (r *Runner) Emissions(sector string, factor float64) (emissions.Table, error) {
	if err := ValidateFactor(factor); err != nil {
		return nil, err
	}
	if !r.hasSector(sector) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSector, sector)
	}
	snap, err := r.loaded()
	if err != nil {
		return nil, err
	}
	return emissions.Derive(snap.tables, sector, r.opts.Baseline, factor), nil
}

// Histogram returns the histogram spec for one configured sector
func (r *Runner) Histogram(sector string, factor float64) (chart.HistogramSpec, error) {
	table, err := r.Emissions(sector, factor)
	if err != nil {
		return chart.HistogramSpec{}, err
	}
	return chart.BuildHistogram(HistogramTitle(sector), table), nil
}

// Network returns the current flow network
func (r *Runner) Network() (*flow.Network, error) {
	snap, err := r.loaded()
	if err != nil {
		return nil, err
	}
	return snap.network, nil
}

func (r *Runner) hasSector(sector string) bool {
	for _, s := range r.opts.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// HistogramTitle names a sector's chart, e.g. "Government Emissions"
func HistogramTitle(sector string) string {
	first, size := utf8.DecodeRuneInString(sector)
	if first == utf8.RuneError {
		return "Emissions"
	}
	return string(unicode.ToUpper(first)) + sector[size:] + " Emissions"
}
