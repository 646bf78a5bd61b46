// Package core turns rows into independent test cases. A Runner resolves the
// data source, loads, filters and transforms the rows, and registers one
// named case per row with a Registrar such as *testing.T.
package core

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-rowcase/core/query"
	"github.com/asaidimu/go-rowcase/core/record"
	"github.com/asaidimu/go-rowcase/core/source"
)

// DefaultTestName prefixes case names when a suite has no name.
const DefaultTestName = "Data-driven test"

// Registrar schedules a named test case. *testing.T satisfies it.
type Registrar interface {
	Run(name string, f func(t *testing.T)) bool
}

// BodyFactory binds a test body to the data of one row.
type BodyFactory func(row record.Row) func(t *testing.T)

// Config declares a data-driven suite.
type Config struct {
	DataSource source.DataSource
	// TestName prefixes every case name. When empty, DefaultTestName is used
	// and the rule is left out of the name.
	TestName string
	// Parallel marks every case with t.Parallel.
	Parallel bool
}

// Case is one registered test case.
type Case struct {
	ID    string
	Index int // 1-based position among the final rows
	Name  string
	Row   record.Row
	Body  func(t *testing.T)
}

// CaseName builds the display name of the case at index (1-based).
func CaseName(index int, row record.Row, testName string) string {
	if testName != "" {
		return fmt.Sprintf("%s [%d] - Story: %s, Rule: %s",
			testName, index, row.Value(record.FieldStory), row.Value(record.FieldRule))
	}
	return fmt.Sprintf("%s [%d] - Story: %s", DefaultTestName, index, row.Value(record.FieldStory))
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Lookup reads runtime parameters from the environment. A nil Lookup
	// reads nothing.
	Lookup source.Lookup
	// Args are the process arguments scanned for --key=value flags.
	Args []string
	// Processor evaluates filters and transforms. Defaults to a new processor.
	Processor *query.DataProcessor
}

// DefaultRunnerOptions reads the process environment and arguments.
func DefaultRunnerOptions() *RunnerOptions {
	var args []string
	if len(os.Args) > 1 {
		args = os.Args[1:]
	}
	return &RunnerOptions{Lookup: os.LookupEnv, Args: args}
}

type subscription struct {
	event       EventType
	unsubscribe func()
}

// Runner expands data sources into test cases.
type Runner struct {
	lookup    source.Lookup
	args      []string
	processor *query.DataProcessor
	logger    *zap.Logger
	bus       *events.TypedEventBus[Event]

	subMu         sync.Mutex
	subscriptions map[string]subscription
}

// NewRunner creates a Runner. nil options mean DefaultRunnerOptions.
func NewRunner(logger *zap.Logger, options *RunnerOptions) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultRunnerOptions()
	}
	processor := options.Processor
	if processor == nil {
		processor = query.NewDataProcessor(logger)
	}

	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	return &Runner{
		lookup:        options.Lookup,
		args:          options.Args,
		processor:     processor,
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]subscription),
	}, nil
}

// Processor returns the processor used for filters and transforms.
func (r *Runner) Processor() *query.DataProcessor {
	return r.processor
}

// Subscribe registers a callback for an event type and returns an ID that
// Unsubscribe accepts.
func (r *Runner) Subscribe(event EventType, callback EventCallback) string {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	unsubscribe := r.bus.Subscribe(string(event), callback)
	id := uuid.New().String()
	r.subscriptions[id] = subscription{event: event, unsubscribe: unsubscribe}
	return id
}

// Unsubscribe removes a subscription by its ID.
func (r *Runner) Unsubscribe(id string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	if sub, ok := r.subscriptions[id]; ok {
		sub.unsubscribe()
		delete(r.subscriptions, id)
	}
}

func (r *Runner) emit(e Event) {
	if r.bus != nil {
		r.bus.Emit(string(e.Type), e)
	}
}

// Load resolves ds against the runtime parameters and returns the final rows
// together with their origin. Filters and transforms apply only to a
// declared source.
func (r *Runner) Load(ctx context.Context, ds source.DataSource) ([]record.Row, source.Origin, error) {
	return r.load(ctx, uuid.New().String(), "", ds)
}

func (r *Runner) load(ctx context.Context, runID, suite string, ds source.DataSource) ([]record.Row, source.Origin, error) {
	startTime := time.Now()

	eff, err := source.Resolve(r.lookup, r.args, ds)
	if err != nil {
		return nil, "", err
	}
	origin := string(eff.Origin)
	resolved := createEvent(SourceResolved, runID, suite, startTime)
	resolved.Origin = &origin
	resolved.Context = map[string]any{"source": eff.DataSource.Describe()}
	r.emit(resolved)
	r.logger.Debug("Resolved data source",
		zap.String("origin", origin),
		zap.String("source", eff.DataSource.Describe()))

	rows, err := source.Rows(ctx, eff.DataSource)
	if err != nil {
		return nil, eff.Origin, err
	}
	r.emit(createEvent(RowsLoaded, runID, suite, startTime).withCount(len(rows)))
	r.logger.Debug("Rows loaded", zap.Int("count", len(rows)))

	rows, err = r.processor.Filter(rows, eff.DataSource.Filters)
	if err != nil {
		return nil, eff.Origin, fmt.Errorf("filter failed: %w", err)
	}
	r.emit(createEvent(RowsFiltered, runID, suite, startTime).withCount(len(rows)))
	r.logger.Debug("Rows remaining after filters", zap.Int("count", len(rows)))

	rows, err = r.processor.Transform(rows, eff.DataSource.Transforms)
	if err != nil {
		return nil, eff.Origin, fmt.Errorf("transform failed: %w", err)
	}
	r.emit(createEvent(RowsTransformed, runID, suite, startTime).withCount(len(rows)))

	return rows, eff.Origin, nil
}

// Expand builds one case per row, in row order. Each body is produced by
// factory from its own row.
func (r *Runner) Expand(rows []record.Row, factory BodyFactory, testName string) []Case {
	cases := make([]Case, len(rows))
	for i, row := range rows {
		cases[i] = Case{
			ID:    uuid.New().String(),
			Index: i + 1,
			Name:  CaseName(i+1, row, testName),
			Row:   row,
			Body:  factory(row),
		}
	}
	return cases
}

// Register hands every case to reg, in order.
func (r *Runner) Register(reg Registrar, cases []Case, parallel bool) {
	r.register(reg, uuid.New().String(), "", cases, parallel)
}

func (r *Runner) register(reg Registrar, runID, suite string, cases []Case, parallel bool) {
	for _, c := range cases {
		r.emit(createEvent(CaseRegistered, runID, suite, time.Time{}).withCase(c))
		r.logger.Debug("Registering case", zap.String("name", c.Name), zap.String("case_id", c.ID))
		reg.Run(c.Name, r.wrap(runID, suite, c, parallel))
	}
}

// wrap reports the outcome of a case body on the event bus.
func (r *Runner) wrap(runID, suite string, c Case, parallel bool) func(t *testing.T) {
	return func(t *testing.T) {
		if parallel {
			t.Parallel()
		}
		startTime := time.Now()
		r.emit(createEvent(CaseStart, runID, suite, time.Time{}).withCase(c))
		defer func() {
			if v := recover(); v != nil {
				r.emit(createEvent(CaseFailed, runID, suite, startTime).withCase(c).withError(fmt.Errorf("case panicked: %v", v)))
				panic(v)
			}
			eventType := CaseSuccess
			if t.Failed() {
				eventType = CaseFailed
			}
			r.emit(createEvent(eventType, runID, suite, startTime).withCase(c))
		}()
		if c.Body != nil {
			c.Body(t)
		}
	}
}

// Run resolves, loads, filters and transforms the rows of cfg, then registers
// one case per row with reg. Every error is returned before the first case
// is registered. The registered cases are returned.
func (r *Runner) Run(ctx context.Context, reg Registrar, cfg Config, factory BodyFactory) ([]Case, error) {
	runID := uuid.New().String()
	startTime := time.Now()

	rows, origin, err := r.load(ctx, runID, cfg.TestName, cfg.DataSource)
	if err != nil {
		r.emit(createEvent(ExpandFailed, runID, cfg.TestName, startTime).withError(err))
		r.logger.Error("Failed to expand data-driven suite", zap.String("suite", cfg.TestName), zap.Error(err))
		return nil, err
	}

	cases := r.Expand(rows, factory, cfg.TestName)
	r.logger.Info("Expanded data-driven suite",
		zap.String("suite", cfg.TestName),
		zap.String("origin", string(origin)),
		zap.Int("cases", len(cases)))

	r.register(reg, runID, cfg.TestName, cases, cfg.Parallel)
	return cases, nil
}

// Run expands cfg into subtests of t using the process environment and
// arguments. A broken data source fails t before any case is registered.
func Run(t *testing.T, cfg Config, factory BodyFactory) []Case {
	t.Helper()
	r, err := NewRunner(nil, nil)
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}
	cases, err := r.Run(t.Context(), t, cfg, factory)
	if err != nil {
		t.Fatalf("expanding data-driven suite %q: %v", cfg.TestName, err)
	}
	return cases
}
