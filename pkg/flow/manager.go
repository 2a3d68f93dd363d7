package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/andreweacott/poolstation-setup/pkg/entry"
	"github.com/andreweacott/poolstation-setup/pkg/logger"
	"github.com/andreweacott/poolstation-setup/pkg/metrics"
	"github.com/google/uuid"
)

// StepFunc handles one step. A nil input means the step is entered without user data.
type StepFunc func(ctx context.Context, input Input) (*Result, error)

// Handler is a flow implementation: a set of named steps
type Handler interface {
	Steps() map[string]StepFunc
}

// Factory creates a handler for a new flow
type Factory func(base *Base) Handler

type flowState struct {
	mu            sync.Mutex
	base          *Base
	steps         map[string]StepFunc
	current       *Result
	reauthEntryID string
}

// Manager dispatches flow steps and finishes flows.
// Steps of one flow run one at a time; different flows run concurrently.
type Manager struct {
	store   entry.Store
	log     *logger.Logger
	metrics *metrics.FlowMetrics

	mu        sync.Mutex
	factories map[string]Factory
	flows     map[string]*flowState
}

// NewManager creates a Manager persisting entries in store
func NewManager(store entry.Store, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		store:     store,
		log:       log,
		factories: make(map[string]Factory),
		flows:     make(map[string]*flowState),
	}
}

// WithMetrics adds flow metrics to the manager
func (m *Manager) WithMetrics(fm *metrics.FlowMetrics) *Manager {
	m.metrics = fm
	return m
}

// Register installs the handler factory for domain
func (m *Manager) Register(domain string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[domain] = factory
}

// Init starts a new flow for domain from source and runs the step named after source
func (m *Manager) Init(ctx context.Context, domain, source string, data Input) (*Result, error) {
	fs, err := m.newFlow(domain, source, nil)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, fs, data)
}

// StartReauth starts a reauth flow for an existing entry. The reauth step receives a
// copy of the entry's data.
func (m *Manager) StartReauth(ctx context.Context, entryID string) (*Result, error) {
	e, err := m.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	fs, err := m.newFlow(e.Domain, SourceReauth, e)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, fs, Input(e.Data.Clone()))
}

func (m *Manager) newFlow(domain, source string, reauthEntry *entry.Entry) (*flowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	factory, ok := m.factories[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, domain)
	}

	base := &Base{
		flowID: uuid.NewString(),
		domain: domain,
		source: source,
		store:  m.store,
	}
	fs := &flowState{base: base}

	if reauthEntry != nil {
		for _, other := range m.flows {
			if other.reauthEntryID == reauthEntry.ID {
				return nil, fmt.Errorf("%w: reauth for entry %s", ErrAlreadyInProgress, reauthEntry.ID)
			}
		}
		base.uniqueID = reauthEntry.UniqueID
		base.reauthEntry = reauthEntry.Clone()
		fs.reauthEntryID = reauthEntry.ID
	}

	fs.steps = factory(base).Steps()
	if _, ok := fs.steps[source]; !ok {
		return nil, fmt.Errorf("%w: %s has no %q step", ErrUnknownStep, domain, source)
	}

	m.flows[base.flowID] = fs
	m.updateInProgressLocked()
	return fs, nil
}

func (m *Manager) start(ctx context.Context, fs *flowState, data Input) (*Result, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	m.log.WithFlowID(fs.base.flowID).
		WithField("domain", fs.base.domain).
		WithField("source", fs.base.source).
		Info("Flow started")

	return m.runStep(ctx, fs, fs.base.source, data)
}

// Configure submits input to the step of the form the flow is currently showing
func (m *Manager) Configure(ctx context.Context, flowID string, input Input) (*Result, error) {
	fs, err := m.get(flowID)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.current == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	stepID := fs.current.StepID
	if input != nil {
		input, err = fs.current.Schema.Validate(input)
		if err != nil {
			return nil, err
		}
	}

	return m.runStep(ctx, fs, stepID, input)
}

func (m *Manager) runStep(ctx context.Context, fs *flowState, stepID string, input Input) (*Result, error) {
	log := m.log.WithFlowID(fs.base.flowID).WithField("step_id", stepID)

	step, ok := fs.steps[stepID]
	if !ok {
		m.remove(fs.base.flowID)
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}

	res, err := step(ctx, input)
	if err != nil {
		log.WithField("error", err.Error()).Error("Flow step failed")
		m.remove(fs.base.flowID)
		return nil, fmt.Errorf("step %s failed: %w", stepID, err)
	}
	if res == nil {
		m.remove(fs.base.flowID)
		return nil, fmt.Errorf("step %s returned no result", stepID)
	}

	res.FlowID = fs.base.flowID
	res.Domain = fs.base.domain

	switch res.Type {
	case ResultForm:
		fs.current = res
		log.WithField("form", res.StepID).Debug("Showing form")
		return res, nil

	case ResultCreateEntry:
		return m.finishCreate(ctx, fs, res)

	case ResultAbort:
		fs.current = nil
		m.remove(fs.base.flowID)
		log.WithField("reason", res.Reason).Info("Flow aborted")
		if m.metrics != nil {
			m.metrics.RecordFlowAborted(res.Reason)
		}
		return res, nil
	}

	m.remove(fs.base.flowID)
	return nil, fmt.Errorf("step %s returned unknown result type %q", stepID, res.Type)
}

// finishCreate persists the entry of a create_entry result. A unique ID that got
// configured by another flow in the meantime turns the result into an abort.
func (m *Manager) finishCreate(ctx context.Context, fs *flowState, res *Result) (*Result, error) {
	fs.current = nil
	defer m.remove(fs.base.flowID)

	created, err := m.store.Create(ctx, &entry.Entry{
		Domain:   fs.base.domain,
		UniqueID: res.UniqueID,
		Title:    res.Title,
		Data:     res.Data,
	})
	if errors.Is(err, entry.ErrAlreadyConfigured) {
		abort := fs.base.Abort(ReasonAlreadyConfigured)
		m.log.WithFlowID(fs.base.flowID).Info("Flow aborted, entry configured concurrently")
		if m.metrics != nil {
			m.metrics.RecordFlowAborted(abort.Reason)
		}
		return abort, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	res.EntryID = created.ID
	m.log.WithFlowID(fs.base.flowID).
		WithField("entry_id", created.ID).
		WithField("title", created.Title).
		Info("Config entry created")
	if m.metrics != nil {
		m.metrics.RecordEntryCreated()
	}
	return res, nil
}

// Abort cancels a flow in progress
func (m *Manager) Abort(flowID string) error {
	if _, err := m.get(flowID); err != nil {
		return err
	}
	m.remove(flowID)
	m.log.WithFlowID(flowID).Info("Flow cancelled")
	return nil
}

// InProgress returns the forms currently shown by flows waiting for input
func (m *Manager) InProgress() []*Result {
	m.mu.Lock()
	flows := make([]*flowState, 0, len(m.flows))
	for _, fs := range m.flows {
		flows = append(flows, fs)
	}
	m.mu.Unlock()

	out := make([]*Result, 0, len(flows))
	for _, fs := range flows {
		fs.mu.Lock()
		if fs.current != nil {
			cp := *fs.current
			out = append(out, &cp)
		}
		fs.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowID < out[j].FlowID })
	return out
}

func (m *Manager) get(flowID string) (*flowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fs, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}
	return fs, nil
}

func (m *Manager) remove(flowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, flowID)
	m.updateInProgressLocked()
}

func (m *Manager) updateInProgressLocked() {
	if m.metrics != nil {
		m.metrics.SetFlowsInProgress(len(m.flows))
	}
}
