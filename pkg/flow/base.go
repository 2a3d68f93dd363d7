package flow

import (
	"context"
	"errors"

	"github.com/andreweacott/poolstation-setup/pkg/entry"
)

// Base carries the per-flow context a handler works with. The Manager creates one
// for every flow and hands it to the handler factory.
type Base struct {
	flowID      string
	domain      string
	source      string
	uniqueID    string
	reauthEntry *entry.Entry
	store       entry.Store
}

// FlowID returns the flow's identifier
func (b *Base) FlowID() string { return b.flowID }

// Domain returns the integration domain the flow belongs to
func (b *Base) Domain() string { return b.domain }

// Source returns how the flow was started (SourceUser or SourceReauth)
func (b *Base) Source() string { return b.source }

// UniqueID returns the unique ID set with SetUniqueID
func (b *Base) UniqueID() string { return b.uniqueID }

// ReauthEntry returns a copy of the entry a reauth flow was started for, or nil
func (b *Base) ReauthEntry() *entry.Entry { return b.reauthEntry.Clone() }

// SetUniqueID sets the flow's unique ID and returns the entry already configured
// under it, or nil when there is none.
func (b *Base) SetUniqueID(ctx context.Context, uniqueID string) (*entry.Entry, error) {
	b.uniqueID = uniqueID
	return b.lookup(ctx)
}

// AbortIfUniqueIDConfigured returns an already_configured abort when an entry with the
// flow's unique ID exists, and nil otherwise.
func (b *Base) AbortIfUniqueIDConfigured(ctx context.Context) (*Result, error) {
	if b.uniqueID == "" {
		return nil, nil
	}
	existing, err := b.lookup(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return b.Abort(ReasonAlreadyConfigured), nil
	}
	return nil, nil
}

func (b *Base) lookup(ctx context.Context) (*entry.Entry, error) {
	e, err := b.store.Lookup(ctx, b.domain, b.uniqueID)
	if errors.Is(err, entry.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ShowForm asks the user for input for stepID
func (b *Base) ShowForm(stepID string, schema Schema, errs Errors, placeholders map[string]string) *Result {
	if len(errs) == 0 {
		errs = nil
	}
	return &Result{
		Type:                    ResultForm,
		FlowID:                  b.flowID,
		Domain:                  b.domain,
		StepID:                  stepID,
		Schema:                  schema,
		Errors:                  errs,
		DescriptionPlaceholders: placeholders,
	}
}

// CreateEntry finishes the flow with a new entry under the flow's unique ID
func (b *Base) CreateEntry(title string, data entry.Data) *Result {
	return &Result{
		Type:     ResultCreateEntry,
		FlowID:   b.flowID,
		Domain:   b.domain,
		Title:    title,
		Data:     data.Clone(),
		UniqueID: b.uniqueID,
	}
}

// Abort finishes the flow without creating an entry
func (b *Base) Abort(reason string) *Result {
	return &Result{
		Type:   ResultAbort,
		FlowID: b.flowID,
		Domain: b.domain,
		Reason: reason,
	}
}

// UpdateEntry replaces the data of an existing entry
func (b *Base) UpdateEntry(ctx context.Context, e *entry.Entry, data entry.Data) (*entry.Entry, error) {
	return b.store.Update(ctx, e.ID, data)
}

// ReloadEntry asks the store to reload an entry so listeners pick up new data
func (b *Base) ReloadEntry(ctx context.Context, entryID string) error {
	return b.store.Reload(ctx, entryID)
}
