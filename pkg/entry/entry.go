// Package entry persists configured integration accounts ("config entries").
//
// An entry is identified by a generated ID and is unique per (domain, unique ID).
// Stores enforce that uniqueness atomically in Create, which is what lets several
// setup flows run at once without producing duplicates.
package entry

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no entry matches the lookup.
	ErrNotFound = errors.New("config entry not found")
	// ErrAlreadyConfigured is returned when an entry with the same domain and unique ID exists.
	ErrAlreadyConfigured = errors.New("config entry already configured")
)

// Data is the configuration payload stored with an entry.
type Data map[string]string

// Clone returns a copy of d
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Entry is one configured account.
type Entry struct {
	ID        string    `json:"entry_id"`
	Domain    string    `json:"domain"`
	UniqueID  string    `json:"unique_id"`
	Title     string    `json:"title"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of e
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Data = e.Data.Clone()
	return &out
}

// Store persists config entries.
type Store interface {
	Get(ctx context.Context, entryID string) (*Entry, error)
	// Lookup returns ErrNotFound when no entry has the given domain and unique ID.
	Lookup(ctx context.Context, domain, uniqueID string) (*Entry, error)
	List(ctx context.Context, domain string) ([]*Entry, error)
	// Create assigns an ID when e.ID is empty and fails with ErrAlreadyConfigured
	// if the domain and unique ID are taken.
	Create(ctx context.Context, e *Entry) (*Entry, error)
	Update(ctx context.Context, entryID string, data Data) (*Entry, error)
	// Reload re-reads the entry and notifies OnReload listeners.
	Reload(ctx context.Context, entryID string) error
	Delete(ctx context.Context, entryID string) error
	OnReload(fn ReloadFunc)
}

// ReloadFunc is called with the fresh entry whenever it is reloaded.
type ReloadFunc func(ctx context.Context, e *Entry) error

// reloadListeners is shared by the Store implementations
type reloadListeners struct {
	mu  sync.RWMutex
	fns []ReloadFunc
}

func (r *reloadListeners) add(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *reloadListeners) notify(ctx context.Context, e *Entry) error {
	r.mu.RLock()
	fns := append([]ReloadFunc(nil), r.fns...)
	r.mu.RUnlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, e.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
