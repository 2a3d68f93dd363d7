package entry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "entries.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func poolEntry(email, token string) *Entry {
	return &Entry{
		Domain:   "poolstation",
		UniqueID: email,
		Title:    email,
		Data:     Data{"token": token},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "poolstation", got.Domain)
		assert.Equal(t, "a@x.com", got.UniqueID)
		assert.Equal(t, "a@x.com", got.Title)
		assert.Equal(t, Data{"token": "t1"}, got.Data)
	})
}

// TestStore_CreateRejectsDuplicate tests the per-domain uniqueness of unique IDs
func TestStore_CreateRejectsDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		_, err = s.Create(ctx, poolEntry("a@x.com", "t2"))
		assert.ErrorIs(t, err, ErrAlreadyConfigured)

		other := poolEntry("a@x.com", "t3")
		other.Domain = "other"
		_, err = s.Create(ctx, other)
		assert.NoError(t, err, "same unique id in another domain is allowed")

		entries, err := s.List(ctx, "poolstation")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, "t1", entries[0].Data["token"])
	})
}

// TestStore_ConcurrentCreate tests that racing creates produce exactly one entry
func TestStore_ConcurrentCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, poolEntry("race@x.com", "t"))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyConfigured)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestStore_Lookup(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		got, err := s.Lookup(ctx, "poolstation", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = s.Lookup(ctx, "poolstation", "b@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Update(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		updated, err := s.Update(ctx, created.ID, Data{"token": "t2"})
		require.NoError(t, err)
		assert.Equal(t, "t2", updated.Data["token"])
		assert.Equal(t, "a@x.com", updated.UniqueID)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, Data{"token": "t2"}, got.Data)

		_, err = s.Update(ctx, "missing", Data{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// TestStore_ReturnsCopies tests that callers cannot mutate stored data
func TestStore_ReturnsCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)
		created.Data["token"] = "tampered"

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "t1", got.Data["token"])
	})
}

func TestStore_Reload(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		var reloaded []*Entry
		s.OnReload(func(ctx context.Context, e *Entry) error {
			reloaded = append(reloaded, e)
			return nil
		})

		_, err = s.Update(ctx, created.ID, Data{"token": "t2"})
		require.NoError(t, err)
		require.NoError(t, s.Reload(ctx, created.ID))

		require.Len(t, reloaded, 1)
		assert.Equal(t, "t2", reloaded[0].Data["token"])

		assert.ErrorIs(t, s.Reload(ctx, "missing"), ErrNotFound)
	})
}

func TestStore_ReloadListenerError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		listenerErr := errors.New("setup failed")
		s.OnReload(func(ctx context.Context, e *Entry) error { return listenerErr })

		assert.ErrorIs(t, s.Reload(ctx, created.ID), listenerErr)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))
		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)

		_, err = s.Create(ctx, poolEntry("a@x.com", "t2"))
		assert.NoError(t, err, "unique id is free again after delete")
	})
}

func TestStore_ListFiltersByDomain(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
		require.NoError(t, err)
		_, err = s.Create(ctx, poolEntry("b@x.com", "t2"))
		require.NoError(t, err)
		other := poolEntry("c@x.com", "t3")
		other.Domain = "other"
		_, err = s.Create(ctx, other)
		require.NoError(t, err)

		pool, err := s.List(ctx, "poolstation")
		require.NoError(t, err)
		assert.Len(t, pool, 2)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

// TestSQLStore_PersistsAcrossReopen tests that entries survive a restart
func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	created, err := s.Create(ctx, poolEntry("a@x.com", "t1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, Data{"token": "t1"}, got.Data)
}
