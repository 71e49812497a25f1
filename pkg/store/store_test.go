package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) Backend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "connections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func newRedis(t *testing.T) Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	b := NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { b.Close() })
	return b
}

var backends = map[string]func(t *testing.T) Backend{
	"memory": func(t *testing.T) Backend { return NewMemoryBackend() },
	"sqlite": newSQLite,
	"redis":  newRedis,
}

func conn(id, src, tgt string, offset time.Duration) model.Connection {
	return model.Connection{
		ID:           id,
		SourceID:     src,
		TargetID:     tgt,
		SourceType:   model.KindContent,
		TargetType:   model.KindMemo,
		Relationship: model.RelRelated,
		Strength:     5,
		CreatedAt:    baseTime.Add(offset),
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("put and get", func(t *testing.T) {
				b := factory(t)
				c := conn("c1", "a", "b", 0)
				require.NoError(t, b.Put(ctx, c))

				got, found, err := b.Get(ctx, "c1")
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, c.SourceID, got.SourceID)
				assert.Equal(t, c.TargetID, got.TargetID)
				assert.Equal(t, c.Strength, got.Strength)
				assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

				_, found, err = b.Get(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, found)
			})

			t.Run("find pair is ordered", func(t *testing.T) {
				b := factory(t)
				require.NoError(t, b.Put(ctx, conn("c1", "a", "b", 0)))

				got, found, err := b.FindPair(ctx, "a", "b")
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, "c1", got.ID)

				_, found, err = b.FindPair(ctx, "b", "a")
				require.NoError(t, err)
				assert.False(t, found)
			})

			t.Run("put replaces and moves pair", func(t *testing.T) {
				b := factory(t)
				require.NoError(t, b.Put(ctx, conn("c1", "a", "b", 0)))
				moved := conn("c1", "a", "c", 0)
				moved.Strength = 9
				require.NoError(t, b.Put(ctx, moved))

				_, found, err := b.FindPair(ctx, "a", "b")
				require.NoError(t, err)
				assert.False(t, found)

				got, found, err := b.FindPair(ctx, "a", "c")
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, 9, got.Strength)

				all, err := b.List(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 1)
			})

			t.Run("delete", func(t *testing.T) {
				b := factory(t)
				require.NoError(t, b.Put(ctx, conn("c1", "a", "b", 0)))
				require.NoError(t, b.Delete(ctx, "c1"))
				require.NoError(t, b.Delete(ctx, "c1"))

				_, found, err := b.FindPair(ctx, "a", "b")
				require.NoError(t, err)
				assert.False(t, found)
				all, err := b.List(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)
			})

			t.Run("list is ordered by creation", func(t *testing.T) {
				b := factory(t)
				require.NoError(t, b.Put(ctx, conn("c3", "x", "y", 2*time.Second)))
				require.NoError(t, b.Put(ctx, conn("c1", "a", "b", 0)))
				require.NoError(t, b.Put(ctx, conn("c2b", "b", "c", time.Second)))
				require.NoError(t, b.Put(ctx, conn("c2a", "c", "d", time.Second)))

				all, err := b.List(ctx)
				require.NoError(t, err)
				ids := make([]string, len(all))
				for i, c := range all {
					ids[i] = c.ID
				}
				assert.Equal(t, []string{"c1", "c2a", "c2b", "c3"}, ids)
			})
		})
	}
}

func newAdapter(t *testing.T, b Backend) *Connections {
	t.Helper()
	var seq atomic.Int64
	return New(b,
		WithClock(func() time.Time { return baseTime.Add(time.Duration(seq.Load()) * time.Second) }),
		WithIDGenerator(func() string { return fmt.Sprintf("conn-%d", seq.Add(1)) }),
	)
}

func addReq(src, tgt string) AddRequest {
	return AddRequest{
		SourceID:     src,
		TargetID:     tgt,
		SourceType:   model.KindContent,
		TargetType:   model.KindMemo,
		Relationship: model.RelSupports,
	}
}

func TestConnectionsAdd(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			s := newAdapter(t, factory(t))

			first, err := s.Add(ctx, addReq("c1", "m1"))
			require.NoError(t, err)
			assert.Equal(t, model.DefaultStrength, first.Strength)

			second, err := s.Add(ctx, addReq("c1", "m1"))
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, 6, second.Strength)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

			// reverse direction is a different pair
			reverse := addReq("m1", "c1")
			reverse.SourceType, reverse.TargetType = model.KindMemo, model.KindContent
			other, err := s.Add(ctx, reverse)
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, other.ID)

			all, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestConnectionsAddStrength(t *testing.T) {
	ctx := context.Background()
	s := newAdapter(t, NewMemoryBackend())

	tests := []struct {
		name     string
		src      string
		strength int
		want     int
	}{
		{"explicit", "a", 8, 8},
		{"above max", "b", 42, model.MaxStrength},
		{"below min", "c", -3, model.MinStrength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := addReq(tt.src, "target")
			strength := tt.strength
			req.Strength = &strength
			c, err := s.Add(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Strength)
		})
	}

	t.Run("merge caps at max", func(t *testing.T) {
		req := addReq("d", "target")
		ten := 10
		req.Strength = &ten
		_, err := s.Add(ctx, req)
		require.NoError(t, err)
		c, err := s.Add(ctx, addReq("d", "target"))
		require.NoError(t, err)
		assert.Equal(t, model.MaxStrength, c.Strength)
	})
}

func TestConnectionsAddRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newAdapter(t, NewMemoryBackend())

	_, err := s.Add(ctx, addReq("a", "a"))
	assert.ErrorIs(t, err, model.ErrSelfLoop)

	_, err = s.Add(ctx, addReq("", "a"))
	assert.ErrorIs(t, err, model.ErrEmptyID)

	bad := addReq("a", "b")
	bad.TargetType = "note"
	_, err = s.Add(ctx, bad)
	assert.ErrorIs(t, err, model.ErrInvalidKind)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConnectionsConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			s := newAdapter(t, factory(t))

			// stays under MaxStrength so a lost merge shows in the total
			const workers = 4
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Add(ctx, addReq("c1", "m1"))
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, model.DefaultStrength+workers-1, all[0].Strength)
		})
	}
}

// sharedBackends open two independent handles onto the same storage, as two
// server processes would
var sharedBackends = map[string]func(t *testing.T) (Backend, Backend){
	"sqlite": func(t *testing.T) (Backend, Backend) {
		path := filepath.Join(t.TempDir(), "connections.db")
		open := func() Backend {
			b, err := NewSQLiteBackend(path)
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		}
		return open(), open()
	},
	"redis": func(t *testing.T) (Backend, Backend) {
		mr := miniredis.RunT(t)
		open := func() Backend {
			b := NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
			t.Cleanup(func() { b.Close() })
			return b
		}
		return open(), open()
	},
}

func TestConnectionsAddSharedBackend(t *testing.T) {
	ctx := context.Background()
	for name, factory := range sharedBackends {
		t.Run(name, func(t *testing.T) {
			first, second := factory(t)
			adapters := []*Connections{newAdapter(t, first), newAdapter(t, second)}

			const perAdapter = 2
			var wg sync.WaitGroup
			for _, s := range adapters {
				for range perAdapter {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := s.Add(ctx, addReq("c1", "m1"))
						assert.NoError(t, err)
					}()
				}
			}
			wg.Wait()

			all, err := adapters[0].List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, model.DefaultStrength+len(adapters)*perAdapter-1, all[0].Strength)
		})
	}
}

func TestSQLiteMergeCapsStrength(t *testing.T) {
	ctx := context.Background()
	b := newSQLite(t).(*SQLiteBackend)

	c := conn("c1", "a", "b", 0)
	c.Strength = model.MaxStrength
	got, created, err := b.Merge(ctx, c)
	require.NoError(t, err)
	assert.True(t, created)

	again := conn("c2", "a", "b", time.Second)
	got, created, err = b.Merge(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, model.MaxStrength, got.Strength)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
}

func TestConnectionsUpdate(t *testing.T) {
	ctx := context.Background()
	s := newAdapter(t, NewMemoryBackend())

	c, err := s.Add(ctx, addReq("c1", "m1"))
	require.NoError(t, err)

	t.Run("relationship and strength", func(t *testing.T) {
		rel := model.RelContrast
		strength := 15
		got, found, err := s.Update(ctx, c.ID, model.ConnectionPatch{Relationship: &rel, Strength: &strength})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, model.RelContrast, got.Relationship)
		assert.Equal(t, model.MaxStrength, got.Strength)
		assert.Equal(t, c.ID, got.ID)
		assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		rel := model.RelCauses
		_, found, err := s.Update(ctx, "nope", model.ConnectionPatch{Relationship: &rel})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("moving onto an occupied pair", func(t *testing.T) {
		other, err := s.Add(ctx, addReq("c2", "m1"))
		require.NoError(t, err)
		src := "c1"
		_, found, err := s.Update(ctx, other.ID, model.ConnectionPatch{SourceID: &src})
		assert.True(t, found)
		assert.ErrorIs(t, err, ErrDuplicatePair)
	})

	t.Run("moving to a free pair", func(t *testing.T) {
		tgt := "m9"
		got, _, err := s.Update(ctx, c.ID, model.ConnectionPatch{TargetID: &tgt})
		require.NoError(t, err)
		assert.Equal(t, "m9", got.TargetID)

		_, found, err := s.backend.FindPair(ctx, "c1", "m1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("self loop rejected", func(t *testing.T) {
		tgt := "c1"
		_, _, err := s.Update(ctx, c.ID, model.ConnectionPatch{TargetID: &tgt})
		assert.ErrorIs(t, err, model.ErrSelfLoop)
	})
}

func TestConnectionsDeleteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newAdapter(t, NewMemoryBackend())

	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })

	a, err := s.Add(ctx, addReq("c1", "m1"))
	require.NoError(t, err)
	_, err = s.Add(ctx, addReq("c2", "m2"))
	require.NoError(t, err)

	forM1, err := s.ConnectionsFor(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, forM1, 1)
	assert.Equal(t, a.ID, forM1[0].ID)

	require.NoError(t, s.Delete(ctx, a.ID))
	require.NoError(t, s.Delete(ctx, a.ID))

	_, found, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, found)

	forM1, err = s.ConnectionsFor(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, forM1)

	// two adds plus one effective delete
	assert.Equal(t, int32(3), changes.Load())
}

type failingBackend struct {
	*MemoryBackend
	err error
}

func (f failingBackend) Put(context.Context, model.Connection) error {
	return f.err
}

func TestConnectionsBackendErrorPassesThrough(t *testing.T) {
	boom := fmt.Errorf("disk full")
	s := newAdapter(t, failingBackend{MemoryBackend: NewMemoryBackend(), err: boom})
	_, err := s.Add(context.Background(), addReq("c1", "m1"))
	assert.Same(t, boom, err)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("b", "a", "a")
	assert.Len(t, k.locks, 2)
	unlock()
	assert.Empty(t, k.locks)
}
