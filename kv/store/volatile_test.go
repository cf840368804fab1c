package store

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVolatileMap(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	require.NotNil(t, m, "NewVolatileMap() must not return nil")
	require.NotNil(t, m.values, "value map must be allocated")
	require.NotNil(t, m.expirations, "expiration map must be allocated")
	assert.Empty(t, m.values, "new map must be empty")
	assert.NotNil(t, m.now, "clock must default to time.Now")
}

// TestVolatileMap_SetGet verifies set-then-get returns the same value for
// several payload shapes, and that a missing key is reported as not found.
func TestVolatileMap_SetGet(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value any
	}{
		{name: "string", value: "hello"},
		{name: "number", value: 42.5},
		{name: "object", value: map[string]any{"nested": []any{1.0, "two"}}},
		{name: "nil", value: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := NewVolatileMap(nil)

			result, err := m.Set("key", tc.value, 0)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.NotEmpty(t, result.Message)

			got, found := m.Get("key")
			require.True(t, found)
			assert.Equal(t, tc.value, got)
		})
	}

	m := NewVolatileMap(nil)

	got, found := m.Get("missing")
	assert.False(t, found)
	assert.Nil(t, got)
}

// TestVolatileMap_Clear verifies Clear removes the key and its expiration, and
// that clearing an absent key succeeds.
func TestVolatileMap_Clear(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	_, err := m.Set("key", "value", time.Hour)
	require.NoError(t, err)

	result, err := m.Clear("key")
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, found := m.Get("key")
	assert.False(t, found)
	assert.NotContains(t, m.values, "key")
	assert.NotContains(t, m.expirations, "key")

	result, err = m.Clear("never-set")
	require.NoError(t, err)
	assert.True(t, result.Success, "clearing an absent key must succeed")
}

// TestVolatileMap_Expiration verifies lazy eviction once the ttl has passed.
func TestVolatileMap_Expiration(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	m := NewVolatileMap(&VolatileConfig{Now: clock.Now})

	_, err := m.Set("key", "value", 100*time.Millisecond)
	require.NoError(t, err)

	got, found := m.Get("key")
	require.True(t, found)
	assert.Equal(t, "value", got)

	// Exactly at the expiration instant the entry is still live.
	clock.Advance(100 * time.Millisecond)

	_, found = m.Get("key")
	require.True(t, found)

	// Expired but not yet read: still in the map.
	clock.Advance(time.Millisecond)
	assert.Contains(t, m.values, "key")

	_, found = m.Get("key")
	assert.False(t, found)
	assert.NotContains(t, m.values, "key", "expired read must evict the entry")
	assert.NotContains(t, m.expirations, "key", "expired read must drop the expiration")
}

// TestVolatileMap_ExpirationRealClock exercises the default clock.
func TestVolatileMap_ExpirationRealClock(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	_, err := m.Set("key", "value", 10*time.Millisecond)
	require.NoError(t, err)

	_, found := m.Get("key")
	require.True(t, found)

	time.Sleep(30 * time.Millisecond)

	_, found = m.Get("key")
	assert.False(t, found)
	assert.Zero(t, m.Len())
}

// TestVolatileMap_OverwriteDropsExpiration verifies a Set without ttl makes the
// key permanent again, and a Set with a new ttl replaces the old one.
func TestVolatileMap_OverwriteDropsExpiration(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	m := NewVolatileMap(&VolatileConfig{Now: clock.Now})

	_, err := m.Set("key", "first", time.Second)
	require.NoError(t, err)

	_, err = m.Set("key", "second", 0)
	require.NoError(t, err)
	assert.NotContains(t, m.expirations, "key")

	clock.Advance(time.Hour)

	got, found := m.Get("key")
	require.True(t, found, "overwrite without ttl must not inherit the old expiration")
	assert.Equal(t, "second", got)

	_, err = m.Set("key", "third", time.Second)
	require.NoError(t, err)

	_, err = m.Set("key", "fourth", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	_, found = m.Get("key")
	assert.True(t, found, "the newest ttl wins")
}

// TestVolatileMap_NegativeTTLMeansNoExpiration checks non-positive ttls.
func TestVolatileMap_NegativeTTLMeansNoExpiration(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	_, err := m.Set("key", "value", -time.Second)
	require.NoError(t, err)
	assert.NotContains(t, m.expirations, "key")

	_, found := m.Get("key")
	assert.True(t, found)
}

// TestVolatileMap_Events verifies handlers run synchronously, in registration
// order, with the affected key, including for lazy evictions.
func TestVolatileMap_Events(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	m := NewVolatileMap(&VolatileConfig{Now: clock.Now})

	var order []string

	require.NoError(t, m.On(EventSet, func(key string) { order = append(order, "set-1:"+key) }))
	require.NoError(t, m.On(EventSet, func(key string) { order = append(order, "set-2:"+key) }))
	require.NoError(t, m.On(EventClear, func(key string) { order = append(order, "clear:"+key) }))

	_, err := m.Set("a", 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"set-1:a", "set-2:a"}, order, "handlers must have run before Set returned")

	_, err = m.Clear("b")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, _ = m.Get("a")

	// A miss on an absent key fires nothing.
	_, _ = m.Get("a")

	assert.Equal(t, []string{"set-1:a", "set-2:a", "clear:b", "clear:a"}, order)
}

// TestVolatileMap_HandlerMayReenter verifies a handler can call back into the map.
func TestVolatileMap_HandlerMayReenter(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	require.NoError(t, m.On(EventSet, func(key string) {
		if key == "source" {
			_, _ = m.Set("mirror", "copied", 0)
		}
	}))

	_, err := m.Set("source", "value", 0)
	require.NoError(t, err)

	got, found := m.Get("mirror")
	require.True(t, found)
	assert.Equal(t, "copied", got)
}

func TestVolatileMap_OnRejectsBadInput(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	require.ErrorIs(t, m.On(EventSet, nil), ErrNilHandler)
	require.ErrorIs(t, m.On(Event("sett"), func(string) {}), ErrInvalidEvent)
}

// TestVolatileMap_Dispatch covers routing by operation name.
func TestVolatileMap_Dispatch(t *testing.T) {
	t.Parallel()

	m := NewVolatileMap(nil)

	out, err := m.Dispatch("key", OperationSet, "value", 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Message: `key "key" set`}, out)

	out, err = m.Dispatch("key", OperationGet, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "value", out)

	out, err = m.Dispatch("key", OperationNew, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Message: `key "key" cleared`}, out)

	out, err = m.Dispatch("key", OperationGet, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, out, "get on a cleared key must return nil")

	_, err = m.Dispatch("key", Operation("frobnicate"), nil, 0)
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Operation{
		"new": OperationNew,
		"SET": OperationSet,
		" get ": OperationGet,
	} {
		got, err := ParseOperation(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"", "clear", "delete", "frobnicate"} {
		_, err := ParseOperation(name)
		require.ErrorIs(t, err, ErrInvalidOperation, name)
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	got, err := ParseEvent("Set")
	require.NoError(t, err)
	assert.Equal(t, EventSet, got)

	got, err = ParseEvent("clear")
	require.NoError(t, err)
	assert.Equal(t, EventClear, got)

	_, err = ParseEvent("delete")
	require.ErrorIs(t, err, ErrInvalidEvent)
}

// TestVolatileMap_Concurrency smoke-tests synchronization under -race.
func TestVolatileMap_Concurrency(t *testing.T) {
	t.Parallel()

	var (
		m  = NewVolatileMap(nil)
		wg sync.WaitGroup
	)

	var recorder keyRecorder
	require.NoError(t, m.On(EventSet, recorder.handle))

	for worker := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			key := "key-" + strconv.Itoa(worker)

			for range 100 {
				_, _ = m.Set(key, worker, time.Minute)
				_, _ = m.Get(key)
				_, _ = m.Clear(key)
			}
		}()
	}

	wg.Wait()

	assert.Len(t, recorder.Keys(), 400)
	assert.Zero(t, m.Len())
}
