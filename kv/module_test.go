package kv

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.k6.io/k6/js/modulestest"
)

func TestOpenKvConcurrentInitializationSharesFacade(t *testing.T) {
	t.Parallel()

	rootModule := New()
	path := filepath.Join(t.TempDir(), "store.json")

	primaryRuntime := modulestest.NewRuntime(t)
	secondaryRuntime := modulestest.NewRuntime(t)

	primaryModuleInstance := rootModule.NewModuleInstance(primaryRuntime.VU).(*ModuleInstance)
	secondaryModuleInstance := rootModule.NewModuleInstance(secondaryRuntime.VU).(*ModuleInstance)

	primaryOptions := primaryRuntime.VU.Runtime().ToValue(map[string]any{"path": path})
	secondaryOptions := secondaryRuntime.VU.Runtime().ToValue(map[string]any{"path": path})

	var (
		enterCount   atomic.Uint32
		firstEntered = make(chan struct{})
		firstRelease = make(chan struct{})
	)

	testOpenKVStoreBarrierMu.Lock()
	testOpenKVStoreBarrier = func() {
		if enterCount.Add(1) != 1 {
			return
		}

		close(firstEntered)
		<-firstRelease
	}
	testOpenKVStoreBarrierMu.Unlock()

	defer func() {
		testOpenKVStoreBarrierMu.Lock()
		testOpenKVStoreBarrier = nil
		testOpenKVStoreBarrierMu.Unlock()
	}()

	results := make(chan *ModuleInstance, 2)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		primaryModuleInstance.OpenKv(primaryOptions)

		results <- primaryModuleInstance
	}()

	<-firstEntered

	go func() {
		defer wg.Done()

		secondaryModuleInstance.OpenKv(secondaryOptions)

		results <- secondaryModuleInstance
	}()

	close(firstRelease)

	firstDone := <-results
	secondDone := <-results

	wg.Wait()

	require.Equal(t, uint32(1), enterCount.Load(), "only one goroutine may build the facade")

	firstFacade := firstDone.kv.facade
	secondFacade := secondDone.kv.facade

	require.NotNil(t, firstFacade, "first KV instance should have a facade")
	require.NotNil(t, secondFacade, "second KV instance should have a facade")

	require.Same(t, firstFacade, secondFacade, "concurrent OpenKv calls must receive the same facade")
	require.Same(t, firstFacade, rootModule.facade, "root module facade must be shared across VUs")
}

func TestOpenKvRejectsConflictingOptions(t *testing.T) {
	t.Parallel()

	rootModule := New()

	runtime := modulestest.NewRuntime(t)
	moduleInstance := rootModule.NewModuleInstance(runtime.VU).(*ModuleInstance)

	fileOptions := runtime.VU.Runtime().ToValue(map[string]any{
		"path": filepath.Join(t.TempDir(), "store.json"),
	})

	boltOptions := runtime.VU.Runtime().ToValue(map[string]any{
		"document": DocumentBolt,
		"path":     filepath.Join(t.TempDir(), "store.db"),
	})

	require.NotPanics(t, func() {
		moduleInstance.OpenKv(fileOptions)
	})

	require.Panics(t, func() {
		moduleInstance.OpenKv(boltOptions)
	})
}

func TestOpenKvAllowsEquivalentPathsAndReusesBinding(t *testing.T) {
	t.Parallel()

	rootModule := New()
	runtime := modulestest.NewRuntime(t)
	moduleInstance := rootModule.NewModuleInstance(runtime.VU).(*ModuleInstance)

	absPath := filepath.Join(t.TempDir(), "store.json")
	extraSegmentsPath := filepath.Join(absPath, "..", filepath.Base(absPath))

	absOptions := runtime.VU.Runtime().ToValue(map[string]any{"path": absPath})
	relOptions := runtime.VU.Runtime().ToValue(map[string]any{"path": extraSegmentsPath})

	require.NotPanics(t, func() {
		moduleInstance.OpenKv(absOptions)
	})

	first := moduleInstance.kv

	require.NotPanics(t, func() {
		moduleInstance.OpenKv(relOptions)
	})

	require.Same(t, first, moduleInstance.kv, "reopening must reuse the per-VU binding")
}

func TestOpenKvRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		options map[string]any
	}{
		{name: "unknown document", options: map[string]any{"document": "xml"}},
		{name: "directory path", options: map[string]any{"path": t.TempDir()}},
		{name: "bad size", options: map[string]any{"maxDocumentSize": "lots"}},
		{
			name: "bad bolt freelist",
			options: map[string]any{
				"document": DocumentBolt,
				"path":     filepath.Join(t.TempDir(), "store.db"),
				"bolt":     map[string]any{"freelistType": "tree"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rootModule := New()
			runtime := modulestest.NewRuntime(t)
			moduleInstance := rootModule.NewModuleInstance(runtime.VU).(*ModuleInstance)

			require.Panics(t, func() {
				moduleInstance.OpenKv(runtime.VU.Runtime().ToValue(tc.options))
			})

			require.Nil(t, rootModule.facade, "a failed openKv must not create the facade")
		})
	}
}

func TestModuleInstanceExports(t *testing.T) {
	t.Parallel()

	runtime := modulestest.NewRuntime(t)
	moduleInstance := New().NewModuleInstance(runtime.VU)

	require.Contains(t, moduleInstance.Exports().Named, "openKv")
}
