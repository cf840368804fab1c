package kv

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-kvmap/kv/store"
)

type (
	// RootModule is a module singleton created once per test process.
	// It owns the shared Facade used by all VUs.
	RootModule struct {
		// facade is the shared store instance, created on first openKv().
		facade *store.Facade

		// settings holds the resolved options the facade was created with.
		settings settings

		// logger is handed to both maps.
		logger *slog.Logger

		// mu protects facade creation and configuration.
		mu sync.Mutex
	}

	// ModuleInstance is created per VU.
	// It holds the per-VU JS bindings and a pointer
	// to the RootModule to access the shared facade.
	ModuleInstance struct {
		vu modules.VU
		rm *RootModule
		// kv is the per-VU binding returned by openKv(). It is reused by later
		// calls so handler subscriptions are not duplicated.
		kv *KV
	}
)

// testOpenKVStoreBarrier is a test hook invoked the moment a goroutine enters the
// facade-initialization path. It lets tests synchronize concurrent calls to OpenKv
// without impacting production behavior (nil in non-test builds).
//
//nolint:gochecknoglobals // this is a test hook.
var (
	testOpenKVStoreBarrier   func()
	testOpenKVStoreBarrierMu sync.RWMutex
)

// Compile-time interface assertions.
var (
	_ modules.Instance = new(ModuleInstance)
	_ modules.Module   = new(RootModule)
)

// New returns a pointer to a new RootModule instance.
func New() *RootModule {
	return &RootModule{
		// The facade stays nil until the user calls openKv().
		facade: nil,
		logger: slog.Default(),
	}
}

// NewModuleInstance implements modules.Module.
// It creates a per-VU instance wired to the RootModule (which owns the shared facade).
func (rm *RootModule) NewModuleInstance(vu modules.VU) modules.Instance {
	return &ModuleInstance{
		vu: vu,
		rm: rm,
	}
}

// getOrCreateFacade creates the facade if it doesn't exist,
// or returns the existing one if the options are the same.
func (rm *RootModule) getOrCreateFacade(resolved settings) (*store.Facade, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.facade != nil {
		if rm.settings.equal(resolved) {
			return rm.facade, nil
		}

		// Reject re-configuration attempts: users must use consistent options across all VUs.
		return nil, fmt.Errorf(
			"%w: document=%q path=%q",
			store.ErrKVOptionsConflict, rm.settings.document, rm.settings.path,
		)
	}

	// Test hook: allows test code to synchronize concurrent OpenKv calls.
	testOpenKVStoreBarrierMu.RLock()

	barrier := testOpenKVStoreBarrier

	testOpenKVStoreBarrierMu.RUnlock()

	if barrier != nil {
		barrier()
	}

	facade, err := rm.createFacade(resolved)
	if err != nil {
		return nil, err
	}

	rm.facade = facade
	rm.settings = resolved

	return facade, nil
}

// createFacade builds both maps from resolved options. Nothing is read from
// the document: loading is always explicit through loadAll().
func (rm *RootModule) createFacade(resolved settings) (*store.Facade, error) {
	document, err := rm.createDocument(resolved)
	if err != nil {
		return nil, err
	}

	volatileConfig := &store.VolatileConfig{Logger: rm.logger}

	persistent := store.NewPersistentMap(&store.PersistentConfig{
		Document:         document,
		MaxDocumentBytes: resolved.maxDocumentBytes,
		Volatile:         volatileConfig,
	})

	return store.NewFacade(store.NewVolatileMap(volatileConfig), persistent), nil
}

// createDocument creates the durable medium selected by the options.
func (rm *RootModule) createDocument(resolved settings) (store.Document, error) {
	switch resolved.document {
	case DocumentFile:
		return store.NewFileDocument(resolved.path), nil
	case DocumentBolt:
		return store.NewBoltDocument(resolved.path, resolved.bolt)
	default:
		// Unreachable: the document is validated by Options.resolve before this is called.
		return nil, fmt.Errorf("%w: document %q", store.ErrKVOptionsInvalid, resolved.document)
	}
}

// Exports implements modules.Instance and exposes
// the JavaScript API surface for this module.
func (mi *ModuleInstance) Exports() modules.Exports {
	return modules.Exports{
		Named: map[string]any{
			"openKv": mi.OpenKv,
		},
	}
}

// OpenKv parses user options, initializes the shared facade (once),
// and returns the per-VU KV object bound to it.
//
// The first successful call to OpenKv decides the document medium and path.
// Later calls with equal options reuse the facade; differing options throw.
func (mi *ModuleInstance) OpenKv(opts sobek.Value) *sobek.Object {
	rt := mi.vu.Runtime()

	options, err := NewOptionsFrom(mi.vu, opts)
	if err != nil {
		common.Throw(rt, classifyError(err))
		return nil
	}

	resolved, err := options.resolve()
	if err != nil {
		common.Throw(rt, classifyError(err))
		return nil
	}

	facade, err := mi.rm.getOrCreateFacade(resolved)
	if err != nil {
		common.Throw(rt, classifyError(err))
		return nil
	}

	if mi.kv == nil || mi.kv.facade != facade {
		mi.kv = NewKV(mi.vu, facade, mi.rm.logger)
	}

	return rt.ToValue(mi.kv).ToObject(rt)
}
