package registry

import (
	"fmt"
	"strings"
	"sync"

	"granary/core/events"
)

type adapterKey struct {
	protocol uint64
	asset    [20]byte
}

// Registry owns the {protocol x asset -> adapter} mapping and the single
// currently-active protocol. Every mutating operation is restricted to the
// registry owner or the one designated authorized caller, so an allocation
// driver can rotate adapters without holding full ownership.
//
// Protocol ID 0 is reserved as the "no active protocol" sentinel and can never
// be registered. Activation is always explicit: registering an adapter never
// implicitly selects it for routing.
type Registry struct {
	mu sync.RWMutex

	owner         [20]byte
	authorized    [20]byte
	hasAuthorized bool

	names    map[uint64]string
	adapters map[adapterKey]Adapter
	activeID uint64

	emitter events.Emitter
}

// NewRegistry constructs a registry administered by the provided owner.
func NewRegistry(owner [20]byte) *Registry {
	return &Registry{
		owner:    owner,
		names:    make(map[uint64]string),
		adapters: make(map[adapterKey]Adapter),
		emitter:  events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used to broadcast registry updates.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetAuthorizedCaller designates the single non-owner caller permitted to
// mutate the registry. Only the owner may rotate this designation.
func (r *Registry) SetAuthorizedCaller(caller, authorized [20]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrUnauthorized
	}
	if authorized == ([20]byte{}) {
		return ErrZeroAddress
	}
	r.authorized = authorized
	r.hasAuthorized = true
	return nil
}

// RegisterProtocol assigns a write-once name to a protocol identifier.
func (r *Registry) RegisterProtocol(caller [20]byte, id uint64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allowed(caller) {
		return ErrUnauthorized
	}
	if id == 0 {
		return ErrReservedProtocolID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidProtocolName
	}
	if existing := r.names[id]; existing != "" {
		return fmt.Errorf("%w: id %d is %q", ErrProtocolExists, id, existing)
	}
	r.names[id] = name
	r.emitter.Emit(events.ProtocolRegistered{ProtocolID: id, Name: name})
	return nil
}

// RegisterAdapter binds an adapter to a protocol/asset pair. The protocol must
// already be named and the adapter must declare support for the asset.
func (r *Registry) RegisterAdapter(caller [20]byte, id uint64, asset [20]byte, adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allowed(caller) {
		return ErrUnauthorized
	}
	if id == 0 {
		return ErrReservedProtocolID
	}
	if adapter == nil {
		return ErrNilAdapter
	}
	if r.names[id] == "" {
		return fmt.Errorf("%w: id %d", ErrProtocolNotRegistered, id)
	}
	if !adapter.AssetSupported(asset) {
		return ErrAssetNotSupported
	}
	key := adapterKey{protocol: id, asset: asset}
	if _, exists := r.adapters[key]; exists {
		return fmt.Errorf("%w: protocol %d", ErrAdapterExists, id)
	}
	r.adapters[key] = adapter
	r.emitter.Emit(events.AdapterRegistered{ProtocolID: id, Asset: asset})
	return nil
}

// RemoveAdapter deletes an adapter binding. Removing the adapter backing the
// active protocol clears the active-protocol pointer, forcing an explicit
// re-selection instead of an implicit fallback.
func (r *Registry) RemoveAdapter(caller [20]byte, id uint64, asset [20]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allowed(caller) {
		return ErrUnauthorized
	}
	key := adapterKey{protocol: id, asset: asset}
	if _, exists := r.adapters[key]; !exists {
		return fmt.Errorf("%w: protocol %d", ErrAdapterNotFound, id)
	}
	delete(r.adapters, key)
	cleared := false
	if r.activeID == id {
		r.activeID = 0
		cleared = true
	}
	r.emitter.Emit(events.AdapterRemoved{ProtocolID: id, Asset: asset, ClearedActive: cleared})
	return nil
}

// SetActiveProtocol switches routing so subsequent deposits and harvests
// target the protocol's adapter. Capital already deployed elsewhere is not
// migrated by this call.
func (r *Registry) SetActiveProtocol(caller [20]byte, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allowed(caller) {
		return ErrUnauthorized
	}
	if id == 0 {
		return ErrReservedProtocolID
	}
	if r.names[id] == "" {
		return fmt.Errorf("%w: id %d", ErrProtocolNotRegistered, id)
	}
	r.activeID = id
	r.emitter.Emit(events.ActiveProtocolSet{ProtocolID: id})
	return nil
}

// ProtocolName returns the registered name for a protocol identifier.
func (r *Registry) ProtocolName(id uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	if name == "" {
		return "", false
	}
	return name, ok
}

// Adapter returns the adapter registered for the protocol/asset pair. Absence
// is an error so callers must handle missing routes explicitly.
func (r *Registry) Adapter(id uint64, asset [20]byte) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[adapterKey{protocol: id, asset: asset}]
	if !ok {
		return nil, fmt.Errorf("%w: protocol %d", ErrAdapterNotFound, id)
	}
	return adapter, nil
}

// ActiveAdapter resolves the adapter backing the active protocol for the
// asset.
func (r *Registry) ActiveAdapter(asset [20]byte) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == 0 {
		return nil, ErrNoActiveProtocol
	}
	adapter, ok := r.adapters[adapterKey{protocol: r.activeID, asset: asset}]
	if !ok {
		return nil, fmt.Errorf("%w: protocol %d", ErrAdapterNotFound, r.activeID)
	}
	return adapter, nil
}

// ActiveProtocolID returns the active protocol identifier, 0 when none is
// selected.
func (r *Registry) ActiveProtocolID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

func (r *Registry) allowed(caller [20]byte) bool {
	if caller == r.owner {
		return true
	}
	return r.hasAuthorized && caller == r.authorized
}
