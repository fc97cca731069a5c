package events

const (
	EventProtocolRegistered = "registry.protocol_registered"
	EventAdapterRegistered  = "registry.adapter_registered"
	EventAdapterRemoved     = "registry.adapter_removed"
	EventActiveProtocolSet  = "registry.active_protocol_set"
)

// ProtocolRegistered signals that a protocol identifier was named.
type ProtocolRegistered struct {
	ProtocolID uint64
	Name       string
}

// EventType implements the Event interface.
func (ProtocolRegistered) EventType() string { return EventProtocolRegistered }

// AdapterRegistered signals that an adapter was bound to a protocol/asset pair.
type AdapterRegistered struct {
	ProtocolID uint64
	Asset      [20]byte
}

// EventType implements the Event interface.
func (AdapterRegistered) EventType() string { return EventAdapterRegistered }

// AdapterRemoved signals that an adapter binding was deleted. ClearedActive
// reports whether the removal forced the active-protocol pointer back to the
// unset sentinel.
type AdapterRemoved struct {
	ProtocolID    uint64
	Asset         [20]byte
	ClearedActive bool
}

// EventType implements the Event interface.
func (AdapterRemoved) EventType() string { return EventAdapterRemoved }

// ActiveProtocolSet signals that deposit/harvest routing switched to a new
// protocol.
type ActiveProtocolSet struct {
	ProtocolID uint64
}

// EventType implements the Event interface.
func (ActiveProtocolSet) EventType() string { return EventActiveProtocolSet }
