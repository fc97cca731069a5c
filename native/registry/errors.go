package registry

import "errors"

var (
	ErrUnauthorized          = errors.New("registry: unauthorized")
	ErrReservedProtocolID    = errors.New("registry: protocol id 0 is reserved")
	ErrInvalidProtocolName   = errors.New("registry: protocol name required")
	ErrProtocolExists        = errors.New("registry: protocol already registered")
	ErrProtocolNotRegistered = errors.New("registry: protocol not registered")
	ErrNilAdapter            = errors.New("registry: nil adapter")
	ErrAdapterExists         = errors.New("registry: adapter already registered")
	ErrAdapterNotFound       = errors.New("registry: adapter not found")
	ErrAssetNotSupported     = errors.New("registry: adapter does not support asset")
	ErrNoActiveProtocol      = errors.New("registry: no active protocol")
	ErrZeroAddress           = errors.New("registry: zero address")
)
