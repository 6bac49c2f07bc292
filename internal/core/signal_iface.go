package core

//go:generate mockgen -source=signal_iface.go -destination=coremock/signal_mock.go -package=coremock

// Frame is a raw JSON text payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend must not block: a full or closed connection returns an error,
// which the room treats as a disconnect.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	RemoteAddr() string
}
