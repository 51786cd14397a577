package session

import "context"

// CloseNormal is the websocket close code for an orderly shutdown.
const CloseNormal = 1000

// TransportListener receives connection callbacks. Implementations must
// not block; the session forwards each callback onto its own loop.
type TransportListener interface {
	OnOpen()
	OnMessage(data []byte)
	OnClosed(code int, reason string)
	OnFailure(err error)
}

// Transport is one full-duplex connection. Send methods must not block.
type Transport interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens a Transport in the background. The returned Transport
// reports its progress through listener; Close may be called before
// the connection is open.
type Dialer interface {
	Dial(ctx context.Context, url string, listener TransportListener) Transport
}
