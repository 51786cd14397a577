package session

import (
	"context"
	"errors"
	"sync"
)

type fakeTransport struct {
	mu       sync.Mutex
	texts    [][]byte
	binaries [][]byte
	closes   []int
	sendErr  error
}

func (f *fakeTransport) SendText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, data)
	return nil
}

func (f *fakeTransport) SendBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.binaries = append(f.binaries, data)
	return nil
}

func (f *fakeTransport) Close(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, code)
	return nil
}

func (f *fakeTransport) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts) + len(f.binaries)
}

func (f *fakeTransport) binaryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.binaries)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closes)
}

func (f *fakeTransport) lastText() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return nil
	}
	return f.texts[len(f.texts)-1]
}

type dialCall struct {
	url      string
	listener TransportListener
	conn     *fakeTransport
}

// fakeDialer never calls back on its own; tests drive the listener.
type fakeDialer struct {
	mu    sync.Mutex
	calls []*dialCall
}

func (d *fakeDialer) Dial(_ context.Context, url string, l TransportListener) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &dialCall{url: url, listener: l, conn: &fakeTransport{}}
	d.calls = append(d.calls, c)
	return c.conn
}

func (d *fakeDialer) last() *dialCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return nil
	}
	return d.calls[len(d.calls)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type nopListener struct{}

func (nopListener) OnOpen()              {}
func (nopListener) OnMessage([]byte)     {}
func (nopListener) OnClosed(int, string) {}
func (nopListener) OnFailure(error)      {}

type memoryStore struct {
	mu      sync.Mutex
	handle  Handle
	ok      bool
	saves   int
	clears  int
	loadErr error
}

func (s *memoryStore) Load(context.Context) (Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.ok, s.loadErr
}

func (s *memoryStore) Save(_ context.Context, h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle, s.ok = h, true
	s.saves++
	return nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle, s.ok = Handle{}, false
	s.clears++
	return nil
}

func (s *memoryStore) snapshot() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.ok
}

var errBoom = errors.New("boom")

func validConfig() SessionConfig {
	return SessionConfig{
		Host:         "example.test",
		Model:        "gemini-live",
		APIVersion:   "v1alpha",
		APIKey:       "secret",
		VADSilenceMs: 800,
	}
}
