package session

// MockHandler implements Handler for testing.
// Each callback can be configured via function fields; unset callbacks are
// no-ops.
type MockHandler struct {
	OnOpenFunc    func(p Peer) error
	OnMessageFunc func(p Peer, msg Message) error
	OnErrorFunc   func(p Peer, err error)
	OnCloseFunc   func(p Peer, status CloseStatus)
}

// OnOpen calls the configured OnOpenFunc or returns nil.
func (m *MockHandler) OnOpen(p Peer) error {
	if m.OnOpenFunc != nil {
		return m.OnOpenFunc(p)
	}
	return nil
}

// OnMessage calls the configured OnMessageFunc or returns nil.
func (m *MockHandler) OnMessage(p Peer, msg Message) error {
	if m.OnMessageFunc != nil {
		return m.OnMessageFunc(p, msg)
	}
	return nil
}

// OnError calls the configured OnErrorFunc if set.
func (m *MockHandler) OnError(p Peer, err error) {
	if m.OnErrorFunc != nil {
		m.OnErrorFunc(p, err)
	}
}

// OnClose calls the configured OnCloseFunc if set.
func (m *MockHandler) OnClose(p Peer, status CloseStatus) {
	if m.OnCloseFunc != nil {
		m.OnCloseFunc(p, status)
	}
}

// MockPeer implements Peer for testing. Send and Close record their
// arguments; Send returns SendErr when set.
type MockPeer struct {
	IDValue          string
	SubprotocolValue string
	RemoteAddrValue  string
	Attrs            map[string]any

	Sent    []Message
	Closed  []CloseStatus
	SendErr error
}

func (m *MockPeer) ID() string          { return m.IDValue }
func (m *MockPeer) Subprotocol() string { return m.SubprotocolValue }
func (m *MockPeer) RemoteAddr() string  { return m.RemoteAddrValue }

func (m *MockPeer) Attributes() map[string]any {
	if m.Attrs == nil {
		m.Attrs = make(map[string]any)
	}
	return m.Attrs
}

func (m *MockPeer) Send(msg Message) error {
	m.Sent = append(m.Sent, msg)
	return m.SendErr
}

func (m *MockPeer) Close(status CloseStatus) error {
	m.Closed = append(m.Closed, status)
	return nil
}
