package hass

import "sync"

func CreateTestHubClient(states []EntityState) *TestHubClient {
	return &TestHubClient{
		StatesList: states,
		events:     make(chan StateChangedEvent, 16),
	}
}

// TestHubClient is an in-memory HubClient for tests: scripted inventory,
// recorded service calls, events injected through EmitEvent.
type TestHubClient struct {
	StatesList   []EntityState
	ConnectError error
	CallError    error

	mu     sync.Mutex
	closed bool
	calls  []ServiceCall
	events chan StateChangedEvent
}

func (c *TestHubClient) Connect() error {
	return c.ConnectError
}

func (c *TestHubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *TestHubClient) Listen(handler EventHandler) error {
	for ev := range c.events {
		handler(ev)
	}
	return nil
}

func (c *TestHubClient) States() ([]EntityState, error) {
	return c.StatesList, nil
}

func (c *TestHubClient) CallService(call ServiceCall) error {
	if c.CallError != nil {
		return c.CallError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return nil
}

func (c *TestHubClient) EmitEvent(ev StateChangedEvent) {
	c.events <- ev
}

func (c *TestHubClient) Calls() []ServiceCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ServiceCall(nil), c.calls...)
}
