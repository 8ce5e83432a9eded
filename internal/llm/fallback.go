package llm

// FallbackClient holds a primary model and an optional fallback model.
// Callers walk Clients in order and swap once when the primary's reply
// fails in transport or schema; if both fail the caller decides what
// degraded behavior to apply.
type FallbackClient struct {
	clients []*Client
}

// NewFallbackClient creates a two-model client. fallback may be nil,
// in which case only the primary is tried.
func NewFallbackClient(primary, fallback *Client) *FallbackClient {
	clients := []*Client{primary}
	if fallback != nil {
		clients = append(clients, fallback)
	}
	return &FallbackClient{clients: clients}
}

// Clients returns the configured models in try order.
func (f *FallbackClient) Clients() []*Client {
	return f.clients
}
