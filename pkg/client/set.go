package client

import "fmt"

// Service names used for logging, metrics and health lookups
const (
	ServiceHub      = "hub"
	ServiceAI       = "ai"
	ServiceGuardian = "guardian"
)

// Services lists the backends in display order.
var Services = []string{ServiceHub, ServiceAI, ServiceGuardian}

// Set groups the clients of all backends so they share options and are
// closed together.
type Set struct {
	Hub      *Hub
	AI       *AI
	Guardian *Client
}

// NewSet builds one client per backend. opts apply to every client.
func NewSet(hub, ai, guardian Config, opts ...Option) (*Set, error) {
	h, err := NewHub(hub, opts...)
	if err != nil {
		return nil, fmt.Errorf("hub client: %w", err)
	}
	a, err := NewAI(ai, opts...)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("ai client: %w", err)
	}
	if guardian.Service == "" {
		guardian.Service = ServiceGuardian
	}
	g, err := New(guardian, opts...)
	if err != nil {
		h.Close()
		a.Close()
		return nil, fmt.Errorf("guardian client: %w", err)
	}
	return &Set{Hub: h, AI: a, Guardian: g}, nil
}

// Service returns the raw client for a backend name.
func (s *Set) Service(name string) (*Client, error) {
	switch name {
	case ServiceHub:
		return s.Hub.Client(), nil
	case ServiceAI:
		return s.AI.Client(), nil
	case ServiceGuardian:
		return s.Guardian, nil
	default:
		return nil, fmt.Errorf("unknown service %q (want one of %v)", name, Services)
	}
}

func (s *Set) Close() {
	s.Hub.Close()
	s.AI.Close()
	s.Guardian.Close()
}
