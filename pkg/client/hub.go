package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// Hub wraps the Matrix-Hub REST API
type Hub struct {
	c *Client
}

// NewHub builds a Hub client from cfg.
func NewHub(cfg Config, opts ...Option) (*Hub, error) {
	if cfg.Service == "" {
		cfg.Service = ServiceHub
	}
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Hub{c: c}, nil
}

// Client exposes the underlying HTTP client for raw calls.
func (h *Hub) Client() *Client {
	return h.c
}

func (h *Hub) Close() {
	h.c.Close()
}

// Health returns the hub's own health payload.
func (h *Hub) Health(ctx context.Context) (map[string]interface{}, error) {
	return h.c.HealthCheck(ctx, "")
}

// HealthCheck returns the health payload of one named service.
func (h *Hub) HealthCheck(ctx context.Context, service string) (map[string]interface{}, error) {
	return h.c.HealthCheck(ctx, service)
}

func (h *Hub) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := h.list(ctx, "/services", "services", nil, &services); err != nil {
		return nil, err
	}
	for i := range services {
		if err := services[i].Validate(); err != nil {
			return nil, fmt.Errorf("service %d: %w", i, err)
		}
	}
	return services, nil
}

func (h *Hub) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	if err := h.c.Get(ctx, "/services/"+url.PathEscape(id), &svc); err != nil {
		return nil, err
	}
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListProposals lists proposals, optionally restricted to one state.
func (h *Hub) ListProposals(ctx context.Context, state models.ProposalState) ([]models.Proposal, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", string(state))
	}

	var proposals []models.Proposal
	if err := h.list(ctx, "/proposals", "proposals", q, &proposals); err != nil {
		return nil, err
	}
	for i := range proposals {
		proposals[i].SetDefaults()
		if err := proposals[i].Validate(); err != nil {
			return nil, fmt.Errorf("proposal %d: %w", proposals[i].ID, err)
		}
	}
	return proposals, nil
}

func (h *Hub) GetProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	var p models.Proposal
	if err := h.c.Get(ctx, fmt.Sprintf("/proposals/%d", id), &p); err != nil {
		return nil, err
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecisionRequest is the body of an approve or reject call
type DecisionRequest struct {
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DecisionResult carries the proposal as re-read after the decision
type DecisionResult struct {
	Proposal *models.Proposal
	Outcome  models.DecisionOutcome
}

// ApproveProposal asks the hub to approve a proposal. A proposal that was
// already decided yields OutcomeAlreadyDecided instead of an error.
func (h *Hub) ApproveProposal(ctx context.Context, id int64, req DecisionRequest) (*DecisionResult, error) {
	return h.decide(ctx, id, models.ActionApprove, req)
}

// RejectProposal is the reject counterpart of ApproveProposal.
func (h *Hub) RejectProposal(ctx context.Context, id int64, req DecisionRequest) (*DecisionResult, error) {
	return h.decide(ctx, id, models.ActionReject, req)
}

func (h *Hub) decide(ctx context.Context, id int64, action models.DecisionAction, req DecisionRequest) (*DecisionResult, error) {
	result := &DecisionResult{Outcome: models.OutcomeApplied}

	path := fmt.Sprintf("/proposals/%d/%s", id, action)
	if err := h.c.Post(ctx, path, req, nil); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		result.Outcome = models.OutcomeAlreadyDecided
	}

	// State is owned by the server, read it back rather than guess
	p, err := h.GetProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read proposal %d after %s: %w", id, action, err)
	}
	result.Proposal = p
	return result, nil
}

// ListEvents queries the audit trail.
func (h *Hub) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	if filter.Limit == 0 {
		filter.Limit = models.DefaultEventLimit
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var events []models.Event
	if err := h.list(ctx, "/events", "events", filter.Query(), &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].SetDefaults()
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}

// Stats returns the hub statistics payload undecoded.
func (h *Hub) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{}
	if err := h.c.Get(ctx, "/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// list fetches a collection that may come back as a bare array or wrapped in
// an object under key, "items" or "data".
func (h *Hub) list(ctx context.Context, path, key string, q url.Values, out interface{}) error {
	var raw jsoniter.RawMessage
	if err := h.c.Get(ctx, path, &raw, WithQuery(q)); err != nil {
		return err
	}

	items, ok := listItems(raw, key)
	if !ok {
		return &APIError{
			Kind:       ErrDecode,
			Service:    h.c.cfg.Service,
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("expected a list of %s", key),
			Body:       raw,
		}
	}
	if err := json.Unmarshal(items, out); err != nil {
		return &APIError{
			Kind:       ErrDecode,
			Service:    h.c.cfg.Service,
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: http.StatusOK,
			Body:       raw,
			Err:        err,
		}
	}
	return nil
}

func listItems(raw []byte, key string) ([]byte, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("[]"), true
	}
	res := gjson.ParseBytes(raw)
	if res.IsArray() {
		return raw, true
	}
	if res.IsObject() {
		for _, k := range []string{key, "items", "data"} {
			if v := res.Get(k); v.IsArray() {
				return []byte(v.Raw), true
			}
		}
	}
	return nil, false
}
