package client

import (
	"context"

	"github.com/agent-matrix/matrix-system/pkg/models"
	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// AI wraps the Matrix-AI planning API
type AI struct {
	c *Client
}

func NewAI(cfg Config, opts ...Option) (*AI, error) {
	if cfg.Service == "" {
		cfg.Service = ServiceAI
	}
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AI{c: c}, nil
}

func (a *AI) Client() *Client {
	return a.c
}

func (a *AI) Close() {
	a.c.Close()
}

// PlanRequest asks Matrix-AI for a remediation plan
type PlanRequest struct {
	AppUID  string                 `json:"app_uid" validate:"required,max=255"`
	Goal    string                 `json:"goal,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Plan requests a remediation plan for one application.
func (a *AI) Plan(ctx context.Context, req PlanRequest) (*models.Plan, error) {
	if err := validation.Struct("plan request", req); err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := a.c.Post(ctx, "/v1/plan", req, &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ChatRequest is a free form question for Matrix-AI
type ChatRequest struct {
	Message string                 `json:"message" validate:"required"`
	Context map[string]interface{} `json:"context,omitempty"`
}

type ChatResponse struct {
	Reply string                 `json:"reply"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

func (a *AI) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validation.Struct("chat request", req); err != nil {
		return nil, err
	}
	var resp ChatResponse
	if err := a.c.Post(ctx, "/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
