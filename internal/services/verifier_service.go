package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claimwatch/claimwatch/internal/models"
)

// VerifierClient is the external AI verification service as the rest of the
// system consumes it. The service owns all claim-verification logic; we
// only create runs, read their state, and forward votes.
type VerifierClient interface {
	CreateRun(ctx context.Context, prompt string) (models.Run, error)
	GetRun(ctx context.Context, runID string) (models.Run, error)
	SubmitVote(ctx context.Context, runID string, vote models.Vote) error
}

type createRunRequest struct {
	Prompt string `json:"prompt"`
}

type createRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type runResponse struct {
	Status            string            `json:"status"`
	Confidence        float64           `json:"confidence"`
	ProvisionalAnswer string            `json:"provisional_answer"`
	Votes             []models.Vote     `json:"votes"`
	Evidence          []models.Evidence `json:"evidence"`
}

// HTTPVerifierClient talks to the verification service over HTTP.
type HTTPVerifierClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewVerifierClient(baseURL, apiKey string) *HTTPVerifierClient {
	return &HTTPVerifierClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateRun starts a verification run for prompt.
func (v *HTTPVerifierClient) CreateRun(ctx context.Context, prompt string) (models.Run, error) {
	body, err := json.Marshal(createRunRequest{Prompt: prompt})
	if err != nil {
		return models.Run{}, fmt.Errorf("marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/prompts", bytes.NewBuffer(body))
	if err != nil {
		return models.Run{}, fmt.Errorf("build create run request: %w", err)
	}
	v.setHeaders(req)

	resp, err := v.Client.Do(req)
	if err != nil {
		return models.Run{}, fmt.Errorf("create run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Run{}, fmt.Errorf("create run: verifier returned %s", resp.Status)
	}

	var out createRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Run{}, fmt.Errorf("decode create run response: %w", err)
	}
	return models.Run{RunID: out.RunID, Status: out.Status}, nil
}

// GetRun fetches the current state of runID. Non-2xx responses and network
// errors come back as plain errors; the poller treats them as "no data this
// tick" rather than propagating them.
func (v *HTTPVerifierClient) GetRun(ctx context.Context, runID string) (models.Run, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/runs/"+runID, nil)
	if err != nil {
		return models.Run{}, fmt.Errorf("build run status request: %w", err)
	}
	v.setHeaders(req)

	resp, err := v.Client.Do(req)
	if err != nil {
		return models.Run{}, fmt.Errorf("fetch run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return models.Run{}, fmt.Errorf("fetch run %s: verifier returned %s", runID, resp.Status)
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Run{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return models.Run{
		RunID:             runID,
		Status:            out.Status,
		Confidence:        out.Confidence,
		ProvisionalAnswer: out.ProvisionalAnswer,
		Votes:             out.Votes,
		Evidence:          out.Evidence,
	}, nil
}

// SubmitVote forwards a community vote on runID to the verifier.
func (v *HTTPVerifierClient) SubmitVote(ctx context.Context, runID string, vote models.Vote) error {
	body, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("marshal vote: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/runs/"+runID+"/votes", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build vote request: %w", err)
	}
	v.setHeaders(req)

	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("submit vote for run %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("submit vote for run %s: verifier returned %s", runID, resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (v *HTTPVerifierClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if v.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.APIKey)
	}
}
