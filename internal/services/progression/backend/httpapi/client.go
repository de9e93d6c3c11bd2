// Package httpapi implements the progression backend contract over the
// hosted Ember HTTP/JSON API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
	"github.com/emberhabit/ember/internal/platform/timeouts"
	"github.com/emberhabit/ember/internal/services/progression/domain"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 1 << 20

// Config configures the hosted API client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.emberhabit.com.
	BaseURL string
	// Token is the installation's opaque bearer token.
	Token string
	// HTTPClient overrides the transport; defaults to http.DefaultClient.
	HTTPClient *http.Client
	// RequestTimeout bounds each call; defaults to timeouts.BackendRequest.
	RequestTimeout time.Duration
}

// Client talks to the hosted Ember progression API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

// New validates the configuration and builds an API client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("backend token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = timeouts.BackendRequest
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

type progressionPayload struct {
	Counter             int      `json:"counter"`
	AwardedMilestoneIDs []string `json:"awarded_milestone_ids"`
	TotalXP             int      `json:"total_xp"`
	StartedAt           int64    `json:"started_at"`
}

type submitAwardsPayload struct {
	MilestoneIDs []string `json:"milestone_ids"`
}

type awardOutcomePayload struct {
	AwardedIDs []string `json:"awarded_ids"`
	TotalXP    int      `json:"total_xp"`
}

// FetchProgression returns the authoritative progression record for a scope.
func (c *Client) FetchProgression(ctx context.Context, scope domain.Scope) (domain.ProgressionRecord, error) {
	if err := scope.Validate(); err != nil {
		return domain.ProgressionRecord{}, err
	}

	var payload progressionPayload
	if err := c.do(ctx, http.MethodGet, c.scopePath(scope), nil, &payload); err != nil {
		return domain.ProgressionRecord{}, err
	}

	record := domain.ProgressionRecord{
		Scope:               scope,
		Counter:             payload.Counter,
		AwardedMilestoneIDs: payload.AwardedMilestoneIDs,
		TotalXP:             payload.TotalXP,
	}
	if payload.StartedAt > 0 {
		record.StartedAt = time.UnixMilli(payload.StartedAt).UTC()
	}
	if record.Counter < 0 {
		return domain.ProgressionRecord{}, apperrors.WithMetadata(apperrors.CodeBackendBadResponse, "backend returned a negative counter", map[string]string{
			"scope": scope.Key(),
		})
	}
	return record, nil
}

// SubmitAwards submits one batched milestone award request.
func (c *Client) SubmitAwards(ctx context.Context, scope domain.Scope, milestoneIDs []string) (domain.AwardOutcome, error) {
	if err := scope.Validate(); err != nil {
		return domain.AwardOutcome{}, err
	}
	if len(milestoneIDs) == 0 {
		return domain.AwardOutcome{}, nil
	}

	var payload awardOutcomePayload
	body := submitAwardsPayload{MilestoneIDs: milestoneIDs}
	if err := c.do(ctx, http.MethodPost, c.scopePath(scope)+"/awards", body, &payload); err != nil {
		return domain.AwardOutcome{}, err
	}
	return domain.AwardOutcome{
		AwardedIDs: payload.AwardedIDs,
		TotalXP:    payload.TotalXP,
	}, nil
}

func (c *Client) scopePath(scope domain.Scope) string {
	return fmt.Sprintf("/v1/progressions/%s/%s", url.PathEscape(string(scope.Kind)), url.PathEscape(scope.ID))
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeBackendUnavailable, "backend request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeBackendUnavailable, "read backend response", err)
	}

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return apperrors.Wrap(apperrors.CodeBackendBadResponse, "decode backend response", err)
		}
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.New(apperrors.CodeBackendUnauthorized, "backend rejected the installation token")
	case code == http.StatusNotFound:
		return apperrors.New(apperrors.CodeNotFound, "progression record not found")
	case code >= 500 || code == http.StatusTooManyRequests:
		return apperrors.WithMetadata(apperrors.CodeBackendUnavailable, "backend is unavailable", map[string]string{
			"status": fmt.Sprintf("%d", code),
		})
	default:
		return apperrors.WithMetadata(apperrors.CodeBackendBadResponse, "unexpected backend status", map[string]string{
			"status": fmt.Sprintf("%d", code),
		})
	}
}
