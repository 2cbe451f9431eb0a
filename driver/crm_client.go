// ABOUTME: This file implements the CRM API client for deals, owners, pipelines
// ABOUTME: Deal search pages by "after" cursor; results are newest-first

package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"funnel-dashboard/models"
	"funnel-dashboard/utils"
)

const crmPageLimit = 100

// DealSearchQuery narrows a deal search to a stage set and a close-date
// range (epoch milliseconds, inclusive).
type DealSearchQuery struct {
	StageIDs    []string
	StartMillis int64
	EndMillis   int64
	After       string
}

// DealPage is one page of deal search results.
type DealPage struct {
	Deals []models.Deal
	After string
	Total int
}

// OwnerPage is one page of CRM owners.
type OwnerPage struct {
	Owners []models.DealOwner
	After  string
}

// CRMClient talks to the CRM REST API with a private-app bearer token.
type CRMClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *utils.HostRateLimiter
	logger     *slog.Logger
}

// NewCRMClient creates a CRM API client.
func NewCRMClient(baseURL, token string, timeout time.Duration, limiter *utils.HostRateLimiter, logger *slog.Logger) *CRMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CRMClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: newHTTPClient(timeout),
		limiter:    limiter,
		logger:     logger,
	}
}

type dealSearchBody struct {
	FilterGroups []dealFilterGroup `json:"filterGroups"`
	Properties   []string          `json:"properties"`
	Limit        int               `json:"limit"`
	After        string            `json:"after,omitempty"`
}

type dealFilterGroup struct {
	Filters []dealFilter `json:"filters"`
}

type dealFilter struct {
	PropertyName string   `json:"propertyName"`
	Operator     string   `json:"operator"`
	Values       []string `json:"values,omitempty"`
	Value        *int64   `json:"value,omitempty"`
	HighValue    *int64   `json:"highValue,omitempty"`
}

type dealSearchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID         string            `json:"id"`
		Properties map[string]string `json:"properties"`
	} `json:"results"`
	Paging struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// SearchDeals returns one page of deals whose stage and close date match the
// query. The CRM filters the window server-side, so callers page until the
// cursor runs out rather than early-exiting.
func (c *CRMClient) SearchDeals(ctx context.Context, q DealSearchQuery) (DealPage, error) {
	body := dealSearchBody{
		FilterGroups: []dealFilterGroup{{
			Filters: []dealFilter{
				{PropertyName: "dealstage", Operator: "IN", Values: q.StageIDs},
				{PropertyName: "closedate", Operator: "BETWEEN", Value: &q.StartMillis, HighValue: &q.EndMillis},
			},
		}},
		Properties: []string{"amount", "closedate", "dealstage", "dealname", "hubspot_owner_id"},
		Limit:      crmPageLimit,
		After:      q.After,
	}

	var parsed dealSearchResponse
	if err := c.postJSON(ctx, "/crm/v3/objects/deals/search", body, &parsed); err != nil {
		return DealPage{}, fmt.Errorf("deal search failed: %w", err)
	}

	page := DealPage{After: parsed.Paging.Next.After, Total: parsed.Total}
	for _, r := range parsed.Results {
		page.Deals = append(page.Deals, models.Deal{
			ID:        r.ID,
			Name:      r.Properties["dealname"],
			Amount:    r.Properties["amount"],
			CloseDate: r.Properties["closedate"],
			StageID:   r.Properties["dealstage"],
			OwnerID:   r.Properties["hubspot_owner_id"],
		})
	}
	return page, nil
}

type ownerListResponse struct {
	Results []struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"results"`
	Paging struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// ListOwners returns one page of CRM owners.
func (c *CRMClient) ListOwners(ctx context.Context, after string) (OwnerPage, error) {
	params := url.Values{"limit": {fmt.Sprint(crmPageLimit)}}
	if after != "" {
		params.Set("after", after)
	}

	var parsed ownerListResponse
	if err := c.getJSON(ctx, "/crm/v3/owners?"+params.Encode(), &parsed); err != nil {
		return OwnerPage{}, fmt.Errorf("owner listing failed: %w", err)
	}

	page := OwnerPage{After: parsed.Paging.Next.After}
	for _, r := range parsed.Results {
		page.Owners = append(page.Owners, models.DealOwner{
			ID:        r.ID,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
		})
	}
	return page, nil
}

type pipelineListResponse struct {
	Results []struct {
		ID     string `json:"id"`
		Label  string `json:"label"`
		Stages []struct {
			ID       string `json:"id"`
			Label    string `json:"label"`
			Metadata struct {
				Probability string `json:"probability"`
			} `json:"metadata"`
		} `json:"stages"`
	} `json:"results"`
}

// ListPipelineStages returns every stage of every deal pipeline.
func (c *CRMClient) ListPipelineStages(ctx context.Context) ([]models.PipelineStage, error) {
	var parsed pipelineListResponse
	if err := c.getJSON(ctx, "/crm/v3/pipelines/deals", &parsed); err != nil {
		return nil, fmt.Errorf("pipeline listing failed: %w", err)
	}

	var stages []models.PipelineStage
	for _, p := range parsed.Results {
		for _, s := range p.Stages {
			stages = append(stages, models.PipelineStage{
				ID:            s.ID,
				Label:         s.Label,
				PipelineID:    p.ID,
				PipelineLabel: p.Label,
				Probability:   s.Metadata.Probability,
			})
		}
	}
	return stages, nil
}

func (c *CRMClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *CRMClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *CRMClient) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.WaitForHost(req.Context(), req.URL.String()); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("CRM request rejected", "path", req.URL.Path, "error", err)
		return err
	}
	return decodeJSON(resp, out)
}
