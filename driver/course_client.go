// ABOUTME: This file implements the course-platform API client
// ABOUTME: OAuth client-credentials auth plus link-paginated JSON:API listings

package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"funnel-dashboard/models"
	"funnel-dashboard/utils"
)

const coursePageLimit = 100

// CourseTokenResponse is the OAuth client-credentials grant response.
type CourseTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// CustomerPage is one page of platform customers.
//
// Ordering precondition: the platform returns customers most-recently-updated
// first, which is what makes updated_at usable as an early-exit key.
type CustomerPage struct {
	Customers []models.Customer
	NextURL   string
	Total     int
}

// PurchasePage is one page of purchases, newest first.
type PurchasePage struct {
	Purchases []models.Purchase
	NextURL   string
	Total     int
}

// ProductPage is one page of the product catalog.
type ProductPage struct {
	Products []models.Product
	NextURL  string
}

// OfferPage is one page of the offer catalog.
type OfferPage struct {
	Offers  map[string]string // offer ID -> title
	NextURL string
}

// CourseClient talks to the course-platform JSON:API.
type CourseClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	limiter      *utils.HostRateLimiter
	logger       *slog.Logger
}

// NewCourseClient creates a course-platform client.
func NewCourseClient(baseURL, clientID, clientSecret string, timeout time.Duration, limiter *utils.HostRateLimiter, logger *slog.Logger) *CourseClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseClient{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   newHTTPClient(timeout),
		limiter:      limiter,
		logger:       logger,
	}
}

// FetchToken exchanges client credentials for a bearer token. The server
// advertises the token lifetime in ExpiresIn; callers cache tokens with their
// own safety margin rather than trusting the full advertised lifetime.
func (c *CourseClient) FetchToken(ctx context.Context) (*CourseTokenResponse, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	reqURL := c.baseURL + "/v1/oauth/token"
	if c.limiter != nil {
		if err := c.limiter.WaitForHost(ctx, reqURL); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Error("course platform token request rejected", "error", err)
		return nil, err
	}

	var token CourseTokenResponse
	if err := decodeJSON(resp, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in response", ErrUnauthorized)
	}
	return &token, nil
}

// jsonAPIListResponse is the shared envelope of the platform's listings.
type jsonAPIListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			CreatedAt     string `json:"created_at"`
			UpdatedAt     string `json:"updated_at"`
			LastRequestAt string `json:"last_request_at"`
			AmountInCents int64  `json:"amount_in_cents"`
			Title         string `json:"title"`
			MembersCount  int    `json:"members_aggregate_count"`
		} `json:"attributes"`
		Relationships struct {
			Offers struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"offers"`
		} `json:"relationships"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

// ListCustomers fetches one page of customers. pageURL is the next-link from
// the previous page, or empty for the first page (which includes offer
// relationships for enrollment breakdowns).
func (c *CourseClient) ListCustomers(ctx context.Context, accessToken, pageURL string) (CustomerPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/v1/customers?limit=%d&include=offers", c.baseURL, coursePageLimit)
	}

	var parsed jsonAPIListResponse
	if err := c.getJSON(ctx, accessToken, pageURL, &parsed); err != nil {
		return CustomerPage{}, fmt.Errorf("customer listing failed: %w", err)
	}

	page := CustomerPage{NextURL: parsed.Links.Next, Total: parsed.Meta.Total}
	for _, d := range parsed.Data {
		customer := models.Customer{
			ID:            d.ID,
			CreatedAt:     d.Attributes.CreatedAt,
			UpdatedAt:     d.Attributes.UpdatedAt,
			LastRequestAt: d.Attributes.LastRequestAt,
		}
		for _, o := range d.Relationships.Offers.Data {
			customer.OfferIDs = append(customer.OfferIDs, o.ID)
		}
		page.Customers = append(page.Customers, customer)
	}
	return page, nil
}

// ListPurchases fetches one page of purchases, newest first.
func (c *CourseClient) ListPurchases(ctx context.Context, accessToken, pageURL string) (PurchasePage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/v1/purchases?limit=%d", c.baseURL, coursePageLimit)
	}

	var parsed jsonAPIListResponse
	if err := c.getJSON(ctx, accessToken, pageURL, &parsed); err != nil {
		return PurchasePage{}, fmt.Errorf("purchase listing failed: %w", err)
	}

	page := PurchasePage{NextURL: parsed.Links.Next, Total: parsed.Meta.Total}
	for _, d := range parsed.Data {
		page.Purchases = append(page.Purchases, models.Purchase{
			ID:          d.ID,
			CreatedAt:   d.Attributes.CreatedAt,
			AmountCents: d.Attributes.AmountInCents,
		})
	}
	return page, nil
}

// ListProducts fetches one page of the product catalog.
func (c *CourseClient) ListProducts(ctx context.Context, accessToken, pageURL string) (ProductPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/v1/products?limit=%d", c.baseURL, coursePageLimit)
	}

	var parsed jsonAPIListResponse
	if err := c.getJSON(ctx, accessToken, pageURL, &parsed); err != nil {
		return ProductPage{}, fmt.Errorf("product listing failed: %w", err)
	}

	page := ProductPage{NextURL: parsed.Links.Next}
	for _, d := range parsed.Data {
		title := d.Attributes.Title
		if title == "" {
			title = "Unknown"
		}
		page.Products = append(page.Products, models.Product{
			Title:   title,
			Members: d.Attributes.MembersCount,
		})
	}
	return page, nil
}

// ListOffers fetches one page of the offer catalog as an ID→title map.
func (c *CourseClient) ListOffers(ctx context.Context, accessToken, pageURL string) (OfferPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/v1/offers?limit=%d", c.baseURL, coursePageLimit)
	}

	var parsed jsonAPIListResponse
	if err := c.getJSON(ctx, accessToken, pageURL, &parsed); err != nil {
		return OfferPage{}, fmt.Errorf("offer listing failed: %w", err)
	}

	page := OfferPage{NextURL: parsed.Links.Next, Offers: make(map[string]string, len(parsed.Data))}
	for _, d := range parsed.Data {
		page.Offers[d.ID] = d.Attributes.Title
	}
	return page, nil
}

func (c *CourseClient) getJSON(ctx context.Context, accessToken, reqURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.WaitForHost(ctx, reqURL); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("course platform request rejected", "url", reqURL, "error", err)
		return err
	}
	return decodeJSON(resp, out)
}
