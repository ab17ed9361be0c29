// Package partner provides the client for the outbound supplier API:
// availability pushes and time-limited promotional deals.
package partner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultProductionURL = "https://api.partner-supply.example.com/v1"
	defaultSandboxURL    = "https://sandbox.partner-supply.example.com/v1"
)

// ErrMissingCredentials is returned before any network call when the
// credential pair is not configured.
var ErrMissingCredentials = errors.New("partner credentials not configured")

// Config holds the partner API connection settings.
type Config struct {
	Username string
	Password string

	// Sandbox routes calls to the sandbox endpoint instead of production.
	Sandbox bool

	// ProductionURL and SandboxURL override the default endpoints,
	// primarily for tests.
	ProductionURL string
	SandboxURL    string

	Timeout time.Duration
}

// APIError is a typed failure from the partner API, covering both
// HTTP-level and payload-level rejections.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("partner API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("partner API error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a client for the partner availability API. Calls carry no retry
// policy; that belongs to the caller.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a partner API client.
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a credential pair is present.
func (c *Client) Configured() bool {
	return c.config.Username != "" && c.config.Password != ""
}

// AvailabilitySlot is one datetime's bookable capacity.
type AvailabilitySlot struct {
	DateTime  time.Time `json:"dateTime"`
	Vacancies int       `json:"vacancies"`
	Currency  string    `json:"currency,omitempty"`
	Price     *float64  `json:"price,omitempty"`
}

type pushAvailabilityRequest struct {
	ProductID      string             `json:"productId"`
	Availabilities []AvailabilitySlot `json:"availabilities"`
}

// PushAvailability pushes the given slots for one product. The call either
// fully succeeds or returns an error; no partial local state is recorded.
func (c *Client) PushAvailability(ctx context.Context, productID string, slots []AvailabilitySlot) error {
	body := pushAvailabilityRequest{ProductID: productID, Availabilities: slots}
	return c.call(ctx, http.MethodPost, "/availability", body, nil)
}

// DealParams describes a time-limited promotional deal.
type DealParams struct {
	ExternalProductID  string `json:"externalProductId"`
	DealName           string `json:"dealName"`
	DateRange          struct {
		From string `json:"from"` // "2006-01-02"
		To   string `json:"to"`
	} `json:"dateRange"`
	DiscountPercentage int `json:"discountPercentage"`
	NoticePeriodDays   int `json:"noticePeriodDays"`
}

// Deal is a promotional deal as the partner reports it.
type Deal struct {
	ID                 string `json:"id"`
	ExternalProductID  string `json:"externalProductId"`
	DealName           string `json:"dealName"`
	DiscountPercentage int    `json:"discountPercentage"`
	NoticePeriodDays   int    `json:"noticePeriodDays"`
}

// CreateDeal registers a new promotional deal.
func (c *Client) CreateDeal(ctx context.Context, params DealParams) (*Deal, error) {
	var deal Deal
	if err := c.call(ctx, http.MethodPost, "/deals", params, &deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListDeals lists the deals registered for a product.
func (c *Client) ListDeals(ctx context.Context, externalProductID string) ([]Deal, error) {
	var deals []Deal
	path := "/deals?externalProductId=" + externalProductID
	if err := c.call(ctx, http.MethodGet, path, nil, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// DeleteDeal removes a deal by its partner-side ID.
func (c *Client) DeleteDeal(ctx context.Context, dealID string) error {
	return c.call(ctx, http.MethodDelete, "/deals/"+dealID, nil, nil)
}

// call performs one authenticated request against the partner API.
// Credentials are checked before any network attempt; the sandbox flag is
// resolved here, once per call.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if !c.Configured() {
		return ErrMissingCredentials
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.credentials())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func (c *Client) baseURL() string {
	if c.config.Sandbox {
		if c.config.SandboxURL != "" {
			return c.config.SandboxURL
		}
		return defaultSandboxURL
	}
	if c.config.ProductionURL != "" {
		return c.config.ProductionURL
	}
	return defaultProductionURL
}

// credentials encodes the credential pair as the single header value the
// partner API expects.
func (c *Client) credentials() string {
	return base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
}

// decodeAPIError folds an error response into one typed error, whether or
// not the body carries the partner's JSON error shape.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(raw))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
