package maps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://maps.googleapis.com/maps/api"
	defaultTimeout              = 2 * time.Second
	requestBodyReadLimit  int64 = 1024
	distanceMatrixPath          = "distancematrix/json"
	statusOK                    = "OK"
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client wraps the Google Distance Matrix API used for delivery ETAs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Maps API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every routing call. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

func (l LatLng) String() string {
	return fmt.Sprintf("%f,%f", l.Latitude, l.Longitude)
}

// RouteEstimate is the single origin/destination element of a Distance Matrix response.
type RouteEstimate struct {
	DistanceMeters  int64
	DistanceText    string
	DurationSeconds int64
	DurationText    string
}

// EstimateRoute asks Distance Matrix for a driving estimate between two points.
// Transport failures, non-OK top level status and non-OK element status are all errors.
func (c *Client) EstimateRoute(ctx context.Context, origin, destination LatLng) (*RouteEstimate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "google maps client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("origins", origin.String())
	query.Set("destinations", destination.String())
	query.Set("mode", "driving")
	query.Set("units", "metric")
	query.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), distanceMatrixPath, query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build distance matrix request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute distance matrix request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "distance matrix request failed")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "read distance matrix response")
	}
	if !gjson.ValidBytes(body) {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "distance matrix returned invalid json")
	}

	parsed := gjson.ParseBytes(body)
	if status := parsed.Get("status").String(); status != statusOK {
		return nil, pkgerrors.Newf(pkgerrors.CodeUpstream, "distance matrix status %s: %s", status, parsed.Get("error_message").String())
	}

	element := parsed.Get("rows.0.elements.0")
	if !element.Exists() {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "distance matrix returned no elements")
	}
	if status := element.Get("status").String(); status != statusOK {
		return nil, pkgerrors.Newf(pkgerrors.CodeUpstream, "route unavailable: %s", status)
	}

	return &RouteEstimate{
		DistanceMeters:  element.Get("distance.value").Int(),
		DistanceText:    element.Get("distance.text").String(),
		DurationSeconds: element.Get("duration.value").Int(),
		DurationText:    element.Get("duration.text").String(),
	}, nil
}
