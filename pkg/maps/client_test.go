package maps

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestEstimateRouteRequest(t *testing.T) {
	respBody := `{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"value":3200,"text":"3.2 km"},"duration":{"value":540,"text":"9 mins"}}]}]}`

	var captured *http.Request
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, respBody), nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://maps.test/api"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	est, err := client.EstimateRoute(context.Background(), LatLng{Latitude: 12.9, Longitude: 77.6}, LatLng{Latitude: 12.95, Longitude: 77.64})
	if err != nil {
		t.Fatalf("estimate route: %v", err)
	}
	if captured.URL.Path != "/api/distancematrix/json" {
		t.Fatalf("unexpected path %q", captured.URL.Path)
	}
	q := captured.URL.Query()
	if q.Get("key") != "test-key" || q.Get("mode") != "driving" || q.Get("units") != "metric" {
		t.Fatalf("unexpected query %v", q)
	}
	if !strings.HasPrefix(q.Get("origins"), "12.9") {
		t.Fatalf("unexpected origins %q", q.Get("origins"))
	}
	if _, ok := captured.Context().Deadline(); !ok {
		t.Fatalf("expected request deadline")
	}
	if est.DistanceMeters != 3200 || est.DurationSeconds != 540 || est.DurationText != "9 mins" {
		t.Fatalf("unexpected estimate %+v", est)
	}
}

func TestEstimateRouteFailures(t *testing.T) {
	cases := map[string]*http.Response{
		"http status":    jsonResponse(http.StatusInternalServerError, "boom"),
		"top status":     jsonResponse(http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`),
		"element status": jsonResponse(http.StatusOK, `{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`),
		"no elements":    jsonResponse(http.StatusOK, `{"status":"OK","rows":[]}`),
		"invalid json":   jsonResponse(http.StatusOK, `{"status":`),
	}
	for name, resp := range cases {
		resp := resp
		t.Run(name, func(t *testing.T) {
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return resp, nil })
			client, err := NewClient("k", WithHTTPClient(&http.Client{Transport: rt}))
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.EstimateRoute(context.Background(), LatLng{}, LatLng{})
			if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
				t.Fatalf("expected upstream error, got %v", err)
			}
		})
	}
}

func TestEstimateRouteTimesOut(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	client, err := NewClient("k", WithTimeout(20*time.Millisecond), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	start := time.Now()
	_, err = client.EstimateRoute(context.Background(), LatLng{}, LatLng{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
