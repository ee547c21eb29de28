package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"techdispatch/internal/metrics"
	"techdispatch/internal/model"
	"techdispatch/internal/obs"
)

// ORS geocodes through OpenRouteService /geocode/search. It is safe for
// concurrent use; outgoing calls share one token bucket.
type ORS struct {
	session *http.Client
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	backoff time.Duration
}

func NewORS(apiKey, baseURL string, rps float64) (*ORS, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &ORS{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: lim,
		backoff: 200 * time.Millisecond,
	}, nil
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func (o *ORS) Geocode(ctx context.Context, address string) (_ model.GeoPoint, _ bool, err error) {
	defer obs.Time(ctx, "ors.geocode")(&err)
	defer func() {
		if err != nil {
			metrics.GeocodeRequests.WithLabelValues("error").Inc()
		}
	}()

	norm := Normalize(address)
	if norm == "" {
		return model.GeoPoint{}, false, nil
	}
	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", o.apiKey)
		req.Header.Set("Accept", "application/json")
		q := req.URL.Query()
		q.Set("text", norm)
		q.Set("boundary.country", "US")
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("geocode %q: %w", norm, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(decoded.Features) == 0 {
		metrics.GeocodeRequests.WithLabelValues("miss").Inc()
		return model.GeoPoint{}, false, nil
	}
	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return model.GeoPoint{}, false, fmt.Errorf("invalid coordinate format for %q", norm)
	}
	metrics.GeocodeRequests.WithLabelValues("hit").Inc()
	// GeoJSON order is [lon, lat]
	return model.GeoPoint{Lat: coords[1], Lng: coords[0]}, true, nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (o *ORS) do(req *http.Request) (*http.Response, error) {
	resp, err := o.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx responses with exponential
// backoff. Every attempt waits for the rate limiter first.
func (o *ORS) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 4
	backoff := o.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := o.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}
		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}
