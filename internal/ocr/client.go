package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfrotate/internal/limiter"
	"github.com/local/pdfrotate/internal/metrics"
)

// Result is one page's orientation decision: the clockwise rotation needed
// to correct the page. Confidence is always 1.0 on success; the protocol
// exposes no meaningful confidence signal.
type Result struct {
	Angle      int
	Confidence float64
}

// Detector converts a rendered page image into a rotation decision.
type Detector interface {
	DetectOrientation(ctx context.Context, jpeg []byte) (Result, error)
}

// Client talks to the orientation-detection service. It tries the registry's
// endpoints in priority order, each call gated by the rate limiter, and
// short-circuits on the first response carrying a direction code.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	secretKey string
	token     string
	registry  *Registry
	limiter   *limiter.TokenBucket
}

type ClientOptions struct {
	BaseURL        string
	APIKey         string
	SecretKey      string
	RequestTimeout time.Duration
	Registry       *Registry
	Limiter        *limiter.TokenBucket
}

func NewClient(opts ClientOptions) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: opts.RequestTimeout},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		secretKey: opts.SecretKey,
		registry:  opts.Registry,
		limiter:   opts.Limiter,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Authenticate performs the one-time credential exchange. The token is
// reused for every request for the rest of the run.
func (c *Client) Authenticate(ctx context.Context) error {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.apiKey)
	q.Set("client_secret", c.secretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/2.0/token?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &AuthError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return &AuthError{Reason: "malformed token response: " + err.Error()}
	}
	if tr.AccessToken == "" {
		return &AuthError{Reason: fmt.Sprintf("%s: %s", tr.Error, tr.ErrorDesc)}
	}
	c.token = tr.AccessToken
	log.Info().Msg("orientation service token acquired")
	return nil
}

type detectResponse struct {
	Direction *int   `json:"direction"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// DetectOrientation returns the clockwise correction angle for a rendered
// page. Endpoints are tried in registry order; a response without a
// direction code counts against that endpoint and the next one is tried.
// With no active endpoint left it fails fast without any network call.
func (c *Client) DetectOrientation(ctx context.Context, jpeg []byte) (Result, error) {
	img := base64.StdEncoding.EncodeToString(jpeg)

	for _, name := range c.registry.Active() {
		if err := c.limiter.Acquire(ctx); err != nil {
			return Result{}, err
		}

		start := time.Now()
		dir, err := c.callEndpoint(ctx, name, img)
		dur := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			metrics.ObserveEndpoint(name, "error", dur)
			var svcErr *ServiceError
			evt := log.Warn().Str("endpoint", name).Dur("duration", dur)
			if errors.As(err, &svcErr) {
				evt = evt.Int("error_code", svcErr.Code).Str("error_msg", svcErr.Msg)
			} else {
				evt = evt.Err(err)
			}
			evt.Msg("endpoint unavailable, trying next")
			c.registry.MarkFailure(name)
			continue
		}

		angle, valid := decodeDirection(dir)
		if !valid {
			metrics.ObserveEndpoint(name, "bad_direction", dur)
			log.Warn().Str("endpoint", name).Int("direction", dir).
				Msg("unknown direction code, trying next endpoint")
			c.registry.MarkFailure(name)
			continue
		}

		metrics.ObserveEndpoint(name, "success", dur)
		c.registry.MarkSuccess(name)
		return Result{Angle: angle, Confidence: 1.0}, nil
	}

	return Result{}, ErrEndpointsExhausted
}

// callEndpoint issues one detection request and returns the raw direction
// code. Any transport error, bad status, or direction-less body is a
// ServiceError for this endpoint.
func (c *Client) callEndpoint(ctx context.Context, name, imageB64 string) (int, error) {
	form := url.Values{}
	form.Set("image", imageB64)
	form.Set("detect_direction", "true")

	reqURL := fmt.Sprintf("%s/rest/2.0/ocr/v1/%s?access_token=%s", c.baseURL, name, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &ServiceError{Endpoint: name, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &ServiceError{Endpoint: name, Code: resp.StatusCode, Msg: "http status " + resp.Status}
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return 0, &ServiceError{Endpoint: name, Msg: "malformed response: " + err.Error()}
	}
	if dr.Direction == nil {
		return 0, &ServiceError{Endpoint: name, Code: dr.ErrorCode, Msg: dr.ErrorMsg}
	}
	return *dr.Direction, nil
}

// decodeDirection maps the service's direction code to a clockwise
// correction angle. Anything outside {0,1,2,3} carries no orientation
// signal and is rejected rather than defaulted to 0.
func decodeDirection(code int) (int, bool) {
	switch code {
	case 0:
		return 0, true
	case 1:
		return 90, true
	case 2:
		return 180, true
	case 3:
		return 270, true
	default:
		return 0, false
	}
}
