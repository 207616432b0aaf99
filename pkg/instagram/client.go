package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "igrepost/pkg/errors"
	"igrepost/pkg/logger"
	"igrepost/pkg/ratelimit"
	"igrepost/pkg/retry"
)

// Session holds the cookies and identity of a logged-in web session
type Session struct {
	SessionID string
	CSRFToken string
	DSUserID  string
	UserAgent string
	AppID     string
}

// Client represents an Instagram web API client bound to one session
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	session     Session
	baseURL     string
	uploadURL   string
	limiter     ratelimit.Limiter
	retryConfig *retry.Config
	maxVideo    int64
	upload      UploadSettings
	logger      logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API host
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUploadURL points uploads at another host
func WithUploadURL(u string) Option {
	return func(c *Client) { c.uploadURL = strings.TrimRight(u, "/") }
}

// WithLimiter throttles API calls through l
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets the retry policy for idempotent reads
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retryConfig = cfg }
}

// WithMaxVideoSize caps downloads; 0 disables the cap
func WithMaxVideoSize(n int64) Option {
	return func(c *Client) { c.maxVideo = n }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Instagram API client for session
func NewClient(session Session, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if session.AppID == "" {
		session.AppID = DefaultAppID
	}
	if session.UserAgent == "" {
		session.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":       session.UserAgent,
			"Accept":           "*/*",
			"Accept-Language":  "en-US,en;q=0.9",
			"X-IG-App-ID":      session.AppID,
			"X-CSRFToken":      session.CSRFToken,
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          BaseURL + "/",
			"Origin":           BaseURL,
		},
		session:   session,
		baseURL:   BaseURL,
		uploadURL: UploadURL,
		upload:    DefaultUploadSettings(),
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig == nil {
		c.retryConfig = retry.ForAPI(3, nil, log)
	}
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the API host the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) cookieHeader() string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("sessionid", c.session.SessionID)
	add("csrftoken", c.session.CSRFToken)
	add("ds_user_id", c.session.DSUserID)
	return strings.Join(parts, "; ")
}

// doRequest waits for the limiter, applies session headers and sends req.
// Transport failures come back as network errors.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
		if waited := time.Since(waitStart); waited > time.Second {
			logger.LogRateLimit(c.logger, req.URL.Path, waited)
		}
	}

	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if cookie := c.cookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Redacted(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.Redacted(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// checkResponseStatus turns a non-2xx response into a typed error. The body
// is inspected for Instagram's challenge and login markers, which arrive
// with assorted status codes.
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var status apiStatus
	_ = json.Unmarshal(body, &status)
	msg := status.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.Redacted(),
	}
	switch {
	case status.Message == "challenge_required" || status.ErrorType == "checkpoint_challenge_required":
		c.logger.WarnWithFields("checkpoint challenge required", fields)
		return errs.New(errs.ErrorTypeChallenge, resp.StatusCode, "challenge required: confirm the login in the Instagram app")
	case status.Message == "login_required":
		c.logger.WarnWithFields("session expired", fields)
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "login required: session cookie is no longer valid")
	}

	apiErr := errs.FromStatusCode(resp.StatusCode, msg)
	switch apiErr.Type {
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
	default:
		c.logger.WarnWithFields("API error", fields)
	}
	return apiErr
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}
	return body, nil
}

func (c *Client) decode(rawURL string, status int, body []byte, target interface{}) error {
	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       status,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to parse JSON", Code: status, Err: err}
	}
	return nil
}

// getJSONOnce performs one GET and decodes the JSON response
func (c *Client) getJSONOnce(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return err
	}
	if err := c.checkResponseStatus(resp, body); err != nil {
		return err
	}
	return c.decode(rawURL, resp.StatusCode, body, target)
}

// GetJSON performs a GET with retries and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
		return c.getJSONOnce(ctx, rawURL, target)
	})
}

// postForm sends a urlencoded POST and returns the status code and body.
// Non-2xx responses are returned as typed errors.
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if err := c.checkResponseStatus(resp, body); err != nil {
		return resp.StatusCode, body, err
	}
	return resp.StatusCode, body, nil
}

// CurrentUser verifies the session and returns the logged-in account
func (c *Client) CurrentUser(ctx context.Context) (*MediaUser, error) {
	var resp CurrentUserResponse
	if err := c.GetJSON(ctx, CurrentUserURL(c.baseURL), &resp); err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if resp.User.Username == "" {
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusOK, "session is not logged in")
	}
	c.logger.DebugWithFields("session verified", map[string]interface{}{
		"username": resp.User.Username,
	})
	return &resp.User, nil
}
