package progress

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
)

// RESTStore talks to a hosted key-value store over its REST API
// (Upstash / Vercel KV: GET {url}/get/{key}, POST {url}/set/{key}).
type RESTStore struct {
	baseURL    string
	token      string
	key        string
	httpClient *http.Client
}

type restResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewRESTStore creates a store for the given REST endpoint and bearer token
func NewRESTStore(baseURL, token, key string) *RESTStore {
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		key:        key,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *RESTStore) Get(ctx context.Context) (Record, error) {
	res, err := s.call(ctx, http.MethodGet, "get", nil)
	if err != nil {
		return Record{}, err
	}

	if len(res.Result) == 0 || string(res.Result) == "null" {
		return Record{}, ErrNotFound
	}

	// values are stored as JSON strings; tolerate a bare object as well
	var raw string
	if err := json.Unmarshal(res.Result, &raw); err == nil {
		return decodeRecord([]byte(raw))
	}
	return decodeRecord(res.Result)
}

func (s *RESTStore) Set(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, http.MethodPost, "set", data)
	return err
}

func (s *RESTStore) call(ctx context.Context, method, command string, body []byte) (*restResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, command, url.PathEscape(s.key))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("kv %s: %w", command, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv %s: %w", command, err)
	}
	defer resp.Body.Close()

	var out restResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("kv %s: status %d: decode response: %w", command, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, fmt.Errorf("kv %s: status %d: %s", command, resp.StatusCode, out.Error)
	}
	return &out, nil
}
