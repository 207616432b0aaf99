package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrepost/pkg/config"
	"igrepost/pkg/logger"
)

type failingStore struct {
	mu       sync.Mutex
	getErr   error
	setErr   error
	inner    *MemoryStore
	setCalls int
}

func (f *failingStore) Get(ctx context.Context) (Record, error) {
	if f.getErr != nil {
		return Record{}, f.getErr
	}
	return f.inner.Get(ctx)
}

func (f *failingStore) Set(ctx context.Context, r Record) error {
	f.mu.Lock()
	f.setCalls++
	setErr := f.setErr
	f.mu.Unlock()
	if setErr != nil {
		return setErr
	}
	return f.inner.Set(ctx, r)
}

func (f *failingStore) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := NewUpdate(StatusDownloading, "Fetching reel info...", "m1", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, rec))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFallbackStoreWriteFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()
	primary := &failingStore{inner: NewMemoryStore(), setErr: errors.New("kv down"), getErr: errors.New("kv down")}
	s := NewFallbackStore(primary, log)

	rec := NewUpdate(StatusUploading, "Uploading reel", "abc123", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, rec))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestFallbackStorePrefersPrimary(t *testing.T) {
	ctx := context.Background()
	primary := &failingStore{inner: NewMemoryStore()}
	s := NewFallbackStore(primary, nil)

	rec := NewUpdate(StatusCompleted, "Reel reposted successfully!", "", "").Record(fixedNow)
	require.NoError(t, primary.inner.Set(ctx, rec))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestFallbackStoreServesNewestAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	primary := &failingStore{inner: NewMemoryStore()}
	s := NewFallbackStore(primary, logger.NewTestLogger())

	older := NewUpdate(StatusDownloading, "Fetching reel info...", "r1", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, older))

	primary.failWrites(errors.New("read-only replica"))
	newer := NewUpdate(StatusCompleted, "Reel reposted successfully!", "r1", "alice").Record(fixedNow.Add(time.Minute))
	require.NoError(t, s.Set(ctx, newer))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, got, "read must not return the record from before the last write")

	stored, err := primary.inner.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloading, stored.Status)

	// once the primary accepts writes again the next read catches it up
	primary.failWrites(nil)
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	stored, err = primary.inner.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, stored)

	// caught up: reads go to the primary again
	direct := NewUpdate(StatusIdle, "Waiting for reels", "", "").Record(fixedNow.Add(2 * time.Minute))
	require.NoError(t, primary.inner.Set(ctx, direct))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, direct, got)
}

func TestFallbackStoreNotFoundUsesMemory(t *testing.T) {
	ctx := context.Background()
	primary := &failingStore{inner: NewMemoryStore(), setErr: errors.New("timeout")}
	s := NewFallbackStore(primary, nil)

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := NewUpdate(StatusError, "Failed to repost reel.", "x", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, rec))

	// primary has nothing, memory has the write that failed upstream
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	// the read retried the write the primary rejected
	assert.Equal(t, 2, primary.setCalls)
}

// fakeKV mimics the Upstash REST API for a single key
type fakeKV struct {
	mu    sync.Mutex
	token string
	value *string
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Unauthorized"}`)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/get/"):
		if f.value == nil {
			io.WriteString(w, `{"result":null}`)
			return
		}
		quoted, _ := jsonString(*f.value)
		io.WriteString(w, `{"result":`+quoted+`}`)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/set/"):
		body, _ := io.ReadAll(r.Body)
		v := string(body)
		f.value = &v
		io.WriteString(w, `{"result":"OK"}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"unsupported"}`)
	}
}

func TestRESTStoreRoundTrip(t *testing.T) {
	kv := &fakeKV{token: "secret"}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	ctx := context.Background()
	s := NewRESTStore(srv.URL+"/", "secret", "bot_state")

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := NewUpdate(StatusUploading, "Uploading and processing video...", "m42", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, rec))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, "m42", got.ReelIDOrEmpty())
	assert.Equal(t, "alice", got.SenderOrEmpty())
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
}

func TestRESTStoreUnauthorized(t *testing.T) {
	srv := httptest.NewServer(&fakeKV{token: "secret"})
	defer srv.Close()

	s := NewRESTStore(srv.URL, "wrong", "bot_state")
	_, err := s.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestRESTStoreBehindFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"maintenance"}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewFallbackStore(NewRESTStore(srv.URL, "t", "bot_state"), nil)

	rec := NewUpdate(StatusDownloading, "Fetching reel info...", "r1", "alice").Record(fixedNow)
	require.NoError(t, s.Set(ctx, rec))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSelectBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ServerConfig
		want Backend
	}{
		{"both kv credentials", config.ServerConfig{KVRestURL: "https://kv", KVRestToken: "t"}, BackendREST},
		{"kv url only", config.ServerConfig{KVRestURL: "https://kv"}, BackendMemory},
		{"kv token only", config.ServerConfig{KVRestToken: "t"}, BackendMemory},
		{"redis", config.ServerConfig{RedisURL: "redis://localhost:6379"}, BackendRedis},
		{"kv wins over redis", config.ServerConfig{KVRestURL: "https://kv", KVRestToken: "t", RedisURL: "redis://x"}, BackendREST},
		{"nothing", config.ServerConfig{}, BackendMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectBackend(tt.cfg))
		})
	}
}

func TestNewStoreMemory(t *testing.T) {
	s, backend, err := NewStore(context.Background(), config.ServerConfig{StoreKey: "bot_state"}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, backend)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestNewStoreREST(t *testing.T) {
	s, backend, err := NewStore(context.Background(), config.ServerConfig{
		StoreKey:    "bot_state",
		KVRestURL:   "https://kv.example.com",
		KVRestToken: "t",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendREST, backend)
	assert.IsType(t, &FallbackStore{}, s)
}

func TestNewStoreBadRedisURL(t *testing.T) {
	_, _, err := NewStore(context.Background(), config.ServerConfig{
		StoreKey: "bot_state",
		RedisURL: "not a url",
	}, nil)
	assert.Error(t, err)
}

func TestDecodeRecordUnknownStatus(t *testing.T) {
	r, err := decodeRecord([]byte(`{"status":"weird","message":"m","reelId":null,"sender":null,"updatedAt":"2024-05-01T12:30:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, r.Status)

	_, err = decodeRecord([]byte(`{`))
	assert.Error(t, err)
}

func jsonString(s string) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}
