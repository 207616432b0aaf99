package instagram_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igrepost/pkg/errors"
	"igrepost/pkg/instagram"
	"igrepost/pkg/instagram/igtest"
	"igrepost/pkg/logger"
	"igrepost/pkg/ratelimit"
	"igrepost/pkg/retry"
)

func newClient(t *testing.T, srv *igtest.Server, opts ...instagram.Option) *instagram.Client {
	t.Helper()
	base := []instagram.Option{
		instagram.WithBaseURL(srv.URL),
		instagram.WithUploadURL(srv.URL),
		instagram.WithRetry(&retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		}),
		instagram.WithUploadSettings(instagram.UploadSettings{
			ProcessingPoll:    time.Millisecond,
			ProcessingTimeout: time.Second,
			ShareToFeed:       true,
		}),
	}
	return instagram.NewClient(srv.Session(), 5*time.Second, logger.NewTestLogger(), append(base, opts...)...)
}

func TestCurrentUser(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()

	user, err := newClient(t, srv).CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "reposter", user.Username)
}

func TestCurrentUserSessionErrors(t *testing.T) {
	tests := []struct {
		state string
		want  errs.ErrorType
	}{
		{"login_required", errs.ErrorTypeAuth},
		{"challenge_required", errs.ErrorTypeChallenge},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			srv := igtest.New()
			defer srv.Close()
			srv.ExpireSession(tt.state)

			_, err := newClient(t, srv).CurrentUser(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))
			assert.Equal(t, 1, srv.Requests(instagram.CurrentUserEndpoint), "session errors are not retried")
		})
	}
}

func TestWrongSessionCookie(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()

	client := instagram.NewClient(instagram.Session{SessionID: "stale"}, time.Second, logger.NewTestLogger(),
		instagram.WithBaseURL(srv.URL))
	_, err := client.CurrentUser(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
}

func TestFetchInbox(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.AddThread(instagram.Thread{
		ThreadID: "t1",
		Users:    []instagram.ThreadUser{{Username: "alice"}},
		Items: []instagram.Item{
			{ItemID: "m1", ItemType: instagram.ItemTypeText, Text: "hi"},
		},
	})

	inbox, err := newClient(t, srv).FetchInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, inbox.Inbox.Threads, 1)
	assert.True(t, inbox.Inbox.Threads[0].HasUser("Alice"))
	assert.Equal(t, "m1", inbox.Inbox.Threads[0].Items[0].ItemID)
}

func TestFetchInboxRetriesServerErrors(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.Fail(instagram.InboxEndpoint, http.StatusBadGateway, "bad gateway")

	_, err := newClient(t, srv).FetchInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Requests(instagram.InboxEndpoint))
}

func TestFetchInboxRateLimited(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	for i := 0; i < 3; i++ {
		srv.Fail(instagram.InboxEndpoint, http.StatusTooManyRequests, "Please wait a few minutes")
	}

	_, err := newClient(t, srv).FetchInbox(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeRateLimit))
	assert.Equal(t, 3, srv.Requests(instagram.InboxEndpoint))
}

func TestLimiterIsConsulted(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()

	limiter := ratelimit.NewTokenBucket(1, time.Hour)
	client := newClient(t, srv, instagram.WithLimiter(limiter))

	_, err := client.FetchInbox(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.FetchInbox(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveReel(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.AddReel("ABC", "111", "creator", "  nice clip ", []byte("video"))

	info, err := newClient(t, srv).ResolveReel(context.Background(), instagram.Reel{Shortcode: "ABC", MediaID: "111"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", info.Shortcode)
	assert.Equal(t, "creator", info.Creator)
	assert.Equal(t, "  nice clip ", info.Caption)
	assert.True(t, strings.HasSuffix(info.VideoURL, "/videos/ABC.mp4"))
}

func TestResolveReelFallsBackToMediaID(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	m := srv.AddReel("ABC", "111", "creator", "", []byte("video"))
	srv.SetMedia("111", m)
	srv.Fail("/api/v1/media/ABC/info/", http.StatusNotFound, "Media not found")

	info, err := newClient(t, srv).ResolveReel(context.Background(), instagram.Reel{Shortcode: "ABC", MediaID: "111"})
	require.NoError(t, err)
	assert.Equal(t, "creator", info.Creator)
	assert.Equal(t, 1, srv.Requests("/api/v1/media/111/info/"))
}

func TestResolveReelNoVideo(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.SetMedia("PIC", instagram.Media{Code: "PIC", MediaType: instagram.MediaTypePhoto})

	_, err := newClient(t, srv).ResolveReel(context.Background(), instagram.Reel{Shortcode: "PIC"})
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestResolveReelWithoutReference(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()

	_, err := newClient(t, srv).ResolveReel(context.Background(), instagram.Reel{ItemID: "x"})
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestDownloadVideo(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	url := srv.AddVideo("clip.mp4", []byte("0123456789"))

	var buf bytes.Buffer
	n, err := newClient(t, srv).DownloadVideo(context.Background(), url, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
	assert.Equal(t, "0123456789", buf.String())
}

func TestDownloadVideoTooLarge(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	url := srv.AddVideo("big.mp4", bytes.Repeat([]byte("x"), 64))

	_, err := newClient(t, srv, instagram.WithMaxVideoSize(16)).DownloadVideo(context.Background(), url, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestDownloadVideoMissing(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()

	_, err := newClient(t, srv).DownloadVideo(context.Background(), srv.URL+"/videos/gone.mp4", &bytes.Buffer{})
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
}

func TestUploadReel(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.SetTranscoding(2)

	video := []byte("fake mp4 bytes")
	media, err := newClient(t, srv).UploadReel(context.Background(), bytes.NewReader(video), int64(len(video)), "caption text")
	require.NoError(t, err)
	assert.Equal(t, "POST1", media.Code)

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, video, uploads[0].Data)
	assert.True(t, strings.HasPrefix(uploads[0].EntityName, uploads[0].UploadID+"_0_"))

	published := srv.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "caption text", published[0].Caption)
	assert.Equal(t, uploads[0].UploadID, published[0].UploadID)
	assert.True(t, published[0].ToFeed)
	assert.Equal(t, 3, srv.Requests(instagram.ConfigureEndpoint))
}

func TestUploadReelTranscodeTimeout(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.SetTranscoding(1000)

	client := newClient(t, srv, instagram.WithUploadSettings(instagram.UploadSettings{
		ProcessingPoll:    5 * time.Millisecond,
		ProcessingTimeout: 30 * time.Millisecond,
	}))
	_, err := client.UploadReel(context.Background(), strings.NewReader("v"), 1, "c")
	require.Error(t, err)
	assert.Empty(t, srv.Published())
}

func TestUploadReelRejected(t *testing.T) {
	srv := igtest.New()
	defer srv.Close()
	srv.Fail(instagram.ConfigureEndpoint, http.StatusBadRequest, "Uploaded video is too short")

	_, err := newClient(t, srv).UploadReel(context.Background(), strings.NewReader("v"), 1, "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
