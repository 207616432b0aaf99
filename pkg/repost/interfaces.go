package repost

import (
	"context"
	"io"
	"os"
	"time"

	"igrepost/pkg/instagram"
)

// InstagramClient defines the Instagram operations the bot needs
type InstagramClient interface {
	CurrentUser(ctx context.Context) (*instagram.MediaUser, error)
	FetchInbox(ctx context.Context) (*instagram.InboxResponse, error)
	ResolveReel(ctx context.Context, reel instagram.Reel) (*instagram.MediaInfo, error)
	DownloadVideo(ctx context.Context, videoURL string, w io.Writer) (int64, error)
	UploadReel(ctx context.Context, r io.Reader, size int64, caption string) (*instagram.Media, error)
}

// Tracker remembers handled direct message items
type Tracker interface {
	IsProcessed(id string) bool
	MarkProcessed(id string) error
}

// Storage stages videos between download and upload
type Storage interface {
	SaveVideo(shortcode string, write func(io.Writer) error) (string, error)
	Open(path string) (*os.File, int64, error)
	Remove(path string) error
	RemoveOlderThan(age time.Duration) (int, error)
	GetOutputDir() string
}

// Notifier tells the operator about finished reposts
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}
