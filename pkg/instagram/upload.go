package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	errs "igrepost/pkg/errors"
	"igrepost/pkg/retry"
)

// UploadSettings controls reel publishing
type UploadSettings struct {
	// ProcessingPoll is the wait between configure attempts while the
	// video is still transcoding
	ProcessingPoll time.Duration
	// ProcessingTimeout bounds the whole transcode wait
	ProcessingTimeout time.Duration
	ShareToFeed       bool
}

// DefaultUploadSettings returns the settings used when none are configured
func DefaultUploadSettings() UploadSettings {
	return UploadSettings{
		ProcessingPoll:    5 * time.Second,
		ProcessingTimeout: 3 * time.Minute,
		ShareToFeed:       true,
	}
}

// WithUploadSettings overrides the reel publishing settings
func WithUploadSettings(s UploadSettings) Option {
	return func(c *Client) { c.upload = s }
}

type ruploadParams struct {
	RetryContext    string `json:"retry_context"`
	MediaType       string `json:"media_type"`
	UploadID        string `json:"upload_id"`
	XSharingUserIDs string `json:"xsharing_user_ids"`
	IsClipsVideo    string `json:"is_clips_video"`
}

// UploadReel uploads size bytes of video from r and publishes them as a
// reel with caption. The upload happens in two steps: the raw bytes go to
// the rupload host, then configure_to_clips publishes them, answering 202
// until transcoding has finished.
func (c *Client) UploadReel(ctx context.Context, r io.Reader, size int64, caption string) (*Media, error) {
	uploadID := strconv.FormatInt(time.Now().UnixMilli(), 10)
	waterfallID := uuid.NewString()
	entityName := fmt.Sprintf("%s_0_%s", uploadID, strings.ReplaceAll(waterfallID, "-", "")[:10])

	if err := c.uploadVideo(ctx, r, size, uploadID, entityName, waterfallID); err != nil {
		return nil, err
	}
	return c.configureClip(ctx, uploadID, caption)
}

func (c *Client) uploadVideo(ctx context.Context, r io.Reader, size int64, uploadID, entityName, waterfallID string) error {
	params, err := json.Marshal(ruploadParams{
		RetryContext:    `{"num_step_auto_retry":0,"num_reupload":0,"num_step_manual_retry":0}`,
		MediaType:       strconv.Itoa(MediaTypeVideo),
		UploadID:        uploadID,
		XSharingUserIDs: "[]",
		IsClipsVideo:    "1",
	})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "encode upload params")
	}

	rawURL := RuploadURL(c.uploadURL, entityName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, r)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Instagram-Rupload-Params", string(params))
	req.Header.Set("X-Entity-Name", entityName)
	req.Header.Set("X-Entity-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Entity-Type", "video/mp4")
	req.Header.Set("X_FB_VIDEO_WATERFALL_ID", waterfallID)
	req.Header.Set("Offset", "0")

	c.logger.InfoWithFields("uploading video", map[string]interface{}{
		"upload_id": uploadID,
		"bytes":     size,
	})

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return err
	}
	if err := c.checkResponseStatus(resp, body); err != nil {
		return fmt.Errorf("upload video: %w", err)
	}

	var status apiStatus
	if err := c.decode(rawURL, resp.StatusCode, body, &status); err != nil {
		return err
	}
	if status.Status != "ok" {
		return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "upload rejected: "+status.Message)
	}
	return nil
}

func (c *Client) configureClip(ctx context.Context, uploadID, caption string) (*Media, error) {
	settings := c.upload
	if settings.ProcessingPoll <= 0 {
		settings.ProcessingPoll = DefaultUploadSettings().ProcessingPoll
	}
	if settings.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.ProcessingTimeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("upload_id", uploadID)
	form.Set("caption", caption)
	form.Set("source_type", "library")
	form.Set("clips_share_preview_to_feed", boolFlag(settings.ShareToFeed))
	form.Set("disable_comments", "0")
	form.Set("like_and_view_counts_disabled", "0")

	rawURL := ConfigureURL(c.baseURL)
	for attempt := 1; ; attempt++ {
		status, body, err := c.postForm(ctx, rawURL, form)
		if err != nil {
			return nil, fmt.Errorf("configure reel: %w", err)
		}

		if status == http.StatusAccepted {
			c.logger.DebugWithFields("reel still transcoding", map[string]interface{}{
				"upload_id": uploadID,
				"attempt":   attempt,
			})
			if err := retry.Wait(ctx, settings.ProcessingPoll); err != nil {
				return nil, errs.Wrap(errs.ErrorTypeServerError, err, "timed out waiting for video processing")
			}
			continue
		}

		var resp ConfigureResponse
		if err := c.decode(rawURL, status, body, &resp); err != nil {
			return nil, err
		}
		if resp.Status != "ok" || resp.Media == nil {
			return nil, errs.New(errs.ErrorTypeServerError, status, "configure rejected: "+resp.Message)
		}

		c.logger.InfoWithFields("reel published", map[string]interface{}{
			"upload_id": uploadID,
			"code":      resp.Media.Code,
		})
		return resp.Media, nil
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
