package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"

	errs "igrepost/pkg/errors"
)

// FetchMediaInfo looks up a media item by shortcode or numeric media id
func (c *Client) FetchMediaInfo(ctx context.Context, idOrShortcode string) (*MediaInfoResponse, error) {
	if idOrShortcode == "" {
		return nil, errs.New(errs.ErrorTypeNotFound, 0, "empty media reference")
	}

	var resp MediaInfoResponse
	if err := c.GetJSON(ctx, MediaInfoURL(c.baseURL, idOrShortcode), &resp); err != nil {
		return nil, fmt.Errorf("fetch media info %s: %w", idOrShortcode, err)
	}
	if len(resp.Items) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusOK, "media info has no items")
	}
	return &resp, nil
}

// ResolveReel fetches media info for a reel, trying the shortcode first and
// the media id second, and returns what is needed to repost it.
func (c *Client) ResolveReel(ctx context.Context, reel Reel) (*MediaInfo, error) {
	var (
		resp *MediaInfoResponse
		err  error
	)
	if reel.Shortcode != "" {
		resp, err = c.FetchMediaInfo(ctx, reel.Shortcode)
	}
	if resp == nil && reel.MediaID != "" {
		if err != nil {
			c.logger.DebugWithFields("retrying media info by id", map[string]interface{}{
				"shortcode": reel.Shortcode,
				"media_id":  reel.MediaID,
				"error":     err.Error(),
			})
		}
		resp, err = c.FetchMediaInfo(ctx, reel.MediaID)
	}
	if resp == nil {
		if err == nil {
			err = errs.New(errs.ErrorTypeNotFound, 0, "reel has neither shortcode nor media id")
		}
		return nil, err
	}

	videoURL := resp.BestVideoURL()
	if videoURL == "" {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusOK, "no video versions in media info")
	}

	shortcode := reel.Shortcode
	if shortcode == "" {
		shortcode = resp.Items[0].Code
	}
	return &MediaInfo{
		Shortcode: shortcode,
		Creator:   resp.CreatorUsername(),
		Caption:   resp.CaptionText(),
		VideoURL:  videoURL,
	}, nil
}

// DownloadVideo streams the video at videoURL into w and returns the number
// of bytes written. Session cookies are not sent to the CDN.
func (c *Client) DownloadVideo(ctx context.Context, videoURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.session.UserAgent)

	c.logger.DebugWithFields("downloading video", map[string]interface{}{
		"url": req.URL.Redacted(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, err, "video download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errs.FromStatusCode(resp.StatusCode, "video download failed")
	}
	if c.maxVideo > 0 && resp.ContentLength > c.maxVideo {
		return 0, errs.New(errs.ErrorTypeParsing, resp.StatusCode,
			fmt.Sprintf("video is %d bytes, limit is %d", resp.ContentLength, c.maxVideo))
	}

	var src io.Reader = resp.Body
	if c.maxVideo > 0 {
		src = io.LimitReader(resp.Body, c.maxVideo+1)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, err, "video download interrupted")
	}
	if c.maxVideo > 0 && n > c.maxVideo {
		return n, errs.New(errs.ErrorTypeParsing, resp.StatusCode,
			fmt.Sprintf("video exceeds %d bytes", c.maxVideo))
	}

	c.logger.DebugWithFields("video downloaded", map[string]interface{}{
		"bytes": n,
	})
	return n, nil
}
