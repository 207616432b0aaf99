package instagram

import (
	"context"
	"fmt"
)

// FetchInbox returns the most recent direct threads with their latest items
func (c *Client) FetchInbox(ctx context.Context) (*InboxResponse, error) {
	var resp InboxResponse
	if err := c.GetJSON(ctx, InboxURL(c.baseURL), &resp); err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}

	c.logger.DebugWithFields("fetched inbox", map[string]interface{}{
		"threads": len(resp.Inbox.Threads),
	})
	return &resp, nil
}

// ExtractReel returns the reel carried by a direct item. Shared posts count
// only when they are videos or clips; dedicated clip and felix shares always
// count, even when the payload lacks a shortcode.
func ExtractReel(item Item) (Reel, bool) {
	var media *Media

	switch item.ItemType {
	case ItemTypeMediaShare:
		if !item.MediaShare.IsReel() {
			return Reel{}, false
		}
		media = item.MediaShare
	case ItemTypeClip:
		if item.Clip == nil {
			return Reel{ItemID: item.ItemID}, true
		}
		media = item.Clip.Clip
		if media == nil {
			media = &item.Clip.Media
		}
	case ItemTypeFelixShare:
		if item.FelixShare == nil || item.FelixShare.Video == nil {
			return Reel{ItemID: item.ItemID}, true
		}
		media = item.FelixShare.Video
	default:
		return Reel{}, false
	}

	return Reel{
		ItemID:    item.ItemID,
		MediaID:   string(media.PK),
		Shortcode: media.Code,
		URL:       ReelURL(media.Code),
	}, true
}
