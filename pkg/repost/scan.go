package repost

import (
	"igrepost/pkg/instagram"
	"igrepost/pkg/logger"
)

// FindNewReels returns unprocessed reels shared in threads that include
// allowedSender. Unprocessed items that are not reels are marked processed
// so they are not inspected again.
func FindNewReels(inbox *instagram.InboxResponse, allowedSender string, tracker Tracker, log logger.Logger) []instagram.Reel {
	if log == nil {
		log = logger.GetLogger()
	}
	if inbox == nil {
		return nil
	}

	var reels []instagram.Reel
	for _, thread := range inbox.Inbox.Threads {
		if !thread.HasUser(allowedSender) {
			continue
		}

		for _, item := range thread.Items {
			if item.ItemID == "" || tracker.IsProcessed(item.ItemID) {
				continue
			}

			reel, ok := instagram.ExtractReel(item)
			if !ok {
				if err := tracker.MarkProcessed(item.ItemID); err != nil {
					log.WithError(err).WarnWithFields("Failed to mark item processed", map[string]interface{}{
						"item_id": item.ItemID,
					})
				}
				continue
			}

			log.InfoWithFields("Found reel share", map[string]interface{}{
				"item_id":   reel.ItemID,
				"shortcode": reel.Shortcode,
				"thread_id": thread.ThreadID,
			})
			reels = append(reels, reel)
		}
	}
	return reels
}
