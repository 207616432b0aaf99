package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for the Instagram web API
	BaseURL = "https://www.instagram.com"

	// UploadURL is the host serving resumable video uploads
	UploadURL = "https://i.instagram.com"

	// DefaultAppID is the web client application id sent as X-IG-App-ID
	DefaultAppID = "936619743392459"

	CurrentUserEndpoint = "/api/v1/accounts/current_user/"
	InboxEndpoint       = "/api/v1/direct_v2/inbox/"
	MediaInfoEndpoint   = "/api/v1/media/%s/info/"
	RuploadEndpoint     = "/rupload_igvideo/%s"
	ConfigureEndpoint   = "/api/v1/media/configure_to_clips/"

	// InboxLimit is the number of threads requested per inbox fetch
	InboxLimit = 20

	// ThreadMessageLimit is the number of recent items requested per thread
	ThreadMessageLimit = 10
)

// CurrentUserURL builds the session check URL
func CurrentUserURL(base string) string {
	return base + CurrentUserEndpoint + "?edit=true"
}

// InboxURL builds the direct inbox URL
func InboxURL(base string) string {
	params := url.Values{}
	params.Set("persistentBadging", "true")
	params.Set("folder", "")
	params.Set("limit", fmt.Sprint(InboxLimit))
	params.Set("thread_message_limit", fmt.Sprint(ThreadMessageLimit))
	return base + InboxEndpoint + "?" + params.Encode()
}

// MediaInfoURL builds the media info URL for a shortcode or media id
func MediaInfoURL(base, idOrShortcode string) string {
	return base + fmt.Sprintf(MediaInfoEndpoint, url.PathEscape(idOrShortcode))
}

// RuploadURL builds the resumable upload URL for an entity name
func RuploadURL(base, entityName string) string {
	return base + fmt.Sprintf(RuploadEndpoint, url.PathEscape(entityName))
}

// ConfigureURL builds the reel configure URL
func ConfigureURL(base string) string {
	return base + ConfigureEndpoint
}

// ReelURL returns the public link for a reel shortcode
func ReelURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/reel/%s/", BaseURL, shortcode)
}

// NormalizeUsername strips a leading @ and surrounding whitespace and lowercases
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}
	return true
}
