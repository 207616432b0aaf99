package instagram

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is an Instagram identifier that may arrive as a JSON number or string
type ID string

// UnmarshalJSON accepts both quoted and bare numeric ids
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Media type codes
const (
	MediaTypePhoto    = 1
	MediaTypeVideo    = 2
	MediaTypeCarousel = 8

	ProductTypeClips = "clips"
)

// Item types carried in direct threads
const (
	ItemTypeMediaShare = "media_share"
	ItemTypeClip       = "clip"
	ItemTypeFelixShare = "felix_share"
	ItemTypeText       = "text"
)

// InboxResponse is the top-level direct inbox payload
type InboxResponse struct {
	Inbox  Inbox  `json:"inbox"`
	Status string `json:"status"`
}

// Inbox holds the most recent threads
type Inbox struct {
	Threads []Thread `json:"threads"`
}

// Thread is one direct conversation
type Thread struct {
	ThreadID string       `json:"thread_id"`
	Users    []ThreadUser `json:"users"`
	Items    []Item       `json:"items"`
}

// ThreadUser is a participant other than the session user
type ThreadUser struct {
	PK       ID     `json:"pk"`
	Username string `json:"username"`
}

// HasUser reports whether username participates in the thread, ignoring
// case and a leading @.
func (t Thread) HasUser(username string) bool {
	want := NormalizeUsername(username)
	if want == "" {
		return false
	}
	for _, u := range t.Users {
		if NormalizeUsername(u.Username) == want {
			return true
		}
	}
	return false
}

// Item is a single direct message
type Item struct {
	ItemID     string      `json:"item_id"`
	ItemType   string      `json:"item_type"`
	UserID     ID          `json:"user_id"`
	Timestamp  ID          `json:"timestamp"`
	Text       string      `json:"text,omitempty"`
	MediaShare *Media      `json:"media_share,omitempty"`
	Clip       *ClipShare  `json:"clip,omitempty"`
	FelixShare *FelixShare `json:"felix_share,omitempty"`
}

// ClipShare wraps a shared reel. Newer payloads nest the media under
// "clip", older ones inline it.
type ClipShare struct {
	Media
	Clip *Media `json:"clip,omitempty"`
}

// FelixShare wraps a shared IGTV style video
type FelixShare struct {
	Video *Media `json:"video,omitempty"`
}

// Media is a post or reel as returned by the web API
type Media struct {
	PK            ID             `json:"pk"`
	ID            string         `json:"id,omitempty"`
	Code          string         `json:"code"`
	MediaType     int            `json:"media_type"`
	ProductType   string         `json:"product_type,omitempty"`
	User          *MediaUser     `json:"user,omitempty"`
	Caption       *Caption       `json:"caption,omitempty"`
	VideoVersions []VideoVersion `json:"video_versions,omitempty"`
}

// MediaUser is the author of a media item
type MediaUser struct {
	PK       ID     `json:"pk"`
	Username string `json:"username"`
}

// Caption is a media caption
type Caption struct {
	Text string `json:"text"`
}

// VideoVersion is one encoding of a video
type VideoVersion struct {
	Type   int    `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// IsReel reports whether a shared media item is a video or a clip
func (m *Media) IsReel() bool {
	return m != nil && (m.MediaType == MediaTypeVideo || m.ProductType == ProductTypeClips)
}

// MediaInfoResponse is the payload of the media info endpoint
type MediaInfoResponse struct {
	Items  []Media `json:"items"`
	Status string  `json:"status"`
}

// MediaInfo is the subset of media info needed to repost a reel
type MediaInfo struct {
	Shortcode string
	Creator   string
	Caption   string
	VideoURL  string
}

// BestVideoURL returns the first listed video version, which Instagram
// orders highest quality first.
func (r *MediaInfoResponse) BestVideoURL() string {
	if len(r.Items) == 0 || len(r.Items[0].VideoVersions) == 0 {
		return ""
	}
	return r.Items[0].VideoVersions[0].URL
}

// CreatorUsername returns the author of the first item, or "unknown"
func (r *MediaInfoResponse) CreatorUsername() string {
	if len(r.Items) == 0 || r.Items[0].User == nil || strings.TrimSpace(r.Items[0].User.Username) == "" {
		return "unknown"
	}
	return r.Items[0].User.Username
}

// CaptionText returns the caption of the first item, or ""
func (r *MediaInfoResponse) CaptionText() string {
	if len(r.Items) == 0 || r.Items[0].Caption == nil {
		return ""
	}
	return r.Items[0].Caption.Text
}

// CurrentUserResponse is the payload of the session check
type CurrentUserResponse struct {
	User   MediaUser `json:"user"`
	Status string    `json:"status"`
}

// apiStatus is the error envelope Instagram uses on failures
type apiStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// ConfigureResponse is the payload of configure_to_clips
type ConfigureResponse struct {
	Media   *Media `json:"media,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Reel identifies a reel shared in a direct thread
type Reel struct {
	ItemID    string
	MediaID   string
	Shortcode string
	URL       string
}
