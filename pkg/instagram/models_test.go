package instagram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":3141592653589793238,"b":"42","c":null}`), &v))
	assert.Equal(t, ID("3141592653589793238"), v.A)
	assert.Equal(t, ID("42"), v.B)
	assert.Equal(t, ID(""), v.C)
}

func TestExtractReel(t *testing.T) {
	tests := []struct {
		name   string
		item   string
		want   Reel
		isReel bool
	}{
		{
			name:   "media share video",
			item:   `{"item_id":"i1","item_type":"media_share","media_share":{"pk":11,"code":"ABC","media_type":2}}`,
			want:   Reel{ItemID: "i1", MediaID: "11", Shortcode: "ABC", URL: "https://www.instagram.com/reel/ABC/"},
			isReel: true,
		},
		{
			name:   "media share clips product",
			item:   `{"item_id":"i2","item_type":"media_share","media_share":{"pk":"12","code":"DEF","media_type":8,"product_type":"clips"}}`,
			want:   Reel{ItemID: "i2", MediaID: "12", Shortcode: "DEF", URL: "https://www.instagram.com/reel/DEF/"},
			isReel: true,
		},
		{
			name: "media share photo",
			item: `{"item_id":"i3","item_type":"media_share","media_share":{"pk":13,"code":"GHI","media_type":1}}`,
		},
		{
			name: "media share missing",
			item: `{"item_id":"i4","item_type":"media_share"}`,
		},
		{
			name:   "nested clip",
			item:   `{"item_id":"i5","item_type":"clip","clip":{"clip":{"pk":15,"code":"JKL"}}}`,
			want:   Reel{ItemID: "i5", MediaID: "15", Shortcode: "JKL", URL: "https://www.instagram.com/reel/JKL/"},
			isReel: true,
		},
		{
			name:   "flat clip",
			item:   `{"item_id":"i6","item_type":"clip","clip":{"pk":16,"code":"MNO"}}`,
			want:   Reel{ItemID: "i6", MediaID: "16", Shortcode: "MNO", URL: "https://www.instagram.com/reel/MNO/"},
			isReel: true,
		},
		{
			name:   "felix share",
			item:   `{"item_id":"i7","item_type":"felix_share","felix_share":{"video":{"pk":17,"code":"PQR"}}}`,
			want:   Reel{ItemID: "i7", MediaID: "17", Shortcode: "PQR", URL: "https://www.instagram.com/reel/PQR/"},
			isReel: true,
		},
		{
			name:   "felix share without video",
			item:   `{"item_id":"i8","item_type":"felix_share","felix_share":{}}`,
			want:   Reel{ItemID: "i8"},
			isReel: true,
		},
		{
			name: "text",
			item: `{"item_id":"i9","item_type":"text","text":"hi"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item Item
			require.NoError(t, json.Unmarshal([]byte(tt.item), &item))

			got, ok := ExtractReel(item)
			assert.Equal(t, tt.isReel, ok)
			if tt.isReel {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestThreadHasUser(t *testing.T) {
	thread := Thread{Users: []ThreadUser{{Username: "Alice"}, {Username: "bob"}}}

	assert.True(t, thread.HasUser("alice"))
	assert.True(t, thread.HasUser("@ALICE"))
	assert.True(t, thread.HasUser(" bob "))
	assert.False(t, thread.HasUser("carol"))
	assert.False(t, thread.HasUser(""))
}

func TestMediaInfoHelpers(t *testing.T) {
	var resp MediaInfoResponse
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"user":{"username":"creator"},"caption":{"text":"hello"},
		"video_versions":[{"url":"https://cdn/best.mp4"},{"url":"https://cdn/low.mp4"}]}]}`), &resp))

	assert.Equal(t, "https://cdn/best.mp4", resp.BestVideoURL())
	assert.Equal(t, "creator", resp.CreatorUsername())
	assert.Equal(t, "hello", resp.CaptionText())

	var bare MediaInfoResponse
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"caption":null}]}`), &bare))
	assert.Empty(t, bare.BestVideoURL())
	assert.Equal(t, "unknown", bare.CreatorUsername())
	assert.Empty(t, bare.CaptionText())
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t,
		"https://www.instagram.com/api/v1/direct_v2/inbox/?folder=&limit=20&persistentBadging=true&thread_message_limit=10",
		InboxURL(BaseURL))
	assert.Equal(t, "https://www.instagram.com/api/v1/media/ABC/info/", MediaInfoURL(BaseURL, "ABC"))
	assert.Equal(t, "https://www.instagram.com/api/v1/accounts/current_user/?edit=true", CurrentUserURL(BaseURL))
	assert.Equal(t, "https://i.instagram.com/rupload_igvideo/1_0_abc", RuploadURL(UploadURL, "1_0_abc"))
	assert.Empty(t, ReelURL(""))
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("some.user_1"))
	assert.False(t, IsValidUsername(""))
	assert.False(t, IsValidUsername("has space"))
	assert.False(t, IsValidUsername("abcdefghijklmnopqrstuvwxyz12345"))
}
