package repost

import "testing"

func TestBuildCaption(t *testing.T) {
	tests := []struct {
		name     string
		original string
		creator  string
		want     string
	}{
		{
			name:     "with caption",
			original: "  Sunset vibes  ",
			creator:  "photog",
			want:     "Sunset vibes\n\n📸 Credit: @photog\n🔄 Reposted via DM",
		},
		{
			name:    "empty caption",
			creator: "photog",
			want:    "\n📸 Credit: @photog\n🔄 Reposted via DM",
		},
		{
			name:     "whitespace caption",
			original: " \n\t ",
			creator:  "unknown",
			want:     "\n📸 Credit: @unknown\n🔄 Reposted via DM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildCaption(tt.original, tt.creator); got != tt.want {
				t.Errorf("BuildCaption() = %q, want %q", got, tt.want)
			}
		})
	}
}
