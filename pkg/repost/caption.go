package repost

import "strings"

// BuildCaption credits the creator below the original caption
func BuildCaption(original, creator string) string {
	var parts []string
	if trimmed := strings.TrimSpace(original); trimmed != "" {
		parts = append(parts, trimmed)
	}
	parts = append(parts, "\n📸 Credit: @"+creator)
	parts = append(parts, "🔄 Reposted via DM")
	return strings.Join(parts, "\n")
}
