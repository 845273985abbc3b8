package catalog

import "strings"

const maxTags = 5

// ExtractTags derives searchable tags from a prompt: lowercased words longer
// than three characters, first occurrence wins, capped at five.
func ExtractTags(prompt string) []string {
	fields := strings.Fields(strings.ToLower(prompt))
	seen := map[string]bool{}
	tags := make([]string, 0, maxTags)
	for _, word := range fields {
		word = strings.Trim(word, ".,!?;:'\"()[]")
		if len(word) <= 3 || seen[word] {
			continue
		}
		seen[word] = true
		tags = append(tags, word)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// JoinTags flattens tags into the stored comma-separated form.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags parses the stored form back into a slice.
func SplitTags(stored string) []string {
	if stored == "" {
		return nil
	}
	return strings.Split(stored, ",")
}
