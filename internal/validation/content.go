package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	MaxHashtags      = 30
	MaxHashtagLength = 50
	maxWebsiteLength = 2048
)

// ValidateWebsite accepts an empty value or an absolute http(s) URL with a host.
func ValidateWebsite(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > maxWebsiteLength {
		return fmt.Errorf("website must not exceed %d characters", maxWebsiteLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("website must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("website must use http or https")
	}
	return nil
}

// SplitHashtags breaks free text such as "#oil #portrait, landscape" into raw tags.
func SplitHashtags(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
}

// IsHashtagText reports whether s is non-empty and made only of letters,
// digits, '_' and '-'.
func IsHashtagText(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// NormalizeHashtags lowercases tags, strips leading '#', drops empties and
// duplicates while keeping first-seen order.
func NormalizeHashtags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		for _, tag := range SplitHashtags(item) {
			tag = strings.ToLower(strings.TrimLeft(tag, "#"))
			if tag == "" {
				continue
			}
			if len([]rune(tag)) > MaxHashtagLength {
				return nil, fmt.Errorf("hashtag %q exceeds %d characters", tag, MaxHashtagLength)
			}
			if !IsHashtagText(tag) {
				return nil, fmt.Errorf("hashtag %q may only contain letters, digits, '_' and '-'", tag)
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	if len(out) > MaxHashtags {
		return nil, fmt.Errorf("too many hashtags (max %d)", MaxHashtags)
	}
	return out, nil
}
