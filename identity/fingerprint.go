package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var leadingDigitsRegex = regexp.MustCompile(`^[cC]?(\d+)`)

// RequestFingerprint builds a deterministic cache key for a logical request.
// Parameters are sorted by name before hashing so call-site ordering never
// changes the key.
func RequestFingerprint(namespace string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]any, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]any{name, params[name]})
	}

	serialized, err := json.Marshal(pairs)
	if err != nil {
		// Unencodable values still need a stable key.
		serialized = []byte(fmt.Sprintf("%v", pairs))
	}
	digest := sha1.Sum(serialized)
	return namespace + ":" + hex.EncodeToString(digest[:])
}

// CategoryFromDetailURL parses the category id from a listing link such as
// /s-anzeige/helle-wohnung/2876543210-203-9245. The id is the second
// hyphen-delimited token of the last path segment; "" means the link carries
// no category.
func CategoryFromDetailURL(link string) string {
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}

	var last string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			last = segment
		}
	}

	parts := strings.Split(last, "-")
	if len(parts) < 2 {
		return ""
	}
	return NormalizeCategoryID(parts[1])
}

// NormalizeCategoryID reduces tokens like "c203", "203" or "c203l9245" to
// the bare numeric id "203". Tokens without digits are returned lowercased.
func NormalizeCategoryID(token string) string {
	token = strings.TrimSpace(token)
	if m := leadingDigitsRegex.FindStringSubmatch(token); m != nil {
		return m[1]
	}
	return strings.ToLower(token)
}
