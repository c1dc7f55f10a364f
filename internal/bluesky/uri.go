package bluesky

import (
	"fmt"
	"strings"
)

const postCollection = "app.bsky.feed.post"

// ParsePostURL converts a bsky.app web URL into an AT URI.
//
//	https://bsky.app/profile/<handle>/post/<rkey> -> at://<handle>/app.bsky.feed.post/<rkey>
//
// The handle segment may already be a DID; it is passed through untouched.
func ParsePostURL(url string) (string, error) {
	trimmed := strings.TrimPrefix(url, "https://bsky.app/profile/")
	trimmed = strings.TrimPrefix(trimmed, "http://bsky.app/profile/")
	if trimmed == url {
		if strings.HasPrefix(url, "at://") {
			return url, nil
		}
		return "", fmt.Errorf("not a bsky.app post URL: %q", url)
	}
	actor, rkey, ok := strings.Cut(trimmed, "/post/")
	if !ok || actor == "" || rkey == "" {
		return "", fmt.Errorf("not a bsky.app post URL: %q", url)
	}
	rkey = strings.TrimSuffix(rkey, "/")
	return fmt.Sprintf("at://%s/%s/%s", actor, postCollection, rkey), nil
}

// isDIDForm reports whether the AT URI authority is already a DID.
func isDIDForm(uri string) bool {
	return strings.HasPrefix(uri, "at://did:")
}

// splitATURI breaks at://<authority>/<rest> into its two halves.
func splitATURI(uri string) (authority, rest string, err error) {
	body := strings.TrimPrefix(uri, "at://")
	if body == uri {
		return "", "", fmt.Errorf("not an AT URI: %q", uri)
	}
	authority, rest, ok := strings.Cut(body, "/")
	if !ok || authority == "" {
		return "", "", fmt.Errorf("malformed AT URI: %q", uri)
	}
	return authority, rest, nil
}
