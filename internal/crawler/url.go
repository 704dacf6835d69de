package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL appends params to rawURL, preserving any query already present.
func BuildURL(rawURL string, params url.Values) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// JoinPath appends a site-relative path such as a listing reference to base.
func JoinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
