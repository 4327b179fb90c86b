package shortener

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxURLLength bounds accepted long URLs.
const MaxURLLength = 2048

var validate = validator.New()

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &InvalidURLError{URL: rawURL, Reason: "url is empty"}
	}

	if len(rawURL) > MaxURLLength {
		return &InvalidURLError{URL: rawURL, Reason: "url is too long"}
	}

	if err := validate.Var(rawURL, "http_url"); err != nil {
		return &InvalidURLError{URL: rawURL, Reason: "not an absolute http(s) url"}
	}

	return nil
}

// NormalizeURL validates rawURL and returns the form used to detect equal URLs.
// - Lowercases the scheme and host
// - Removes default ports (80 for http, 443 for https)
// Path, query and fragment are kept verbatim.
func NormalizeURL(rawURL string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &InvalidURLError{URL: rawURL, Reason: err.Error()}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	return u.String(), nil
}

// HashURL computes the hex-encoded SHA256 of a normalized URL.
func HashURL(normalizedURL string) URLHash {
	h := sha256.Sum256([]byte(normalizedURL))

	return URLHash(hex.EncodeToString(h[:]))
}
