package validation

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/conneroisu/contactform/internal/errors"
)

// ValidateURL checks an endpoint URL before anything is sent to it.
// Only absolute http/https URLs with a host are accepted; embedded
// credentials, whitespace and control characters are rejected.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "endpoint URL is empty", nil)
	}

	for _, r := range rawURL {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"endpoint URL contains whitespace or control characters", nil).
				WithContext("url", rawURL)
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid endpoint URL", err).
			WithContext("url", rawURL)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"invalid endpoint URL scheme "+strconv.Quote(parsed.Scheme)+" (only http/https allowed)", nil).
			WithContext("url", rawURL)
	}

	if parsed.Host == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "endpoint URL must have a host", nil).
			WithContext("url", rawURL)
	}

	if parsed.User != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "endpoint URL must not embed credentials", nil)
	}

	return nil
}
