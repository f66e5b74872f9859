package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

func StringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

func IsValidImageName(s string) (bool, error) {
	if len(s) == 0 {
		return false, errors.New("name can not empty")
	}

	if len(s) > 255 {
		return false, errors.New("name to long, max 255 characters")
	}

	return true, nil
}

func IsValidUid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func IsValidBaseURL(s string) bool {
	return govalidator.IsRequestURL(s)
}

// SanitizeFilename strips path separators and control characters so a
// user supplied name can never reach the filesystem as a path.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	var builder strings.Builder
	for _, r := range name {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// BaseURLFromRequest derives the scheme://host pair the client used,
// honoring X-Forwarded-Proto when the service sits behind a proxy.
func BaseURLFromRequest(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
