package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases an address. Unlike provider-specific
// canonicalization it keeps dots and plus tags, since contacts are matched
// on exactly what the sender entered.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(email)
}

func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	localPart := parts[0]
	domain := parts[1]

	if len(localPart) <= 2 {
		return email
	}

	maskedLocal := string(localPart[0]) + strings.Repeat("*", len(localPart)-2) + string(localPart[len(localPart)-1])

	return maskedLocal + "@" + domain
}

func CreateViewerLink(viewerURL, token string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(viewerURL, "/"), token)
}

func CreateContactVerificationLink(baseURL, token string) string {
	return fmt.Sprintf("%s/contacts/verify/%s", strings.TrimSuffix(baseURL, "/"), token)
}
