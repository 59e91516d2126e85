package utils

import (
	"regexp"
	"strings"
)

var otpToken = regexp.MustCompile(`^\d{4,}$`)

// ExtractCode returns the first whitespace-separated token of at least four digits in sms,
// or "" when there is none.
func ExtractCode(sms string) string {
	for _, token := range strings.Fields(sms) {
		token = strings.Trim(token, ".,:;!?()[]\"'")
		if otpToken.MatchString(token) {
			return token
		}
	}
	return ""
}
