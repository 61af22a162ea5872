package slogx

import (
	"log/slog"
	"strings"
)

// MaskIdentity hides most of a phone number or email address so log lines
// can be correlated without recording the full identity.
//
//	+84901234567     -> +849*****567
//	student@mail.com -> st*****@mail.com
func MaskIdentity(s string) string {
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		local, host := s[:at], s[at:]
		keep := min(2, len(local))
		return local[:keep] + "*****" + host
	}

	if len(s) <= 7 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "*****" + s[len(s)-3:]
}

// Identity is a slog attribute holding a masked identity.
func Identity(s string) slog.Attr {
	return slog.String("identity", MaskIdentity(s))
}
