package models

import (
	"strings"

	"vdi-fleet/backend/app/apperr"
)

// NormalizeMAC canonicalizes a hardware address to lowercase, colon
// separated form (aa:bb:cc:dd:ee:ff). Accepts colon, dash or bare hex input.
func NormalizeMAC(mac string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(mac))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, ":", "")
	if len(s) != 12 {
		return "", apperr.InvalidInput("malformed hardware address %q", mac)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", apperr.InvalidInput("malformed hardware address %q", mac)
		}
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(s[i : i+2])
	}
	return b.String(), nil
}

// DeviceIDFromMAC derives the device id from a normalized MAC: the twelve
// hex digits with separators stripped.
func DeviceIDFromMAC(normalized string) string {
	return strings.ReplaceAll(normalized, ":", "")
}
