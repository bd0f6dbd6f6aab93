package identity

import "strings"

// Identifier suffixes used by the messaging network.
const (
	PhoneSuffix = "@s.whatsapp.net"
	AnonSuffix  = "@lid"
)

// IsAnonymized reports whether jid is an anonymized contact identifier.
func IsAnonymized(jid string) bool {
	return strings.HasSuffix(jid, AnonSuffix)
}

// IsPhoneJID reports whether jid is a stable phone-based identifier.
func IsPhoneJID(jid string) bool {
	return strings.HasSuffix(jid, PhoneSuffix)
}

// PhoneFromJID extracts the bare number from a phone-style identifier.
func PhoneFromJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// JIDFromPhone reconstructs a phone-style identifier from a bare number.
func JIDFromPhone(phone string) string {
	return strings.ReplaceAll(phone, "+", "") + PhoneSuffix
}

// NormalizePhone collapses Mexican numbers to the 52XXXXXXXXXX form.
// The network sends either 521XXXXXXXXXX (13 digits, old mobile format)
// or 52XXXXXXXXXX (12 digits); the extra '1' is stripped so both map to
// one key.
func NormalizePhone(raw string) string {
	clean := strings.ReplaceAll(raw, "+", "")
	if strings.HasPrefix(clean, "521") && len(clean) == 13 {
		return "52" + clean[3:]
	}
	return clean
}

// BaseNumber extracts the 10-digit subscriber number. Handles
// +521XXXXXXXXXX, 521XXXXXXXXXX, 52XXXXXXXXXX and bare XXXXXXXXXX;
// anything else is returned cleaned but otherwise as-is.
func BaseNumber(raw string) string {
	clean := strings.ReplaceAll(raw, "+", "")
	switch {
	case strings.HasPrefix(clean, "521") && len(clean) == 13:
		return clean[3:]
	case strings.HasPrefix(clean, "52") && len(clean) == 12:
		return clean[2:]
	default:
		return clean
	}
}

// SamePhone reports whether two raw numbers refer to the same
// subscriber.
func SamePhone(a, b string) bool {
	return BaseNumber(a) == BaseNumber(b)
}
