package audit

import "strings"

// Key prefixes of the sorted-set layout.
const (
	keyPrefixLog     = "audit:log:"
	keyPrefixOp      = "audit:op:"
	keyPrefixUser    = "audit:user:"
	keyPrefixSession = "audit:session:"
	keyPrefixVM      = "audit:vm:"
	keyPrefixResult  = "audit:result:"
)

// KeySegment escapes ':' in caller-supplied identifiers so a value such as
// "alice:2024-01-01" cannot address another user's partition.
func KeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// LogKey is the primary log partition for date.
func LogKey(date string) string {
	return keyPrefixLog + date
}

// OperationKey indexes entry IDs by operation for date.
func OperationKey(operation, date string) string {
	return keyPrefixOp + KeySegment(operation) + ":" + date
}

// UserKey indexes entry IDs by user for date.
func UserKey(userID, date string) string {
	return keyPrefixUser + KeySegment(userID) + ":" + date
}

// SessionKey indexes entry IDs by session. It has no date partition.
func SessionKey(sessionID string) string {
	return keyPrefixSession + KeySegment(sessionID)
}

// VMKey indexes entry IDs by producing node for date.
func VMKey(vmName, date string) string {
	return keyPrefixVM + KeySegment(vmName) + ":" + date
}

// ResultKey indexes entry IDs by result for date.
func ResultKey(result Result, date string) string {
	return keyPrefixResult + KeySegment(string(result)) + ":" + date
}
