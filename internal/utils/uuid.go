package utils

import "github.com/google/uuid"

// IsUUID reports whether s is a canonical UUID, so malformed ids can be
// rejected before they reach the database.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
