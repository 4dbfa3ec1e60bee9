package mfsstore

import (
	"github.com/google/uuid"
)

// NewHash generates a time-ordered (UUIDv7) operation identity for logs that
// do not assign their own.
func NewHash() Hash {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Hash(id.String())
}

// IsUUIDHash reports whether h was produced by NewHash or another UUID source
func IsUUIDHash(h Hash) bool {
	_, err := uuid.Parse(string(h))
	return err == nil
}
