package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SyntheticPrefix marks transaction ids generated for rows that had none.
const SyntheticPrefix = "generated_"

// Synthesize returns a transaction id like "generated_1704462300000_01hkz3m8wq4ve9p2".
// The suffix is the random part of a monotonic ULID, so ids minted in the
// same millisecond by this process still differ.
func Synthesize(now time.Time) string {
	u := ulid.MustNew(ulid.Timestamp(now), entropy)
	random := strings.ToLower(u.String()[10:])
	return fmt.Sprintf("%s%d_%s", SyntheticPrefix, now.UnixMilli(), random)
}

// IsSynthesized reports whether txID was produced by Synthesize.
func IsSynthesized(txID string) bool {
	return strings.HasPrefix(txID, SyntheticPrefix)
}

// New returns a random record id.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed record id.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
