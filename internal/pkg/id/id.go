package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// proof and session ids readable in logs and usable as store keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
