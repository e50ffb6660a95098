package feed

import (
	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// NewIdentity hashes the NFC form of name together with the raw timestamp
// string. The timestamp is hashed as sent so that reformatting by the
// source yields a new identity.
func NewIdentity(name, rawTimestamp string) Identity {
	d := xxhash.New()
	_, _ = d.WriteString(norm.NFC.String(name))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(rawTimestamp)
	return Identity(d.Sum64())
}
