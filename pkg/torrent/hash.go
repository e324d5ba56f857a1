package torrent

import (
	"crypto/sha1"
	"encoding/hex"
)

const HashSize = sha1.Size

// Hash is a SHA-1 digest, used for the info hash and for every piece hash.
type Hash [HashSize]byte

// String returns the lowercase hex form, as shown in magnet links.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
