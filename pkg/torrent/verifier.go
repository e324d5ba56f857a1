package torrent

import "crypto/sha1"

// CheckPiece reports whether data hashes to the declared digest of piece index.
// An index without a declared digest never matches.
func (f *File) CheckPiece(index int, data []byte) bool {
	if index < 0 || index >= len(f.PieceHashes) {
		return false
	}
	return sha1.Sum(data) == f.PieceHashes[index]
}
