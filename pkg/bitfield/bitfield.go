package bitfield

import (
	"fmt"
	"sync"
)

const bits = 8

// Bitfield is a piece bitset, the high bit of the first byte is piece 0.
type Bitfield struct {
	piecesCount int
	lock        sync.RWMutex
	bitfield    []byte
}

func New(piecesCount int) *Bitfield {
	bitfieldSize := piecesCount / bits
	if piecesCount%bits != 0 {
		bitfieldSize++
	}
	return &Bitfield{
		piecesCount: piecesCount,
		bitfield:    make([]byte, bitfieldSize),
	}
}

func (bf *Bitfield) PiecesCount() int {
	return bf.piecesCount
}

// Count returns the number of set pieces.
func (bf *Bitfield) Count() int {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	total := 0
	for _, b := range bf.bitfield {
		total += bf.countSetBits(b)
	}
	return total
}

func (bf *Bitfield) Set(pieceIndex int) error {
	bf.lock.Lock()
	defer bf.lock.Unlock()
	return bf.set(pieceIndex)
}

// SetRange sets pieces [from, to), clamped to the pieces count.
func (bf *Bitfield) SetRange(from, to int) {
	bf.lock.Lock()
	defer bf.lock.Unlock()
	if from < 0 {
		from = 0
	}
	if to > bf.piecesCount {
		to = bf.piecesCount
	}
	for i := from; i < to; i++ {
		_ = bf.set(i)
	}
}

func (bf *Bitfield) Has(pieceIndex int) bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	return bf.has(pieceIndex)
}

// HasAny reports whether any piece in [from, to) is set, out of range pieces are never set.
func (bf *Bitfield) HasAny(from, to int) bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	if from < 0 {
		from = 0
	}
	if to > bf.piecesCount {
		to = bf.piecesCount
	}
	for i := from; i < to; i++ {
		if bf.has(i) {
			return true
		}
	}
	return false
}

func (bf *Bitfield) set(pieceIndex int) error {
	if pieceIndex < 0 || pieceIndex >= bf.piecesCount {
		return fmt.Errorf("pieceIndex is out of range [0, %d)", bf.piecesCount)
	}
	byteIndex := pieceIndex / bits
	bitIndex := pieceIndex % bits
	bf.bitfield[byteIndex] |= 1 << (7 - bitIndex)
	return nil
}

func (bf *Bitfield) has(pieceIndex int) bool {
	if pieceIndex < 0 || pieceIndex > bf.piecesCount-1 {
		panic("pieceIndex out of range")
	}
	byteIndex := pieceIndex / bits
	bitIndex := pieceIndex % bits
	mask := byte(1 << (7 - bitIndex))
	return (bf.bitfield[byteIndex] & mask) != 0
}

func (*Bitfield) countSetBits(b byte) int {
	count := 0
	for b != 0 {
		count += int(b & 1)
		b >>= 1
	}
	return count
}
