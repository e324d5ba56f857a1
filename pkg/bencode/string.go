package bencode

import (
	"encoding/hex"
	"io"
	"strconv"
	"unicode"
)

// String is a bencode byte string, it is not required to be valid UTF-8.
type String struct {
	val string
}

func NewString(val string) *String {
	return &String{val: val}
}

func (s *String) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, strconv.Itoa(len(s.val))+":"); err != nil {
		return err
	}
	_, err := io.WriteString(w, s.val)
	return err
}

func (s *String) Value() string {
	return s.val
}

func (s *String) Bytes() []byte {
	return []byte(s.val)
}

// String dumps binary values such as piece hashes as hex.
func (s *String) String() string {
	for i := 0; i < len(s.val); i++ {
		if s.val[i] > unicode.MaxASCII {
			return hex.Dump(s.Bytes())
		}
	}
	return s.val
}
