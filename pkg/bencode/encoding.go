package bencode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxStringLength caps a single decoded string, piece lists of huge torrents stay far below it.
const maxStringLength = 1 << 28

var ErrMalformed = errors.New("bencode: malformed input")

type BenType interface {
	fmt.Stringer
	Encode(w io.Writer) error
}

func Encode(w io.Writer, data []BenType) error {
	for _, item := range data {
		err := item.Encode(w)
		if err != nil {
			return err
		}
	}
	return nil
}

func Decode(r io.Reader) (BenType, error) {
	return decode(bufio.NewReader(r))
}

func decode(reader *bufio.Reader) (BenType, error) {
	b, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case 'i':
		intBuf, err := reader.ReadBytes('e')
		if err != nil {
			return nil, err
		}
		intBuf = intBuf[:len(intBuf)-1]
		integerVal, err := strconv.ParseInt(string(intBuf), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer expected, got %q", ErrMalformed, intBuf)
		}
		return NewInteger(integerVal), nil
	case 'l':
		list := NewList([]BenType{})
		for {
			c, err := reader.ReadByte()
			if err != nil {
				return nil, err
			}
			if c == 'e' {
				return list, nil
			}
			_ = reader.UnreadByte()
			value, err := decode(reader)
			if err != nil {
				return nil, err
			}
			list.Add(value)
		}
	case 'd':
		dict := NewDictionary(map[String]BenType{})
		for {
			c, err := reader.ReadByte()
			if err != nil {
				return nil, err
			}
			if c == 'e' {
				return dict, nil
			}
			_ = reader.UnreadByte()
			value, err := decode(reader)
			if err != nil {
				return nil, err
			}
			key, ok := value.(*String)
			if !ok {
				return nil, fmt.Errorf("%w: non-string dictionary key", ErrMalformed)
			}
			value, err = decode(reader)
			if err != nil {
				return nil, err
			}
			dict.Add(*key, value)
		}
	default:
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("%w: unexpected byte %q", ErrMalformed, b)
		}
		_ = reader.UnreadByte()
		stringLengthBuffer, err := reader.ReadBytes(':')
		if err != nil {
			return nil, err
		}
		stringLengthBuffer = stringLengthBuffer[:len(stringLengthBuffer)-1]
		stringLength, err := strconv.ParseInt(string(stringLengthBuffer), 10, 64)
		if err != nil || stringLength < 0 || stringLength > maxStringLength {
			return nil, fmt.Errorf("%w: bad string length %q", ErrMalformed, stringLengthBuffer)
		}
		buf := make([]byte, stringLength)
		if _, err = io.ReadFull(reader, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated string: %v", ErrMalformed, err)
		}
		return NewString(string(buf)), nil
	}
}
