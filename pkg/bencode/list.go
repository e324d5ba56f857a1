package bencode

import (
	"fmt"
	"io"
	"strings"
)

type List struct {
	val []BenType
}

func NewList(val []BenType) *List {
	return &List{val: val}
}

func (l *List) Encode(w io.Writer) error {
	_, err := w.Write([]byte("l"))
	if err != nil {
		return err
	}
	for _, benType := range l.val {
		if err = benType.Encode(w); err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("e"))
	return err
}

func (l *List) Add(item BenType) {
	l.val = append(l.val, item)
}

func (l *List) Value() []BenType {
	return l.val
}

func (l *List) String() string {
	var sb strings.Builder
	for _, benType := range l.val {
		sb.WriteString(fmt.Sprintf("\t%s\n", benType))
	}
	return sb.String()
}
