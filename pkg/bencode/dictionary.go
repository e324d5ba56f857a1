package bencode

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type Dictionary struct {
	val map[String]BenType
}

func NewDictionary(val map[String]BenType) *Dictionary {
	if val == nil {
		val = make(map[String]BenType)
	}
	return &Dictionary{val: val}
}

func (d *Dictionary) Encode(w io.Writer) error {
	_, err := w.Write([]byte("d"))
	if err != nil {
		return err
	}
	for _, key := range d.sortedKeys() {
		err = key.Encode(w)
		if err != nil {
			return err
		}
		err = d.val[key].Encode(w)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("e"))
	return err
}

func (d *Dictionary) Add(key String, value BenType) {
	d.val[key] = value
}

// Get returns nil when key is absent.
func (d *Dictionary) Get(key string) BenType {
	return d.val[String{val: key}]
}

func (d *Dictionary) Len() int {
	return len(d.val)
}

func (d *Dictionary) String() string {
	var sb strings.Builder
	for _, key := range d.sortedKeys() {
		sb.WriteString(fmt.Sprintf("%s: %s\n", key.String(), d.val[key]))
	}
	return sb.String()
}

func (d *Dictionary) sortedKeys() []String {
	keys := make([]String, 0, len(d.val))
	for key := range d.val {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].val < keys[j].val
	})
	return keys
}
