package cache

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies an ordered capability set within one scope.
//
// Each name is framed by its uvarint length, so two keys are equal iff their
// name sequences are equal element-wise and in the same order. Keys hold
// names, never capability values, so a key does not keep a capability
// reachable.
type Key string

// DeriveKey builds the key for the ordered names.
func DeriveKey(names []string) Key {
	size := 0
	for _, name := range names {
		size += len(name) + binary.MaxVarintLen16
	}

	buf := make([]byte, 0, size)
	for _, name := range names {
		buf = binary.AppendUvarint(buf, uint64(len(name)))
		buf = append(buf, name...)
	}
	return Key(buf)
}

// Names decodes the ordered names the key was derived from.
func (k Key) Names() []string {
	var names []string
	rest := []byte(k)
	for len(rest) > 0 {
		n, w := binary.Uvarint(rest)
		if w <= 0 || uint64(len(rest)-w) < n {
			// Not produced by DeriveKey.
			return names
		}
		names = append(names, string(rest[w:w+int(n)]))
		rest = rest[w+int(n):]
	}
	return names
}

// Len returns the number of names in the key without decoding them.
func (k Key) Len() int {
	n := 0
	for rest := k; len(rest) > 0; n++ {
		size, w := uvarintString(string(rest))
		if w <= 0 || uint64(len(rest)-w) < size {
			return n
		}
		rest = rest[w+int(size):]
	}
	return n
}

// uvarintString is binary.Uvarint over a string, so framing can be read
// without copying the key.
func uvarintString(s string) (uint64, int) {
	var x uint64
	var shift uint
	for i := 0; i < len(s) && i < binary.MaxVarintLen64; i++ {
		b := s[i]
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				return 0, -(i + 1)
			}
			return x | uint64(b)<<shift, i + 1
		}
		x |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}

// Fingerprint returns a 64-bit hash of the key for logs and span attributes.
// It is not used for equality.
func (k Key) Fingerprint() uint64 {
	return xxhash.Sum64String(string(k))
}

// String renders the key as a bracketed, comma separated name list.
func (k Key) String() string {
	return "[" + strings.Join(k.Names(), ", ") + "]"
}
