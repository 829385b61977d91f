package wire

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 20-byte account or contract identifier.
//
// The zero value is the null identity. Operations never carry a null
// principal past the affected-set builder, but the decoder surfaces
// null addresses as-is so that filtering happens in exactly one place.
type Address [20]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the 0x-prefixed lowercase hex encoding.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Less orders addresses by byte comparison. Used for deterministic
// iteration in reports and tests.
func (a Address) Less(b Address) bool {
	return strings.Compare(string(a[:]), string(b[:])) < 0
}

// MarshalJSON encodes the address as its 0x-prefixed hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a 0x-prefixed hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a 0x-prefixed or bare 40-digit hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != 2*len(a) {
		return a, fmt.Errorf("address %q: want %d hex digits, got %d", s, 2*len(a), len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress parses a hex address, panicking on malformed input.
// For static tables and tests only.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Word is a 32-byte ABI word. Event topics and fixed calldata fields
// are words; addresses occupy the low 20 bytes of a word.
type Word [32]byte

// ZeroWord is the all-zero word.
var ZeroWord Word

// Address extracts the address from the low 20 bytes of the word.
// The high 12 bytes are ignored, matching ABI address decoding.
func (w Word) Address() Address {
	var a Address
	copy(a[:], w[12:])
	return a
}

// String returns the 0x-prefixed lowercase hex encoding.
func (w Word) String() string {
	return "0x" + hex.EncodeToString(w[:])
}

// Bytes returns the word as a fresh 32-byte slice.
func (w Word) Bytes() []byte {
	return w[:]
}

// AddressWord embeds an address into the low 20 bytes of a word.
func AddressWord(a Address) Word {
	var w Word
	copy(w[12:], a[:])
	return w
}

// Uint64Word encodes an unsigned integer as a big-endian word.
func Uint64Word(v uint64) Word {
	var w Word
	for i := 0; i < 8; i++ {
		w[31-i] = byte(v >> (8 * i))
	}
	return w
}

// Uint64 decodes the word as an unsigned integer.
// Returns false if the value does not fit in 64 bits; oversized
// offsets and lengths in adversarial payloads must not wrap around.
func (w Word) Uint64() (uint64, bool) {
	for _, b := range w[:24] {
		if b != 0 {
			return 0, false
		}
	}
	var v uint64
	for _, b := range w[24:] {
		v = v<<8 | uint64(b)
	}
	return v, true
}

// ParseWord parses a 0x-prefixed or bare 64-digit hex word.
func ParseWord(s string) (Word, error) {
	var w Word
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != 2*len(w) {
		return w, fmt.Errorf("word %q: want %d hex digits, got %d", s, 2*len(w), len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return w, fmt.Errorf("word %q: %w", s, err)
	}
	copy(w[:], b)
	return w, nil
}

// MustParseWord parses a hex word, panicking on malformed input.
// For static signature tables and tests only.
func MustParseWord(s string) Word {
	w, err := ParseWord(s)
	if err != nil {
		panic(err)
	}
	return w
}
