package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixID is a 6-byte identifier used for every document in the system.
// It is stored in MongoDB as BinData with custom subtype 0x80 and rendered
// to clients as 10 characters of Crockford Base32.
type SixID [6]byte

// NewSixID returns a random SixID.
func NewSixID() SixID {
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// a zero ID will collide and be retried by db.Try.
		for i := range id {
			id[i] = 0
		}
	}
	return id
}

// IsZero reports whether the ID is the zero value.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Crockford Base32 alphabet (uppercase, no I/L/O/U).
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 64)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}
	lower := strings.ToLower(crockfordAlphabet)
	for i := range lower {
		if i >= 10 {
			crockfordDecodeMap[lower[i]] = byte(i)
		}
	}
	// Commonly confused characters decode leniently.
	crockfordDecodeMap['o'] = crockfordDecodeMap['0']
	crockfordDecodeMap['O'] = crockfordDecodeMap['0']
	crockfordDecodeMap['i'] = crockfordDecodeMap['1']
	crockfordDecodeMap['I'] = crockfordDecodeMap['1']
	crockfordDecodeMap['l'] = crockfordDecodeMap['1']
	crockfordDecodeMap['L'] = crockfordDecodeMap['1']
}

// String returns the Crockford Base32 representation (10 characters).
func (u SixID) String() string {
	var result [10]byte
	var bits uint
	var offset uint
	idx := 0
	for i := 0; i < 6; i++ {
		bits |= uint(u[i]) << offset
		offset += 8
		for offset >= 5 {
			result[idx] = crockfordAlphabet[bits&0x1F]
			idx++
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		result[idx] = crockfordAlphabet[bits&0x1F]
		idx++
	}
	return string(result[:idx])
}

// ParseSixID decodes a Crockford Base32 string into a SixID.
// Hyphens and spaces are stripped for leniency.
func ParseSixID(s string) (SixID, error) {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: must be 10 Base32 characters")
	}

	var bits uint64
	var offset uint
	var out SixID
	byteIdx := 0
	for i := 0; i < 10; i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, errors.New("invalid character in SixID")
		}
		bits |= uint64(val) << offset
		offset += 5
		for offset >= 8 && byteIdx < 6 {
			out[byteIdx] = byte(bits & 0xFF)
			byteIdx++
			bits >>= 8
			offset -= 8
		}
	}
	if byteIdx != 6 {
		return SixID{}, errors.New("invalid SixID: could not decode 6 bytes")
	}
	return out, nil
}

// MarshalBSONValue stores the ID as BinData subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: 0x80, Data: u[:]})
}

// UnmarshalBSONValue restores the ID from BinData. Null decodes to the
// zero value so optional fields behave.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null:
		*u = SixID{}
		return nil
	case bsontype.Binary:
		_, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok {
			return errors.New("SixID: malformed BSON binary")
		}
		if len(bin) != 6 {
			return fmt.Errorf("SixID: expected 6 bytes, got %d", len(bin))
		}
		copy((*u)[:], bin)
		return nil
	default:
		return fmt.Errorf("SixID: cannot decode from BSON type %s", t)
	}
}

// MarshalJSON renders the ID as its Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the ID from its Base32 string.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*u = SixID{}
		return nil
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
