// Package encoding provides Crockford base32 helpers used for trace IDs and
// filesystem-safe storage names.
package encoding

import (
	"strings"
)

const crockfordAlphabetLC = "0123456789abcdefghjkmnpqrstvwxyz"

// EncodeCrockfordB32LC encodes input with Crockford's base32 alphabet in lowercase, without
// padding. Trailing bits are left-aligned into a final symbol.
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		accum uint32
		bits  uint
	)

	out.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		accum = accum<<8 | uint32(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			out.WriteByte(crockfordAlphabetLC[(accum>>bits)&0x1f])
		}

		accum &= 1<<bits - 1
	}

	if bits > 0 {
		out.WriteByte(crockfordAlphabetLC[(accum<<(5-bits))&0x1f])
	}

	return out.String()
}
