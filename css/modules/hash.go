package modules

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/segmentio/fasthash/fnv1a"
)

// hashAlphabet restricts generated tokens to characters valid in CSS
// identifiers.
const hashAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890_-"

var hashEncoding = base64.NewEncoding(hashAlphabet).WithPadding(base64.NoPadding)

// Hash derives a short deterministic token from seed. The 64-bit FNV-1a
// hash of the seed is truncated to 32 bits and encoded with hashAlphabet. A
// token that would start with a digit is prefixed with "_".
func Hash(seed string) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(fnv1a.HashString64(seed)))

	token := hashEncoding.EncodeToString(buf[:])
	if token[0] >= '0' && token[0] <= '9' {
		return "_" + token
	}
	return token
}
