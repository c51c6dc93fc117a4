package tokencipher

import (
	"encoding/base64"
	"strings"
)

// Stored fields use URL-safe base64 without padding.
var fieldEncoding = base64.RawURLEncoding

func encodeField(b []byte) string {
	return fieldEncoding.EncodeToString(b)
}

func decodeField(s string) ([]byte, error) {
	return fieldEncoding.DecodeString(strings.TrimRight(s, "="))
}

// decodeLenientBase64 decodes key material the way permissive decoders
// do: both alphabets are accepted, unknown characters are skipped and
// decoding stops at the first '='. A trailing partial group yields as many
// whole bytes as it holds.
func decodeLenientBase64(s string) []byte {
	out := make([]byte, 0, len(s)*3/4)
	var acc uint32
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			break
		}
		v := base64Value(c)
		if v < 0 {
			continue
		}
		acc = acc<<6 | uint32(v)
		n++
		if n == 4 {
			out = append(out, byte(acc>>16), byte(acc>>8), byte(acc))
			acc, n = 0, 0
		}
	}
	switch n {
	case 2:
		out = append(out, byte(acc>>4))
	case 3:
		out = append(out, byte(acc>>10), byte(acc>>2))
	}
	return out
}

func base64Value(c byte) int {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 26
	case c >= '0' && c <= '9':
		return int(c-'0') + 52
	case c == '+' || c == '-':
		return 62
	case c == '/' || c == '_':
		return 63
	}
	return -1
}

// decodeLenientHex decodes hex pairs up to the first invalid pair.
func decodeLenientHex(s string) []byte {
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		hi, lo := fromHexChar(s[i]), fromHexChar(s[i+1])
		if hi < 0 || lo < 0 {
			break
		}
		out = append(out, byte(hi<<4|lo))
	}
	return out
}

func fromHexChar(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
