// Package obfuscate encodes numeric primary keys into route tokens so edit
// URLs do not expose raw sequential ids.
//
// The encoding is cosmetic. A token can be decoded by anyone and must never
// stand in for an authorization check; the backend authorizes every request
// independently of whether the id arrived obfuscated.
package obfuscate

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scheme is the salt pair wrapped around the hex id of one entity.
type Scheme struct {
	Prefix string
	Suffix string
}

// Encode returns base64("<prefix>_<hex(id)>_<suffix>") without padding.
// Tokens use the URL-safe alphabet so they survive as a single path segment.
func (s Scheme) Encode(id int64) string {
	raw := fmt.Sprintf("%s_%s_%s", s.Prefix, strconv.FormatInt(id, 16), s.Suffix)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode reverses Encode. It reports false for anything that is not a token
// of this scheme holding a positive id, and never panics.
func (s Scheme) Decode(token string) (int64, bool) {
	if s.Prefix == "" || s.Suffix == "" {
		return 0, false
	}
	raw, ok := decodeBase64(token)
	if !ok {
		return 0, false
	}
	hex, ok := s.unwrap(raw)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(hex, 16, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var hexID = regexp.MustCompile(`^[0-9a-fA-F]{1,16}$`)

// unwrap strips "<prefix>_" and "_<suffix>" and returns the hex id between them.
func (s Scheme) unwrap(raw string) (string, bool) {
	head, tail := s.Prefix+"_", "_"+s.Suffix
	if len(raw) <= len(head)+len(tail) || !strings.HasPrefix(raw, head) || !strings.HasSuffix(raw, tail) {
		return "", false
	}
	hex := raw[len(head) : len(raw)-len(tail)]
	if !hexID.MatchString(hex) {
		return "", false
	}
	return hex, true
}

// decodeBase64 accepts both alphabets, padded or not, so tokens minted by the
// old web client (standard alphabet, padding stripped) keep resolving.
func decodeBase64(token string) (string, bool) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return "", false
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(token); err == nil {
			return string(b), true
		}
	}
	return "", false
}
