package meeting

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet omits look-alike characters so codes survive being read aloud.
const codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// NewCode returns an opaque short identifier in the form xxx-xxxx-xxx.
func NewCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate meeting code: %w", err)
	}
	var b strings.Builder
	for i, c := range buf {
		if i == 3 || i == 7 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// JoinURL builds the join link for code under base.
func JoinURL(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + code
}
