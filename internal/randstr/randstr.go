// Package randstr generates short random alphanumeric nonces, used by
// RANDOMKEY to mint a fresh key name. No pack or ecosystem library offers a
// nanoid-style generator, so this draws directly from crypto/rand.
package randstr

import "crypto/rand"

const alphaNumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Nonce25 returns a 25-character random alphanumeric string.
func Nonce25() string {
	return Nonce(25)
}

// Nonce returns an n-character random alphanumeric string.
func Nonce(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphaNumeric[int(b)%len(alphaNumeric)]
	}
	return string(out)
}
