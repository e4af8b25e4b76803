package session

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKeys expands the configured secret into independent signing and
// encryption keys for the cookie codecs.
func DeriveKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	hashKey = make([]byte, 32)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("dancetime session signing")), hashKey); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("dancetime session encryption")), blockKey); err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}
