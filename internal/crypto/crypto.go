// Copyright 2026 The txtwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package crypto implements the on-device encryption adapter.  Every
// user-content field and media payload passes through a Coder before
// it crosses the network; the backend only ever sees ciphertext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize    = 32
	iterations = 10000
)

// HashPassword derives the login secret sent to the backend in place
// of the raw password.  Salt is the account's salt1 value.
func HashPassword(password string, salt []byte) string {
	h := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	return base64.StdEncoding.EncodeToString(h)
}

// DeriveKey derives the account encryption key from the account ID,
// the hashed password and the account's salt2 value.  The same
// inputs always yield the same key, so every device on the account
// derives an identical key without the key itself ever being sent.
func DeriveKey(accountID, passwordHash string, salt []byte) []byte {
	secret := []byte(accountID + ":" + passwordHash)
	return pbkdf2.Key(secret, salt, iterations, keySize, sha256.New)
}

// Coder encrypts and decrypts fields and blobs under one account
// key.  Safe for concurrent use.
type Coder struct {
	aead cipher.AEAD
}

// New returns a Coder for a 32 byte account key.
func New(key []byte) (*Coder, error) {
	if len(key) != keySize {
		return nil, errors.Errorf("invalid key length: got %d want %d", len(key), keySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}
	return &Coder{aead: aead}, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext.
func (c *Coder) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce||ciphertext buffer produced by Encrypt.
func (c *Coder) Decrypt(buf []byte) ([]byte, error) {
	if len(buf) < c.aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, ciphertext := buf[:c.aead.NonceSize()], buf[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt ciphertext")
	}
	return plaintext, nil
}

// EncryptString seals a string field for transport.  The empty
// string encrypts to the empty string so that absent optional fields
// stay absent on the wire.
func (c *Coder) EncryptString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	buf, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecryptString reverses EncryptString.
func (c *Coder) DecryptString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.Wrap(err, "decode field ciphertext")
	}
	plaintext, err := c.Decrypt(buf)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
