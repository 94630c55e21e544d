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

// Package media lays out the local archive of downloaded message
// attachments.  Files are spread across a two-level directory farm
// keyed by a fingerprint of the blob name, so a mailbox with tens of
// thousands of attachments never piles them into one directory.
package media

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	dirFileMode  = 0700
	blobFileMode = 0600

	pathFarm16 = "abcdefghijklmnop"
)

// Archive is the root of the local attachment store.
type Archive struct {
	root string
}

// New creates the directory farm under root if needed and returns
// the archive.
func New(root string) (*Archive, error) {
	if err := mkdirfarm(root, 2); err != nil {
		return nil, err
	}
	return &Archive{root: root}, nil
}

// Dest returns the path a blob should be written to.  The parent
// directories already exist.
func (a *Archive) Dest(accountID string, blobID int64) string {
	return a.makePath(accountID, blobID).join()
}

// Has reports whether a blob has already been downloaded, letting a
// resumed restore skip completed transfers.
func (a *Archive) Has(accountID string, blobID int64) bool {
	_, err := os.Stat(a.Dest(accountID, blobID))
	return err == nil
}

type path struct {
	root string
	dirs []string
	base string
}

func (p path) join() string {
	parts := make([]string, 1, len(p.dirs)+2)
	parts[0] = p.root
	parts = append(parts, p.dirs...)
	parts = append(parts, p.base)
	return filepath.Join(parts...)
}

// basename holds the fields encoded into the file name of archived
// blobs.
type basename struct {
	// The account the blob belongs to.  Blob IDs are only unique
	// within one account.
	accountID string

	// The message ID the blob is keyed by in the object store.
	blobID int64
}

// encode returns the basename in filename-safe form: a distinguisher
// and encoding version, the escaped account ID and the blob ID.
func (b basename) encode() string {
	var sb strings.Builder
	const prefix = "txtwire-1-"
	id := strconv.FormatInt(b.blobID, 10)
	sb.Grow(len(prefix) + len(b.accountID) + len(id) + 1)
	sb.WriteString(prefix)
	sb.WriteString(escape(b.accountID))
	sb.WriteRune('-')
	sb.WriteString(id)
	return sb.String()
}

// Return the specified string with characters that should not appear
// in a filename escaped.
func escape(s string) string {
	hexCount := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			hexCount++
		}
	}

	if hexCount == 0 {
		return s
	}

	t := make([]byte, len(s)+2*hexCount)
	j := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case shouldEscape(c):
			t[j] = '='
			t[j+1] = "0123456789ABCDEF"[c>>4]
			t[j+2] = "0123456789ABCDEF"[c&15]
			j += 3
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

// Return true if the specified character should be escaped when
// appearing in an archive filename.  Only unreserved alphanumeric
// characters pass through, per the portable filename character set.
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}

	// Everything else must be escaped.
	return true
}

func mkdir(dir string) error {
	if err := os.Mkdir(dir, dirFileMode); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

func mkdirfarm(path string, depth int) error {
	if err := mkdir(path); err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}

	for i := 0; i < len(pathFarm16); i++ {
		path := filepath.Join(path, pathFarm16[i:i+1])
		if err := mkdirfarm(path, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func fingerprint(b []byte) uint32 {
	hash := fnv.New32a()
	hash.Write(b)
	return hash.Sum32()
}

func pathParts(name string) []string {
	fp := fingerprint([]byte(name))
	nibble1 := fp & 0xf
	nibble2 := (fp >> 4) & 0xf
	return []string{pathFarm16[nibble1 : nibble1+1], pathFarm16[nibble2 : nibble2+1]}
}

func (a *Archive) makePath(accountID string, blobID int64) path {
	base := basename{accountID: accountID, blobID: blobID}.encode()
	return path{
		root: a.root,
		dirs: pathParts(base),
		base: base,
	}
}
