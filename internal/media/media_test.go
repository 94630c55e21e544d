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

package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isDir(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("path is not a directory: %#v", stat)
	}
	return nil
}

func TestBasenameEncode(t *testing.T) {
	cases := []struct {
		name basename
		want string
	}{
		{
			name: basename{"acct1", 42},
			want: "txtwire-1-acct1-42",
		},
		{
			name: basename{"a/b:c", 7},
			want: "txtwire-1-a=2Fb=3Ac-7",
		},
	}
	for _, tc := range cases {
		if got := tc.name.encode(); got != tc.want {
			t.Errorf("%#v.encode() = %#v, want %#v", tc.name, got, tc.want)
		}
	}
}

func TestMkDirFarm(t *testing.T) {
	farm := filepath.Join(t.TempDir(), "farm")
	if err := mkdirfarm(farm, 2); err != nil {
		t.Errorf("mkdirfarm(%#v) = %#v, want nil", farm, err)
	}

	if err := isDir(farm); err != nil {
		t.Errorf("isDir(%#v) = %v, want nil", farm, err)
	}

	// Test a smattering of the directories that should be there.
	for _, sub := range []string{"a/a", "p/p", "m/c"} {
		path := filepath.Join(farm, sub)
		if err := isDir(path); err != nil {
			t.Errorf("isDir(%#v) = %v, want nil", path, err)
		}
	}
}

func TestDestAndHas(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}

	dst := a.Dest("acct1", 42)
	if err := isDir(filepath.Dir(dst)); err != nil {
		t.Errorf("parent of Dest() does not exist: %v", err)
	}
	if !strings.HasSuffix(dst, "txtwire-1-acct1-42") {
		t.Errorf("Dest() = %q, want txtwire-1-acct1-42 basename", dst)
	}
	if a.Has("acct1", 42) {
		t.Error("Has() = true before any write")
	}
	if err := os.WriteFile(dst, []byte("payload"), blobFileMode); err != nil {
		t.Fatal(err)
	}
	if !a.Has("acct1", 42) {
		t.Error("Has() = false after write")
	}

	// The same blob id always maps to the same path.
	if again := a.Dest("acct1", 42); again != dst {
		t.Errorf("Dest() not stable: %q then %q", dst, again)
	}
}
