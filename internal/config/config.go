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

// Package config resolves the client configuration from defaults, an
// optional YAML file and TXTWIRE_* environment overrides, in that
// order.  It also owns the saved session under the data directory.
package config

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/txtwire/txtwire/internal/record"
)

type Config struct {
	// BaseURL is the REST API root, including the version prefix.
	BaseURL string `yaml:"baseUrl"`

	// BucketURL is the object store bucket media blobs live in.
	BucketURL string `yaml:"bucketUrl"`

	// DataDir holds the local database, the media archive and the
	// saved session.
	DataDir string `yaml:"dataDir"`

	// MetricsAddr, when set, serves Prometheus metrics on that
	// address for the life of the process.
	MetricsAddr string `yaml:"metricsAddr"`

	// Trace dumps every HTTP exchange to stderr.
	Trace bool `yaml:"trace"`
}

func defaults() Config {
	return Config{
		BaseURL:   "https://api.txtwire.app/api/v1",
		BucketURL: "https://firebasestorage.googleapis.com/v0/b/txtwire-media.appspot.com",
		DataDir:   filepath.Join(homeDir(), ".txtwire"),
	}
}

// Load resolves the configuration.  A path given explicitly must
// exist; the default path is allowed to be absent.
func Load(path string) (Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, errors.Wrapf(err, "could not parse config %q", path)
		}
		merge(&cfg, parsed)
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; defaults carry.
	default:
		return Config{}, errors.Wrapf(err, "could not read config %q", path)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.BucketURL != "" {
		dst.BucketURL = src.BucketURL
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.Trace {
		dst.Trace = true
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TXTWIRE_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TXTWIRE_BUCKET_URL")); v != "" {
		cfg.BucketURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TXTWIRE_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TXTWIRE_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if raw := strings.TrimSpace(os.Getenv("TXTWIRE_TRACE")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Trace = v
		}
	}
}

func homeDir() string {
	h := os.Getenv("HOME")
	if h != "" {
		return h
	}

	usr, err := user.Current()
	if err != nil {
		panic(err)
	}
	return usr.HomeDir
}

// EnsureDataDir creates the data directory if needed.
func (c Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}

// DatabasePath is the location of the local sqlite mirror.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "txtwire.db")
}

// MediaDir is the root of the local attachment archive.
func (c Config) MediaDir() string {
	return filepath.Join(c.DataDir, "media")
}

func (c Config) sessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

// Credentials is the saved login state.  The password hash, not the
// password, is stored; together with the session salts it rebuilds
// the encryption key on startup.
type Credentials struct {
	record.Session
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	PasswordHash string `json:"password_hash"`
}

// SaveSession writes the credentials, readable only by the owner.
func (c Config) SaveSession(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}
	if err := c.EnsureDataDir(); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(c.sessionPath(), data, 0600),
		"could not save session")
}

// LoadSession reads the saved credentials.  A missing file means no
// session: the zero value comes back with a nil error.
func (c Config) LoadSession() (Credentials, error) {
	data, err := os.ReadFile(c.sessionPath())
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, errors.Wrap(err, "could not read session")
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, errors.Wrap(err, "could not decode session")
	}
	return creds, nil
}

// ClearSession forgets the saved login.
func (c Config) ClearSession() error {
	err := os.Remove(c.sessionPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeviceName labels this install in the account's device list.
func DeviceName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "txtwire"
	}
	return name
}

// NewDeviceToken mints the random token that identifies this install
// to the push relay.
func NewDeviceToken() string {
	return uuid.NewString()
}
