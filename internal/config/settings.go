package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings keys, read from the environment and .env files
const (
	EnvPrefix         = "MFDL_"
	KeyInputPath      = EnvPrefix + "INPUT"
	KeyOutputFolder   = EnvPrefix + "OUTPUT_FOLDER"
	KeyQuiet          = EnvPrefix + "QUIET"
	KeyVerbose        = EnvPrefix + "VERBOSE"
	KeyStrict         = EnvPrefix + "STRICT"
	KeyTimeout        = EnvPrefix + "TIMEOUT"
	KeyMaxHops        = EnvPrefix + "MAX_HOPS"
	KeyRequestsPerSec = EnvPrefix + "RATE"
	KeyUserAgent      = EnvPrefix + "USER_AGENT"
)

// Default values
const (
	DefaultInputPath      = "urls.csv"
	DefaultOutputFolder   = "download"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxHops        = 10
	DefaultRequestsPerSec = 0.0
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultEnvFile        = ".env"
)

// Limits applied by setters and getters
const (
	MinTimeout = time.Second
	MinMaxHops = 1
	MaxMaxHops = 50
)

// Store is the key/value backend behind Settings
type Store interface {
	Lookup(key string) (string, bool)
	Set(key, value string)
}

// MapStore is an in-memory Store
type MapStore map[string]string

// Lookup returns the value for key if present
func (m MapStore) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Set stores value under key
func (m MapStore) Set(key, value string) {
	m[key] = value
}

// LoadStore builds a store from .env files and the process environment.
// Missing env files are skipped; process variables win over file values.
func LoadStore(envFiles ...string) (MapStore, error) {
	store := MapStore{}

	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for key, value := range values {
			if strings.HasPrefix(key, EnvPrefix) {
				store[key] = value
			}
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, EnvPrefix) {
			store[key] = value
		}
	}

	return store, nil
}

// Settings manages application configuration
type Settings struct {
	store Store
}

// NewSettings creates a new settings manager
func NewSettings(store Store) *Settings {
	if store == nil {
		store = MapStore{}
	}
	return &Settings{store: store}
}

func (s *Settings) getString(key, fallback string) string {
	value, ok := s.store.Lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func (s *Settings) getBool(key string) bool {
	value, ok := s.store.Lookup(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

// GetInputPath returns the CSV file with the URLs to download
func (s *Settings) GetInputPath() string {
	return s.getString(KeyInputPath, DefaultInputPath)
}

// SetInputPath sets the CSV input path
func (s *Settings) SetInputPath(path string) {
	s.store.Set(KeyInputPath, path)
}

// GetOutputFolder returns the configured output folder
func (s *Settings) GetOutputFolder() string {
	return s.getString(KeyOutputFolder, DefaultOutputFolder)
}

// SetOutputFolder sets the output folder
func (s *Settings) SetOutputFolder(dir string) {
	s.store.Set(KeyOutputFolder, dir)
}

// IsQuiet returns whether progress output is suppressed
func (s *Settings) IsQuiet() bool {
	return s.getBool(KeyQuiet)
}

// SetQuiet sets whether progress output is suppressed
func (s *Settings) SetQuiet(quiet bool) {
	s.store.Set(KeyQuiet, strconv.FormatBool(quiet))
}

// IsVerbose returns whether debug diagnostics are enabled
func (s *Settings) IsVerbose() bool {
	return s.getBool(KeyVerbose)
}

// SetVerbose sets whether debug diagnostics are enabled
func (s *Settings) SetVerbose(verbose bool) {
	s.store.Set(KeyVerbose, strconv.FormatBool(verbose))
}

// IsStrict returns whether the process exits non-zero when a URL failed
func (s *Settings) IsStrict() bool {
	return s.getBool(KeyStrict)
}

// SetStrict sets whether the process exits non-zero when a URL failed
func (s *Settings) SetStrict(strict bool) {
	s.store.Set(KeyStrict, strconv.FormatBool(strict))
}

// GetTimeout returns the per-request response header timeout
func (s *Settings) GetTimeout() time.Duration {
	value, ok := s.store.Lookup(KeyTimeout)
	if !ok {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	return d
}

// SetTimeout sets the per-request timeout
func (s *Settings) SetTimeout(d time.Duration) {
	if d < MinTimeout {
		d = MinTimeout
	}
	s.store.Set(KeyTimeout, d.String())
}

// GetMaxHops returns the maximum number of requests used to resolve one link
func (s *Settings) GetMaxHops() int {
	value, ok := s.store.Lookup(KeyMaxHops)
	if !ok {
		return DefaultMaxHops
	}
	hops, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return DefaultMaxHops
	}
	return clampHops(hops)
}

// SetMaxHops sets the maximum number of requests used to resolve one link
func (s *Settings) SetMaxHops(hops int) {
	s.store.Set(KeyMaxHops, strconv.Itoa(clampHops(hops)))
}

func clampHops(hops int) int {
	if hops < MinMaxHops {
		return MinMaxHops
	}
	if hops > MaxMaxHops {
		return MaxMaxHops
	}
	return hops
}

// GetRequestsPerSecond returns the request rate cap, 0 means unlimited
func (s *Settings) GetRequestsPerSecond() float64 {
	value, ok := s.store.Lookup(KeyRequestsPerSec)
	if !ok {
		return DefaultRequestsPerSec
	}
	rps, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || rps < 0 {
		return DefaultRequestsPerSec
	}
	return rps
}

// SetRequestsPerSecond sets the request rate cap
func (s *Settings) SetRequestsPerSecond(rps float64) {
	if rps < 0 {
		rps = 0
	}
	s.store.Set(KeyRequestsPerSec, strconv.FormatFloat(rps, 'f', -1, 64))
}

// GetUserAgent returns the User-Agent sent with every request
func (s *Settings) GetUserAgent() string {
	return s.getString(KeyUserAgent, DefaultUserAgent)
}

// SetUserAgent sets the User-Agent sent with every request
func (s *Settings) SetUserAgent(ua string) {
	s.store.Set(KeyUserAgent, ua)
}
