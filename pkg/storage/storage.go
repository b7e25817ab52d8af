// Package storage provides an on-disk cache of enrollment descriptors.
// Computing a dlib descriptor is the slow part of building the gallery, so
// descriptors are cached by the SHA-256 of the image bytes and, optionally,
// encrypted at rest using NaCl secretbox.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// cacheVersion is bumped whenever the descriptor model changes.
const cacheVersion = 1

// CachedDescriptor is one cache entry.
type CachedDescriptor struct {
	Descriptor recognition.Descriptor `json:"descriptor"`
	Source     string                 `json:"source"`
	CachedAt   time.Time              `json:"cached_at"`
}

type cacheFile struct {
	Version int                         `json:"version"`
	Entries map[string]CachedDescriptor `json:"entries"`
}

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// ErrCacheVersion is returned when the cache was written by another version.
var ErrCacheVersion = errors.New("descriptor cache version mismatch")

// DescriptorCache maps image content hashes to descriptors.
type DescriptorCache struct {
	path              string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte

	mu      sync.RWMutex
	entries map[string]CachedDescriptor
	used    map[string]bool
	dirty   bool
}

// NewDescriptorCache creates a cache backed by path. Nothing is read until Load.
func NewDescriptorCache(path string, encryptionEnabled bool) (*DescriptorCache, error) {
	c := &DescriptorCache{
		path:              path,
		encryptionEnabled: encryptionEnabled,
		entries:           make(map[string]CachedDescriptor),
		used:              make(map[string]bool),
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		c.encryptionKey = key
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return c, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted data to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	var identity strings.Builder

	// Machine ID (Linux specific)
	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("faceattend-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

// Key returns the cache key for image bytes.
func Key(imageData []byte) string {
	sum := sha256.Sum256(imageData)
	return hex.EncodeToString(sum[:])
}

// Load reads the cache file. A missing file leaves the cache empty.
func (c *DescriptorCache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read descriptor cache: %w", err)
	}

	if c.encryptionEnabled {
		data, err = c.decrypt(data)
		if err != nil {
			return fmt.Errorf("failed to decrypt descriptor cache: %w", err)
		}
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal descriptor cache: %w", err)
	}
	if file.Version != cacheVersion {
		return ErrCacheVersion
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if file.Entries != nil {
		c.entries = file.Entries
	}

	logging.Debugf("Loaded %d cached descriptor(s) from %s", len(c.entries), c.path)
	return nil
}

// Get returns the cached descriptor for key.
func (c *DescriptorCache) Get(key string) (recognition.Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok {
		c.used[key] = true
	}
	return entry.Descriptor, ok
}

// Put stores a descriptor computed from the image at source.
func (c *DescriptorCache) Put(key string, source string, d recognition.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = CachedDescriptor{
		Descriptor: d,
		Source:     source,
		CachedAt:   time.Now(),
	}
	c.used[key] = true
	c.dirty = true
}

// Len returns the number of cached descriptors.
func (c *DescriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops entries not touched by Get or Put since Load.
// It returns the number of entries removed.
func (c *DescriptorCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if !c.used[key] {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Save writes the cache back if anything changed.
func (c *DescriptorCache) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	file := cacheFile{Version: cacheVersion, Entries: c.entries}
	data, err := json.Marshal(file)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal descriptor cache: %w", err)
	}

	if c.encryptionEnabled {
		data, err = c.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt descriptor cache: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write descriptor cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace descriptor cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	logging.Debugf("Saved descriptor cache to %s", c.path)
	return nil
}

// encrypt encrypts data using NaCl secretbox.
func (c *DescriptorCache) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	encrypted := secretbox.Seal(nonce[:], plaintext, &nonce, &c.encryptionKey)
	return encrypted, nil
}

// decrypt decrypts data using NaCl secretbox.
func (c *DescriptorCache) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &c.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
