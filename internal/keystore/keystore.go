// Package keystore persists key pairs and fetched recipient keys as JSON files in one directory.
//
//	public.key    {"email": null|"<address>", "key": "<base64>"}
//	private.key   {"email": ["<address>", ...], "key": "<base64>"}
//	<email>.key   public key of a recipient, same shape as public.key
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/observability/logger"
)

const (
	PublicFile  = "public.key"
	PrivateFile = "private.key"

	publicPerm  fs.FileMode = 0o644
	privatePerm fs.FileMode = 0o600
)

var (
	// ErrNotFound is returned when the requested key file does not exist.
	ErrNotFound = errors.New("keystore: key file not found")
	// ErrInvalidEmail is returned for addresses that cannot be used as a file name.
	ErrInvalidEmail = errors.New("keystore: invalid email")
)

// PublicKey is the on-disk form of a public key. Email is set once the key has been published.
type PublicKey struct {
	Email *string `json:"email"`
	Key   string  `json:"key"`
}

// PrivateKey is the on-disk form of a private key with the addresses it may read mail for.
type PrivateKey struct {
	Email []string `json:"email"`
	Key   string   `json:"key"`
}

// NewPublicKey encodes k for storage.
func NewPublicKey(k keys.Key) (PublicKey, error) {
	s, err := k.EncodeString()
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Key: s}, nil
}

// NewPrivateKey encodes k for storage with an empty address list.
func NewPrivateKey(k keys.Key) (PrivateKey, error) {
	s, err := k.EncodeString()
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{Email: []string{}, Key: s}, nil
}

// Decode parses the base64 key.
func (p PublicKey) Decode() (keys.Key, error) { return keys.DecodeString(p.Key) }

// Decode parses the base64 key.
func (p PrivateKey) Decode() (keys.Key, error) { return keys.DecodeString(p.Key) }

// HasEmail reports whether the private key is registered for email (case-insensitive).
func (p PrivateKey) HasEmail(email string) bool {
	return slices.ContainsFunc(p.Email, func(e string) bool { return strings.EqualFold(e, email) })
}

// AddEmail registers email unless already present and reports whether it was added.
func (p *PrivateKey) AddEmail(email string) bool {
	if p.HasEmail(email) {
		return false
	}
	p.Email = append(p.Email, email)
	return true
}

// Store reads and writes key files under a single directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the key files.
func (s *Store) Dir() string { return s.dir }

// HasKeyPair reports whether both public.key and private.key exist.
func (s *Store) HasKeyPair() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return exists(filepath.Join(s.dir, PublicFile)) && exists(filepath.Join(s.dir, PrivateFile))
}

// SaveKeyPair writes public.key and private.key.
func (s *Store) SaveKeyPair(pub PublicKey, priv PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(PublicFile, pub, publicPerm); err != nil {
		return err
	}
	return s.write(PrivateFile, priv, privatePerm)
}

func (s *Store) LoadPublic() (PublicKey, error) {
	var pub PublicKey
	err := s.read(PublicFile, &pub)
	return pub, err
}

func (s *Store) SavePrivate(priv PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if priv.Email == nil {
		priv.Email = []string{}
	}
	return s.write(PrivateFile, priv, privatePerm)
}

func (s *Store) LoadPrivate() (PrivateKey, error) {
	var priv PrivateKey
	err := s.read(PrivateFile, &priv)
	return priv, err
}

// SaveRecipient stores the public key fetched for email as <email>.key.
func (s *Store) SaveRecipient(email string, pub PublicKey) error {
	name, err := recipientFile(email)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(name, pub, publicPerm)
}

// LoadRecipient reads <email>.key.
func (s *Store) LoadRecipient(email string) (PublicKey, error) {
	name, err := recipientFile(email)
	if err != nil {
		return PublicKey{}, err
	}
	var pub PublicKey
	err = s.read(name, &pub)
	return pub, err
}

func (s *Store) write(name string, v any, perm fs.FileMode) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	logger.Named("keystore").Debug("key file written", logger.Path(path))
	return nil
}

func (s *Store) read(name string, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func recipientFile(email string) (string, error) {
	if email == "" || email == "." || email == ".." ||
		strings.ContainsAny(email, `/\`) || strings.ContainsRune(email, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	name := email + ".key"
	if name == PublicFile || name == PrivateFile {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidEmail, email)
	}
	return name, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
