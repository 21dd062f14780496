package userpool

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const fileKeyringMagic = "OWKR1"

// FileKeyring stores slots in a single passphrase-encrypted file. It stands
// in for origin-scoped browser storage in CLI and desktop contexts: durable,
// shared by every process pointed at the same path, last writer wins.
type FileKeyring struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

// NewFileKeyring creates a keyring at path. The file is created lazily on
// the first write; a missing file reads as empty.
func NewFileKeyring(path, passphrase string) *FileKeyring {
	return &FileKeyring{
		path:       path,
		passphrase: []byte(passphrase),
	}
}

// Get implements Keyring.
func (f *FileKeyring) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set implements Keyring.
func (f *FileKeyring) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Delete implements Keyring.
func (f *FileKeyring) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	return f.save(values)
}

func (f *FileKeyring) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to read keyring file")
	}

	headerLen := len(fileKeyringMagic) + 32 + 24
	if len(raw) < headerLen || string(raw[:len(fileKeyringMagic)]) != fileKeyringMagic {
		return nil, ErrKeyringSealed.Clone()
	}

	var salt [32]byte
	var nonce [24]byte
	copy(salt[:], raw[len(fileKeyringMagic):])
	copy(nonce[:], raw[len(fileKeyringMagic)+32:])

	key, err := f.deriveKey(salt[:])
	if err != nil {
		return nil, err
	}

	plain, ok := secretbox.Open(nil, raw[headerLen:], &nonce, key)
	if !ok {
		return nil, ErrKeyringSealed.Clone()
	}

	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "corrupt keyring payload")
	}
	return values, nil
}

func (f *FileKeyring) save(values map[string]string) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to encode keyring payload")
	}

	var salt [32]byte
	var nonce [24]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to generate keyring salt")
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to generate keyring nonce")
	}

	key, err := f.deriveKey(salt[:])
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(fileKeyringMagic)+len(salt)+len(nonce)+len(plain)+secretbox.Overhead)
	out = append(out, fileKeyringMagic...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain, &nonce, key)

	// Write-then-rename so concurrent readers never observe a torn file.
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to create keyring directory")
	}
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to write keyring file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to replace keyring file")
	}
	return nil
}

func (f *FileKeyring) deriveKey(salt []byte) (*[32]byte, error) {
	derived, err := scrypt.Key(f.passphrase, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive keyring key")
	}
	var key [32]byte
	copy(key[:], derived)
	return &key, nil
}
