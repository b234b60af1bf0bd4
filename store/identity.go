package store

import (
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/pkg/errors"
)

// LoadIdentity reads the X25519 identity the store is sealed to.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open identity")
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, errors.Wrapf(err, "can't parse identity %s", path)
	}

	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}

	return nil, errors.Errorf("no X25519 identity in %s", path)
}

// GenerateIdentity creates a new identity file at path. It refuses to
// overwrite an existing file, since that would orphan the store.
func GenerateIdentity(path string) (*age.X25519Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, errors.Wrap(err, "can't generate identity")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "can't create identity directory")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "can't create identity")
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# public key: %s\n%s\n", id.Recipient(), id); err != nil {
		return nil, errors.Wrap(err, "can't write identity")
	}

	return id, nil
}

// LoadOrGenerateIdentity loads the identity at path, creating it if missing.
func LoadOrGenerateIdentity(path string) (*age.X25519Identity, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return GenerateIdentity(path)
	}
	return LoadIdentity(path)
}
