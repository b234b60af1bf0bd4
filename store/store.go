// Package store implements entry.Store as a single age-encrypted file.
//
// The file holds a CBOR map of key to value sealed to an X25519 identity.
// Every Get and Set re-reads the file under an advisory lock, so the daemon
// and the admin commands can share it.
package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: cbor encoder: " + err.Error())
	}
}

type fileStore struct {
	filename string
	identity *age.X25519Identity
	lock     sync.RWMutex
}

// New returns a Store persisted at filename and sealed to identity.
// The file is created on the first Set.
func New(filename string, identity *age.X25519Identity) entry.Store {
	return &fileStore{
		filename: filename,
		identity: identity,
	}
}

func (s *fileStore) Get(key string) ([]byte, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	unlock, err := lockFile(s.filename, false)
	if err != nil {
		return nil, false, errors.Wrapf(entry.ErrStorage, "%v", err)
	}
	defer unlock()

	kv, err := s.loadExisting()
	if err != nil {
		return nil, false, err
	}

	v, ok := kv[key]
	return v, ok, nil
}

func (s *fileStore) Set(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filename), 0700); err != nil {
		return errors.Wrapf(entry.ErrStorage, "%v", err)
	}

	unlock, err := lockFile(s.filename, true)
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "%v", err)
	}
	defer unlock()

	kv, err := s.loadExisting()
	if err != nil {
		return err
	}

	kv[key] = append([]byte(nil), value...)

	return s.storeAll(kv)
}

func (s *fileStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, err := os.Stat(s.filename); os.IsNotExist(err) {
		return nil
	}

	unlock, err := lockFile(s.filename, true)
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "%v", err)
	}
	defer unlock()

	kv, err := s.loadExisting()
	if err != nil {
		return err
	}
	if _, ok := kv[key]; !ok {
		return nil
	}

	delete(kv, key)
	return s.storeAll(kv)
}

func (s *fileStore) loadExisting() (map[string][]byte, error) {
	_, err := os.Stat(s.filename)
	if os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}

	in, err := ioutil.ReadFile(s.filename)
	if err != nil {
		return nil, errors.Wrapf(entry.ErrStorage, "read %s: %s", s.filename, err)
	}

	r, err := age.Decrypt(bytes.NewReader(in), s.identity)
	if err != nil {
		return nil, errors.Wrapf(entry.ErrStorage, "decrypt %s: %s", s.filename, err)
	}

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(entry.ErrStorage, "decrypt %s: %s", s.filename, err)
	}

	kv := map[string][]byte{}
	if err := cbor.Unmarshal(plain, &kv); err != nil {
		return nil, errors.Wrapf(entry.ErrStorage, "decode %s: %s", s.filename, err)
	}

	return kv, nil
}

func (s *fileStore) storeAll(kv map[string][]byte) error {
	plain, err := encMode.Marshal(kv)
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "encode: %s", err)
	}

	var out bytes.Buffer
	w, err := age.Encrypt(&out, s.identity.Recipient())
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "encrypt: %s", err)
	}
	if _, err := w.Write(plain); err != nil {
		return errors.Wrapf(entry.ErrStorage, "encrypt: %s", err)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(entry.ErrStorage, "encrypt: %s", err)
	}

	// readers only ever see a complete file
	tmp := s.filename + ".tmp"
	if err := ioutil.WriteFile(tmp, out.Bytes(), 0600); err != nil {
		return errors.Wrapf(entry.ErrStorage, "write %s: %s", tmp, err)
	}
	if err := os.Rename(tmp, s.filename); err != nil {
		return errors.Wrapf(entry.ErrStorage, "rename %s: %s", filepath.Base(tmp), err)
	}

	return nil
}
