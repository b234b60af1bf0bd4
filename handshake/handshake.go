// Package handshake proves to the actuator that the host holds the shared
// secret. After connecting, the host reads a challenge, encrypts it with
// the shared key and fixed IV, and writes the truncated, hex-encoded
// ciphertext back as a RespondChallenge command. The actuator does not
// acknowledge the response.
package handshake

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/command"
)

// Mode selects how the challenge is encrypted.
type Mode string

const (
	// ModeCBC encrypts the zero-padded challenge with AES-CBC.
	ModeCBC Mode = "cbc"
	// ModeCMAC computes AES-CMAC over the challenge. The IV is unused.
	ModeCMAC Mode = "cmac"
)

// DefaultResponseLength is the number of ciphertext bytes sent back.
const DefaultResponseLength = 16

// Config holds the shared secret and encoding parameters.
type Config struct {
	Key            []byte
	IV             []byte
	Mode           Mode
	ResponseLength int

	// DerivePerDevice derives the AES key from Key and the peripheral id
	// instead of using Key directly.
	DerivePerDevice bool
}

// Authenticator performs the handshake over a Link.
type Authenticator struct {
	cfg    Config
	logger entry.Logger
}

// New validates cfg and returns an Authenticator.
func New(cfg Config, logger entry.Logger) (*Authenticator, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeCBC
	}
	if cfg.ResponseLength == 0 {
		cfg.ResponseLength = DefaultResponseLength
	}

	switch len(cfg.Key) {
	case 16, 24, 32:
	default:
		return nil, errors.Errorf("invalid key length %d", len(cfg.Key))
	}

	switch cfg.Mode {
	case ModeCBC:
		if len(cfg.IV) != aes.BlockSize {
			return nil, errors.Errorf("invalid iv length %d", len(cfg.IV))
		}
	case ModeCMAC:
	default:
		return nil, errors.Errorf("unknown mode %q", cfg.Mode)
	}

	if cfg.ResponseLength < 1 || cfg.ResponseLength > aes.BlockSize {
		return nil, errors.Errorf("invalid response length %d", cfg.ResponseLength)
	}

	if logger == nil {
		logger = entry.Component("handshake")
	}
	return &Authenticator{cfg: cfg, logger: logger}, nil
}

// Authenticate reads the challenge from link and writes the response.
func (a *Authenticator) Authenticate(ctx context.Context, link entry.Link) error {
	challenge, err := link.ReadCharacteristic(ctx, entry.ServiceUUID, entry.ChallengeCharUUID)
	if err != nil {
		return errors.Wrapf(entry.ErrBLEUnavailable, "can't read challenge: %v", err)
	}

	resp, err := a.Respond(link.ID(), challenge)
	if err != nil {
		return err
	}

	cmd := command.Command{Opcode: command.RespondChallenge, Params: resp}
	if err := link.WriteCharacteristic(ctx, entry.ServiceUUID, entry.CommandCharUUID, cmd.Marshal()); err != nil {
		return errors.Wrapf(entry.ErrBLEUnavailable, "can't write challenge response: %v", err)
	}

	a.logger.Debugf("answered challenge from %s", link.ID())
	return nil
}

// Respond computes the hex-encoded response to challenge for peripheral id.
func (a *Authenticator) Respond(id entry.PeripheralID, challenge []byte) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, errors.New("empty challenge")
	}

	key := a.cfg.Key
	if a.cfg.DerivePerDevice {
		var err error
		if key, err = DeriveKey(a.cfg.Key, id, len(a.cfg.Key)); err != nil {
			return nil, err
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "can't create cipher")
	}

	var sum []byte
	switch a.cfg.Mode {
	case ModeCMAC:
		mac, err := cmac.New(block)
		if err != nil {
			return nil, errors.Wrap(err, "can't create cmac")
		}
		mac.Write(challenge)
		sum = mac.Sum(nil)
	default:
		sum = encryptCBC(block, a.cfg.IV, challenge)
	}

	out := make([]byte, hex.EncodedLen(a.cfg.ResponseLength))
	hex.Encode(out, sum[:a.cfg.ResponseLength])
	return out, nil
}

func encryptCBC(block cipher.Block, iv, msg []byte) []byte {
	n := (len(msg) + aes.BlockSize - 1) / aes.BlockSize * aes.BlockSize
	padded := make([]byte, n)
	copy(padded, msg)

	out := make([]byte, n)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

// DeriveKey derives a size-byte actuator key from master with HKDF-SHA256,
// bound to the peripheral id.
func DeriveKey(master []byte, id entry.PeripheralID, size int) ([]byte, error) {
	if id.IsZero() {
		return nil, errors.New("can't derive key without peripheral id")
	}

	r := hkdf.New(sha256.New, master, nil, []byte("entry-actuator:"+id.String()))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, "can't derive key")
	}
	return key, nil
}
