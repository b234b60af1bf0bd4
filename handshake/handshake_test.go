package handshake

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/bletest"
	"github.com/beblucech/entry/command"
)

// NIST SP 800-38A / RFC 4493 AES-128 vectors
var (
	testKey, _   = hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	testIV, _    = hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	testBlock, _ = hex.DecodeString("6bc1bee22e409f96e93d7e117393172a")
)

func mustNew(t *testing.T, cfg Config) *Authenticator {
	a, err := New(cfg, entry.DiscardLogger())
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	return a
}

func TestRespondCBC(t *testing.T) {
	a := mustNew(t, Config{Key: testKey, IV: testIV})

	resp, err := a.Respond("aa:bb", testBlock)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "7649abac8119b246cee98e9b12e9197d" {
		t.Fatalf("unexpected cbc response %s", resp)
	}
}

func TestRespondCMAC(t *testing.T) {
	a := mustNew(t, Config{Key: testKey, Mode: ModeCMAC})

	resp, err := a.Respond("aa:bb", testBlock)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "070a16b46b4d4144f79bdd9dd04a287c" {
		t.Fatalf("unexpected cmac response %s", resp)
	}
}

func TestRespondTruncates(t *testing.T) {
	a := mustNew(t, Config{Key: testKey, IV: testIV, ResponseLength: 4})

	resp, err := a.Respond("aa:bb", testBlock)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "7649abac" {
		t.Fatalf("unexpected truncated response %s", resp)
	}
}

func TestRespondShortChallengeIsPadded(t *testing.T) {
	a := mustNew(t, Config{Key: testKey, IV: testIV})

	short, err := a.Respond("aa:bb", []byte{0x01, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	padded, err := a.Respond("aa:bb", append([]byte{0x01, 0x02}, make([]byte, 14)...))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(short, padded) {
		t.Fatal("short challenge must be zero-padded")
	}

	if _, err := a.Respond("aa:bb", nil); err == nil {
		t.Fatal("expected error on empty challenge")
	}
}

func TestDerivePerDevice(t *testing.T) {
	a := mustNew(t, Config{Key: testKey, IV: testIV, DerivePerDevice: true})

	r1, _ := a.Respond("aa:aa:aa:aa:aa:aa", testBlock)
	r2, _ := a.Respond("bb:bb:bb:bb:bb:bb", testBlock)
	r1again, _ := a.Respond("aa:aa:aa:aa:aa:aa", testBlock)

	if bytes.Equal(r1, r2) {
		t.Fatal("derived keys must differ per device")
	}
	if !bytes.Equal(r1, r1again) {
		t.Fatal("derivation must be deterministic")
	}

	k, err := DeriveKey(testKey, "aa:aa:aa:aa:aa:aa", 16)
	if err != nil || len(k) != 16 {
		t.Fatalf("unexpected derived key %x err=%v", k, err)
	}
	if _, err := DeriveKey(testKey, "", 16); err == nil {
		t.Fatal("expected error without peripheral id")
	}
}

func TestNewValidates(t *testing.T) {
	bad := []Config{
		{Key: []byte("short"), IV: testIV},
		{Key: testKey, IV: []byte("short")},
		{Key: testKey, IV: testIV, Mode: "ecb"},
		{Key: testKey, IV: testIV, ResponseLength: 17},
	}
	for _, cfg := range bad {
		if _, err := New(cfg, entry.DiscardLogger()); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	link := bletest.NewLink("aa:bb")
	link.SetValue(entry.ChallengeCharUUID, testBlock)
	a := mustNew(t, Config{Key: testKey, IV: testIV})

	if err := a.Authenticate(context.Background(), link); err != nil {
		t.Fatal(err)
	}

	writes := link.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected one write, got %d", len(writes))
	}
	cmd, err := command.Parse(writes[0])
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Opcode != command.RespondChallenge || string(cmd.Params) != "7649abac8119b246cee98e9b12e9197d" {
		t.Fatalf("unexpected response command %s|%s", cmd.Opcode, cmd.Params)
	}
}

func TestAuthenticateReadFailure(t *testing.T) {
	link := bletest.NewLink("aa:bb")
	link.FailReads(errors.New("att error"))
	a := mustNew(t, Config{Key: testKey, IV: testIV})

	err := a.Authenticate(context.Background(), link)
	if !errors.Is(err, entry.ErrBLEUnavailable) {
		t.Fatalf("expected ble unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "can't read challenge: att error") {
		t.Fatalf("cause missing from %q", err)
	}
	if len(link.Writes()) != 0 {
		t.Fatal("response written despite read failure")
	}
}

func TestAuthenticateWriteFailure(t *testing.T) {
	link := bletest.NewLink("aa:bb")
	link.SetValue(entry.ChallengeCharUUID, []byte("0123456789abcdef"))
	link.FailWrites(errors.New("write not permitted"))
	a := mustNew(t, Config{Key: testKey, IV: testIV})

	err := a.Authenticate(context.Background(), link)
	if !errors.Is(err, entry.ErrBLEUnavailable) {
		t.Fatalf("expected ble unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "can't write challenge response: write not permitted") {
		t.Fatalf("cause missing from %q", err)
	}
}
