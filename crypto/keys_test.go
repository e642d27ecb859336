package crypto

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	addr := NewAddress(YieldPrefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(YieldPrefix)+"1") {
		t.Fatalf("encoded address %q missing prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("payload mismatch: %x != %x", decoded.Bytes(), raw)
	}
	if decoded.Prefix() != YieldPrefix {
		t.Fatalf("prefix = %q", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatalf("expected decode error")
	}
	// Corrupting the checksum must fail.
	encoded := NewAddress(YieldPrefix, make([]byte, 20)).String()
	flipped := "q"
	if strings.HasSuffix(encoded, "q") {
		flipped = "p"
	}
	if _, err := DecodeAddress(encoded[:len(encoded)-1] + flipped); err == nil {
		t.Fatalf("expected checksum failure")
	}
}

func TestGeneratedKeyAddressesDiffer(t *testing.T) {
	first, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.PubKey().Address().String() == second.PubKey().Address().String() {
		t.Fatalf("distinct keys produced the same address")
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("restored key derives a different address")
	}
}

func TestKeystoreSaveAndLoad(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "module.keystore")

	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), key.Bytes()) {
		t.Fatalf("keystore round trip lost the key")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected passphrase failure")
	}
}
