package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/device"
	"github.com/and161185/ironkeep/internal/model"
)

func Test_cfgDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got, want := cfgDir(), filepath.Join(dir, "ironkeep"); got != want {
		t.Fatalf("cfgDir=%q, want %q", got, want)
	}
}

func Test_saveLoadDevice(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "device.json")
	if _, err := loadDevice(path); err == nil {
		t.Fatalf("expected error for missing device file")
	}

	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	kp, err := clientcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	acct, _ := model.ValidateUserID("alice")
	dev, err := device.New(acct, 3, sk, kp.Private)
	if err != nil {
		t.Fatal(err)
	}
	if err := saveDevice(path, dev); err != nil {
		t.Fatalf("saveDevice: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("device file mode: %v %v", st, err)
	}
	got, err := loadDevice(path)
	if err != nil {
		t.Fatalf("loadDevice: %v", err)
	}
	if got.AccountID() != acct || got.SegmentID() != 3 {
		t.Fatalf("round trip mismatch: %v %d", got.AccountID(), got.SegmentID())
	}
}

func Test_loadTLS(t *testing.T) {
	t.Parallel()
	cfg, err := loadTLS("", false)
	if err != nil || cfg != nil {
		t.Fatalf("no CA should dial plaintext: %v %v", cfg, err)
	}
	cfg, err = loadTLS("", true)
	if err != nil || cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("insecure: %+v %v", cfg, err)
	}
	if _, err := loadTLS(filepath.Join(t.TempDir(), "missing.pem"), false); err == nil {
		t.Fatalf("want error for missing CA")
	}
	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTLS(bad, false); err == nil {
		t.Fatalf("want error for bad CA")
	}
}

func Test_readAll_File(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "in")
	if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := readAll(p)
	if err != nil || string(b) != "data" {
		t.Fatalf("readAll: %q %v", b, err)
	}
}
