package sshd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// hostKeyBits matches the RSA size of a stock OpenSSH host key.
const hostKeyBits = 2048

// GenerateHostKey returns a fresh in-memory RSA host key.  Clients will
// see a new fingerprint every time the process restarts.
func GenerateHostKey() (ssh.Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, hostKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	return ssh.NewSignerFromKey(key)
}

// LoadOrGenerateHostKey reads the PEM private key at path.  If the file
// does not exist a new RSA key is generated and saved there with 0600
// permissions.  created reports whether that happened.  A file that
// exists but cannot be parsed is an error and is left untouched.
func LoadOrGenerateHostKey(path string) (signer ssh.Signer, created bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		signer, err = ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, false, fmt.Errorf("host key %s: %w", path, err)
		}
		return signer, false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("host key %s: %w", path, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, hostKeyBits)
	if err != nil {
		return nil, false, fmt.Errorf("generate host key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, false, fmt.Errorf("host key dir: %w", err)
		}
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, false, fmt.Errorf("save host key: %w", err)
	}
	signer, err = ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, false, err
	}
	return signer, true, nil
}
