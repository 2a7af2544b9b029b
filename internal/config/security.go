// Package config provides configuration and session persistence for the
// Pokéchat console. This file handles encryption of the access token at
// rest so a stolen config directory does not leak a live session.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// SecurityManager handles encryption and decryption of sensitive session data.
type SecurityManager interface {
	EncryptCredential(plaintext string) (string, error)
	DecryptCredential(ciphertext string) (string, error)
}

// AESSecurityManager implements SecurityManager using AES-256-GCM with a
// pbkdf2-derived key. The salt lives in the user's data directory; the
// passphrase is derived from machine identity, so the ciphertext is only
// useful on the machine that wrote it.
type AESSecurityManager struct {
	keyPath   string
	masterKey []byte
}

// NewSecurityManager creates a security manager, generating key material on
// first use.
func NewSecurityManager() (*AESSecurityManager, error) {
	keyPath, err := securityKeyPath()
	if err != nil {
		return nil, fmt.Errorf("determining security key path: %w", err)
	}

	m := &AESSecurityManager{keyPath: keyPath}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("creating security directory: %w", err)
	}
	if err := m.initializeKey(); err != nil {
		return nil, fmt.Errorf("initializing encryption key: %w", err)
	}
	return m, nil
}

func securityKeyPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	var dataDir string
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dataDir = filepath.Join(xdg, "pokechat", "security")
	} else {
		dataDir = filepath.Join(homeDir, ".local", "share", "pokechat", "security")
	}
	return filepath.Join(dataDir, "master.key"), nil
}

func (m *AESSecurityManager) initializeKey() error {
	salt, err := m.loadOrCreateSalt()
	if err != nil {
		return err
	}
	m.masterKey = pbkdf2.Key([]byte(machinePassphrase()), salt, 100000, 32, sha256.New)
	return nil
}

func (m *AESSecurityManager) loadOrCreateSalt() ([]byte, error) {
	if data, err := os.ReadFile(m.keyPath); err == nil {
		salt, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decoding key material: %w", err)
		}
		return salt, nil
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := os.WriteFile(m.keyPath, []byte(hex.EncodeToString(salt)), 0600); err != nil {
		return nil, fmt.Errorf("writing key material: %w", err)
	}
	return salt, nil
}

func machinePassphrase() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return fmt.Sprintf("pokechat-security-%s-%s", hostname, username)
}

// EncryptCredential encrypts sensitive session data using AES-256-GCM.
func (m *AESSecurityManager) EncryptCredential(plaintext string) (string, error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptCredential decrypts previously stored session data.
func (m *AESSecurityManager) DecryptCredential(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
