// Package sshkey is a small facade over 'crypto/ed25519' and 'x/crypto/ssh'
// for the key handling this tool needs: generating the instance keypair at
// provision time, marshaling the public half to the OpenSSH 'authorized_keys'
// format for import to AWS, marshaling the private half to a PEM-encoded
// OpenSSH key file, and parsing that file back for mesh-logout sessions.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate a 'crypto/ed25519' keypair")
	ErrPubKeyConv     = fmt.Errorf("failed to convert the 'ed25519.PublicKey' to 'ssh.PublicKey'")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the 'ssh.PublicKey' to OpenSSH format")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the 'ssh.PrivateKey' to OpenSSH format")
	ErrPEMEncode      = fmt.Errorf("failed to PEM-encode the ssh.PrivateKey")
)

// NewED25519KeyPair generates a fresh 'crypto/ed25519' public+private pair.
func NewED25519KeyPair() (ED25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ED25519KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return ED25519KeyPair{
		Public: ED25519PublicKey{
			key: pub,
		},
		Private: ED25519PrivateKey{
			key: priv,
		},
	}, nil
}

type ED25519KeyPair struct {
	Public  ED25519PublicKey
	Private ED25519PrivateKey
}

type ED25519PublicKey struct {
	key ed25519.PublicKey
}

// Converts the 'ed25519.PublicKey' to an 'ssh.PublicKey'.
func (pubKey ED25519PublicKey) ToSSH() (ssh.PublicKey, error) {
	pub, err := ssh.NewPublicKey(pubKey.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	return pub, nil
}

// Marshals the 'ed25519.PublicKey' to the OpenSSH ('authorized_keys') format.
func (pubKey ED25519PublicKey) MarshalOpenSSH() ([]byte, error) {
	publicKey, err := pubKey.ToSSH()
	if err != nil {
		return nil, err
	}
	marshaled := ssh.MarshalAuthorizedKey(publicKey)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

type ED25519PrivateKey struct {
	key ed25519.PrivateKey
}

// Marshals the 'ed25519.PrivateKey' to the OpenSSH format.
func (privKey ED25519PrivateKey) MarshalOpenSSH(comment string) ([]byte, error) {
	priv, err := ssh.MarshalPrivateKey(privKey.key, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(priv)
	if encoded == nil {
		return nil, ErrPEMEncode
	}
	return encoded, nil
}

// Converts the 'ed25519.PrivateKey' to an 'ssh.Signer'.
func (privKey ED25519PrivateKey) ToSSH() (ssh.Signer, error) {
	return ssh.NewSignerFromKey(privKey.key)
}

var (
	ErrKeyRead  = fmt.Errorf("failed to read SSH private key file")
	ErrKeyParse = fmt.Errorf("failed to parse SSH private key")
)

// LoadSigner reads a PEM-encoded OpenSSH private key file and returns it as
// an 'ssh.Signer' for outbound connection authentication.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyRead, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyParse, err)
	}
	return signer, nil
}
