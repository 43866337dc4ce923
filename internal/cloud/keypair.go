package cloud

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/sergical/openclaw-ec2-setup/internal/sshkey"
)

var (
	ErrKeyImport = fmt.Errorf("failed public key import to AWS")
	ErrKeyWrite  = fmt.Errorf("failed to write private key file")
)

// ImportKeyPair generates a fresh ED25519 keypair, imports the public half to
// AWS under a unique name, and writes the private half to 'dir'. It returns
// the AWS key name and the private key path. The private key outlives this
// process: it is how the operator reaches the instance for its whole life.
func (c *Client) ImportKeyPair(ctx context.Context, stem, dir string) (keyName, keyPath string, err error) {
	log := clog.FromContext(ctx)

	keys, err := sshkey.NewED25519KeyPair()
	if err != nil {
		return "", "", err
	}
	pubKey, err := keys.Public.MarshalOpenSSH()
	if err != nil {
		return "", "", err
	}

	keyName = fmt.Sprintf("%s-%s", stem, uuid.New().String())
	result, err := c.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(keyName),
		PublicKeyMaterial: pubKey,
		TagSpecifications: tagSpecification(types.ResourceTypeKeyPair, keyName),
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrKeyImport, err)
	}
	log.Info("imported key pair", "id", aws.ToString(result.KeyPairId), "name", keyName)

	pemData, err := keys.Private.MarshalOpenSSH(keyName)
	if err != nil {
		return "", "", err
	}
	keyPath = filepath.Join(dir, keyName+".pem")
	if err := os.WriteFile(keyPath, pemData, 0o600); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrKeyWrite, err)
	}
	log.Info("saved private key", "path", keyPath)

	return keyName, keyPath, nil
}

// DeleteKeyPair removes the AWS-side key and the local private key file. The
// AWS key name is recoverable from the key file's basename since ImportKeyPair
// names them identically. Called on terminate; failure is tolerated by the
// caller.
func (c *Client) DeleteKeyPair(ctx context.Context, keyPath string) error {
	log := clog.FromContext(ctx)
	keyName := strings.TrimSuffix(filepath.Base(keyPath), ".pem")
	log.Info("deleting key pair", "name", keyName)

	_, err := c.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(keyName),
	})
	if err != nil {
		return fmt.Errorf("deleting key pair from AWS: %w", err)
	}
	if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing private key file: %w", err)
	}
	return nil
}
