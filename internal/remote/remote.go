// Package remote covers the two interactions with the instance's own OS: the
// best-effort mesh-VPN logout issued before termination, and the interactive
// shell handoff issued by 'connect'. The interactive session is delegated to
// the system ssh binary; only the non-interactive logout uses an in-process
// SSH client.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"
	"golang.org/x/crypto/ssh"

	"github.com/sergical/openclaw-ec2-setup/internal/sshkey"
	"github.com/sergical/openclaw-ec2-setup/internal/state"
)

const (
	sshPort    = "22"
	sshTimeout = 10 * time.Second
)

// Host executes commands against the provisioned instance using the local
// record's address and key.
type Host struct{}

var (
	ErrDial        = fmt.Errorf("failed to establish SSH connection")
	ErrSessionInit = fmt.Errorf("failed to begin SSH session")
	ErrCmdExec     = fmt.Errorf("remote command did not exit cleanly")
)

// MeshLogout disconnects the instance from the Tailscale mesh so the device
// entry does not linger as an orphaned, unreachable peer after termination.
// Callers treat failure as tolerated: the instance may already be unreachable.
func (Host) MeshLogout(ctx context.Context, rec state.Record) error {
	log := clog.FromContext(ctx)

	signer, err := sshkey.LoadSigner(rec.KeyPath)
	if err != nil {
		return err
	}
	config := &ssh.ClientConfig{
		User:            rec.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host key is unknowable for a freshly-built box
		Timeout:         sshTimeout,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(rec.Address, sshPort), config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDial, err)
	}
	defer client.Close()

	cmd := shellquote.Join("sudo", "tailscale", "logout")
	log.Info("logging instance out of the mesh", "address", rec.Address)
	if _, stderr, err := execOnce(client, cmd); err != nil {
		return fmt.Errorf("%w: %s", err, stderr)
	}
	return nil
}

func execOnce(client *ssh.Client, cmd string) (string, string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	defer session.Close()

	stdout := new(bytes.Buffer)
	session.Stdout = stdout
	stderr := new(bytes.Buffer)
	session.Stderr = stderr
	if err := session.Run(cmd); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("%w: %w", ErrCmdExec, err)
	}
	return stdout.String(), stderr.String(), nil
}

// Shell hands the terminal off to the system ssh binary for an interactive
// session. It blocks until the session ends and returns its exit error, if
// any. The external transport owns everything from here: agent forwarding,
// known-hosts policy, terminal allocation.
func (Host) Shell(ctx context.Context, rec state.Record) error {
	log := clog.FromContext(ctx)

	args := []string{
		"-i", rec.KeyPath,
		"-o", "StrictHostKeyChecking=accept-new",
		fmt.Sprintf("%s@%s", rec.User, rec.Address),
	}
	log.Info("handing off to ssh", "target", args[len(args)-1])

	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
