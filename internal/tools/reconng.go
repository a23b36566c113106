package tools

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"loom/internal/types"
)

// ReconNG drives a recon-ng installation on a remote host over SSH and
// parses the hosts table it prints into subdomain findings.
type ReconNG struct {
	host    string
	user    string
	keyPath string
}

// NewReconNG builds the recon-ng adapter. An empty host disables it.
func NewReconNG(host, user, keyPath string) *ReconNG {
	return &ReconNG{host: host, user: user, keyPath: keyPath}
}

func (r *ReconNG) Name() string        { return "recon-ng" }
func (r *ReconNG) Enabled() bool       { return r.host != "" }
func (r *ReconNG) Description() string { return "Reconnaissance framework (subdomains, hosts)" }

// Execute runs a recon-ng module batch against the target domain.
// Option "module" overrides the default hackertarget host discovery.
func (r *ReconNG) Execute(ctx context.Context, target string, options map[string]any) (types.ToolResult, error) {
	module := optString(options, "module", "recon/domains-hosts/hackertarget")

	commands := []string{
		fmt.Sprintf("recon-ng -w %s", strings.ReplaceAll(target, ".", "_")),
		fmt.Sprintf("db insert domains %s", target),
		fmt.Sprintf("modules load %s", module),
		"run",
		"show hosts",
		"exit",
	}

	output, err := r.runRemote(ctx, strings.Join(commands, " && "))
	if err != nil {
		return types.ToolResult{}, err
	}

	return successResult(r.Name(), target, parseReconHosts(output), output), nil
}

// runRemote executes command on the configured host through a dedicated
// SSH session. The connection honors ctx for dial and for teardown.
func (r *ReconNG) runRemote(ctx context.Context, command string) (string, error) {
	auth, err := r.authMethods()
	if err != nil {
		return "", err
	}

	config := &ssh.ClientConfig{
		User:            r.user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // pi-net hosts have no published keys
		Timeout:         10 * time.Second,
	}

	addr := r.host
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return "", fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	defer conn.Close()

	// Tear the connection down if the registry deadline trips mid-run.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	session, err := conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	if err := session.Run(command); err != nil {
		if ctx.Err() != nil {
			return stdout.String(), ctx.Err()
		}
		return stdout.String(), fmt.Errorf("remote command failed: %w", err)
	}
	return stdout.String(), nil
}

func (r *ReconNG) authMethods() ([]ssh.AuthMethod, error) {
	if r.keyPath == "" {
		return nil, fmt.Errorf("recon-ng ssh key not configured")
	}
	keyData, err := os.ReadFile(r.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// parseReconHosts extracts host rows from recon-ng's table output.
func parseReconHosts(output string) []types.Finding {
	var findings []types.Finding
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "|") || strings.HasPrefix(line, "+") {
			continue
		}
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && parts[1] != "" {
			findings = append(findings, types.Finding{
				Type:  "subdomain",
				Value: parts[1],
			})
		}
	}
	return findings
}
