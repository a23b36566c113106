package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// dockerCLI runs one-shot containers through the local docker binary.
// The containerized adapters (theharvester, sherlock) share one instance;
// if the binary is missing or the daemon unresponsive they report
// themselves disabled instead of failing at execution time.
type dockerCLI struct {
	path      string
	available bool
}

func newDockerCLI() *dockerCLI {
	d := &dockerCLI{}
	d.detect()
	return d
}

// detect checks that docker exists and the daemon answers.
func (d *dockerCLI) detect() {
	path, err := exec.LookPath("docker")
	if err != nil {
		return
	}
	d.path = path

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		return
	}
	d.available = true
}

// Run executes `docker run --rm <image> <args...>` and returns combined
// stdout. The container is removed on exit; ctx cancellation kills it.
func (d *dockerCLI) Run(ctx context.Context, image string, args ...string) (string, error) {
	if !d.available {
		return "", fmt.Errorf("docker is not available")
	}

	runArgs := append([]string{"run", "--rm", image}, args...)
	cmd := exec.CommandContext(ctx, d.path, runArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.String(), fmt.Errorf("container %s: %w", image, ctx.Err())
		}
		return stdout.String(), fmt.Errorf("container %s: %w (stderr: %s)", image, err, stderr.String())
	}
	return stdout.String(), nil
}
