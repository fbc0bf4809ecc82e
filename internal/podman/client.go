package podman

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/imagectl/imagectl/pkg/executer"
	"github.com/imagectl/imagectl/pkg/log"
)

const (
	defaultPodmanCmd = "podman"

	// Builds and pulls of large images are slow; the timeout exists only to
	// bound a wedged podman, not to pace normal operation.
	defaultTimeout = 10 * time.Minute
)

// Client drives the podman executable through an executer. Every method
// blocks until the invocation completes; there is no retry.
type Client struct {
	exec    executer.Executer
	log     *log.PrefixLogger
	podman  string
	timeout time.Duration
	observe func(cmd string)
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithExecutable overrides the podman executable path.
func WithExecutable(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.podman = path
		}
	}
}

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithCommandObserver registers a callback invoked with every executed
// command line. Callers use it to keep an audit trail.
func WithCommandObserver(fn func(cmd string)) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}

func NewClient(log *log.PrefixLogger, exec executer.Executer, opts ...ClientOption) *Client {
	c := &Client{
		exec:    exec,
		log:     log,
		podman:  defaultPodmanCmd,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, args ...string) (string, string, int) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := strings.Join(append([]string{c.podman}, args...), " ")
	c.log.Debugf("%s", cmd)
	if c.observe != nil {
		c.observe(cmd)
	}

	return c.exec.ExecuteWithContext(ctx, c.podman, args...)
}

// List returns the image records matching ref from local storage. The list
// output is cheap but architecture-incomplete on some podman versions; use
// Inspect for authoritative metadata.
func (c *Client) List(ctx context.Context, ref string) ([]Image, error) {
	stdout, _, _ := c.run(ctx, "image", "ls", ref, "--format", "json")

	var images []Image
	if err := json.Unmarshal([]byte(stdout), &images); err != nil {
		return nil, wrapPodmanError(ErrParseOutput, "podman image ls: "+stdout)
	}
	return images, nil
}

// Exists reports whether ref is present in local storage.
func (c *Client) Exists(ctx context.Context, ref string) bool {
	_, _, exitCode := c.run(ctx, "image", "exists", ref)
	return exitCode == 0
}

// Inspect returns the full metadata records for ref.
func (c *Client) Inspect(ctx context.Context, ref string) ([]Image, error) {
	stdout, stderr, exitCode := c.run(ctx, "inspect", ref, "--format", "json")
	if exitCode != 0 {
		return nil, wrapPodmanError(ErrInspect, stderr)
	}

	var images []Image
	if err := json.Unmarshal([]byte(stdout), &images); err != nil {
		return nil, wrapPodmanError(ErrParseOutput, "podman inspect: "+stdout)
	}
	return images, nil
}

// ListIDs returns all local image identifiers with any sha256: prefix
// stripped.
func (c *Client) ListIDs(ctx context.Context) ([]string, error) {
	stdout, stderr, exitCode := c.run(ctx, "image", "ls", "--quiet", "--no-trunc")
	if exitCode != 0 {
		return nil, wrapPodmanError(ErrListImageIDs, stderr)
	}

	var ids []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids = append(ids, strings.TrimPrefix(line, "sha256:"))
	}
	return ids, nil
}

// Pull pulls ref and returns the resolved identifier podman reports on the
// last line of its quiet output.
func (c *Client) Pull(ctx context.Context, ref string, o PullOptions) (string, error) {
	args, err := PullArgs(ref, o)
	if err != nil {
		return "", err
	}

	stdout, stderr, exitCode := c.run(ctx, args...)
	if exitCode != 0 {
		return "", wrapPodmanError(ErrPull, stderr)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// Build builds ref from contextDir and returns the combined build log. The
// identifier of the produced image is embedded in the log text, not returned
// as structured data.
func (c *Client) Build(ctx context.Context, ref, contextDir string, o BuildOptions) (string, error) {
	args, err := BuildArgs(ref, contextDir, o)
	if err != nil {
		return "", err
	}

	stdout, stderr, exitCode := c.run(ctx, args...)
	if exitCode != 0 {
		return "", wrapPodmanError(ErrBuild, stdout+" "+stderr)
	}
	return stdout + stderr, nil
}

// Push pushes ref to the already resolved destination and returns the
// combined output.
func (c *Client) Push(ctx context.Context, ref, dest string, o PushOptions) (string, error) {
	args, err := PushArgs(ref, dest, o)
	if err != nil {
		return "", err
	}

	stdout, stderr, exitCode := c.run(ctx, args...)
	if exitCode != 0 {
		return "", wrapPodmanError(ErrPush, stdout+" "+stderr)
	}
	return stdout + stderr, nil
}

// Remove removes target, which may be a qualified reference or a bare id.
func (c *Client) Remove(ctx context.Context, target string, force bool) (string, error) {
	stdout, stderr, exitCode := c.run(ctx, RemoveArgs(target, force)...)
	if exitCode != 0 {
		return "", wrapPodmanError(ErrRemove, stderr)
	}
	return stdout, nil
}
