package podman

import (
	"fmt"
	"sort"

	"github.com/anmitsu/go-shlex"
)

// Auth carries registry access configuration shared by pull, build, and
// push. TLSVerify is tri-state: nil emits no flag at all.
type Auth struct {
	Username  string
	Password  string
	AuthFile  string
	CertDir   string
	TLSVerify *bool
}

func (a Auth) tlsVerifyArgs() []string {
	if a.TLSVerify == nil {
		return nil
	}
	if *a.TLSVerify {
		return []string{"--tls-verify"}
	}
	return []string{"--tls-verify=false"}
}

// credsArgs emits --creds only when both username and password are set;
// podman rejects one without the other.
func (a Auth) credsArgs() []string {
	if a.Username == "" || a.Password == "" {
		return nil
	}
	return []string{"--creds", fmt.Sprintf("%s:%s", a.Username, a.Password)}
}

// PullOptions configures a podman pull invocation.
type PullOptions struct {
	Auth
	Arch      string
	ExtraArgs string
}

// BuildOptions configures a podman build invocation.
type BuildOptions struct {
	Auth
	ContainerFile string
	Volumes       []string
	Annotations   map[string]string
	Format        string
	Cache         bool
	Rm            bool
	ForceRm       bool
	Target        string
	ExtraArgs     string
}

// DefaultBuildOptions returns the build defaults podman users expect: OCI
// format, layer caching on, intermediate containers removed on success.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Format: "oci",
		Cache:  true,
		Rm:     true,
	}
}

// PushOptions configures a podman push invocation. Dest and Transport feed
// the destination resolver, not the flag list.
type PushOptions struct {
	Auth
	Dest             string
	Transport        string
	Format           string
	Compress         bool
	RemoveSignatures bool
	SignBy           string
	ExtraArgs        string
}

// PullArgs builds the argument list for pulling ref. Pure function of its
// inputs; the only error source is tokenizing ExtraArgs.
func PullArgs(ref string, o PullOptions) ([]string, error) {
	args := []string{"pull", ref, "-q"}

	if o.Arch != "" {
		args = append(args, "--arch", o.Arch)
	}
	if o.AuthFile != "" {
		args = append(args, "--authfile", o.AuthFile)
	}
	args = append(args, o.credsArgs()...)
	args = append(args, o.tlsVerifyArgs()...)
	if o.CertDir != "" {
		args = append(args, "--cert-dir", o.CertDir)
	}

	return appendExtraArgs(args, o.ExtraArgs)
}

// BuildArgs builds the argument list for building ref from contextDir.
func BuildArgs(ref, contextDir string, o BuildOptions) ([]string, error) {
	args := []string{"build", "-t", ref}

	args = append(args, o.tlsVerifyArgs()...)
	for _, k := range sortedKeys(o.Annotations) {
		args = append(args, "--annotation", fmt.Sprintf("%s=%s", k, o.Annotations[k]))
	}
	if o.CertDir != "" {
		args = append(args, "--cert-dir", o.CertDir)
	}
	if o.ForceRm {
		args = append(args, "--force-rm")
	}
	if o.Format != "" {
		args = append(args, "--format", o.Format)
	}
	if !o.Cache {
		args = append(args, "--no-cache")
	}
	if o.Rm {
		args = append(args, "--rm")
	}
	if o.ContainerFile != "" {
		args = append(args, "--file", o.ContainerFile)
	}
	for _, v := range o.Volumes {
		args = append(args, "--volume", v)
	}
	if o.AuthFile != "" {
		args = append(args, "--authfile", o.AuthFile)
	}
	args = append(args, o.credsArgs()...)

	args, err := appendExtraArgs(args, o.ExtraArgs)
	if err != nil {
		return nil, err
	}

	if o.Target != "" {
		args = append(args, "--target", o.Target)
	}

	return append(args, contextDir), nil
}

// PushArgs builds the argument list for pushing ref to the already resolved
// destination string.
func PushArgs(ref, dest string, o PushOptions) ([]string, error) {
	args := []string{"push"}

	args = append(args, o.tlsVerifyArgs()...)
	if o.CertDir != "" {
		args = append(args, "--cert-dir", o.CertDir)
	}
	args = append(args, o.credsArgs()...)
	if o.AuthFile != "" {
		args = append(args, "--authfile", o.AuthFile)
	}
	if o.Compress {
		args = append(args, "--compress")
	}
	if o.Format != "" {
		args = append(args, "--format", o.Format)
	}
	if o.RemoveSignatures {
		args = append(args, "--remove-signatures")
	}
	if o.SignBy != "" {
		args = append(args, "--sign-by", o.SignBy)
	}

	args, err := appendExtraArgs(args, o.ExtraArgs)
	if err != nil {
		return nil, err
	}

	return append(args, ref, dest), nil
}

// RemoveArgs builds the argument list for removing target, which may be a
// qualified reference or a bare image id.
func RemoveArgs(target string, force bool) []string {
	args := []string{"rmi", target}
	if force {
		args = append(args, "--force")
	}
	return args
}

func appendExtraArgs(args []string, extra string) ([]string, error) {
	if extra == "" {
		return args, nil
	}
	words, err := shlex.Split(extra, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTokenize, extra, err)
	}
	return append(args, words...), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
