package main

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/imagectl/imagectl/internal/podman"
	"github.com/imagectl/imagectl/internal/reconcile"
)

// imageSpec is the YAML document accepted with --file: a list of image
// entries reconciled sequentially and independently.
type imageSpec struct {
	Images []imageEntry `yaml:"images"`
}

type imageEntry struct {
	Name          string `yaml:"name"`
	Tag           string `yaml:"tag"`
	Arch          string `yaml:"arch"`
	State         string `yaml:"state"`
	Force         bool   `yaml:"force"`
	Pull          *bool  `yaml:"pull"`
	PullExtraArgs string `yaml:"pull_extra_args"`
	Path          string `yaml:"path"`
	Executable    string `yaml:"executable"`

	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	AuthFile  string `yaml:"auth_file"`
	CertDir   string `yaml:"cert_dir"`
	TLSVerify *bool  `yaml:"validate_certs"`

	Build    *buildEntry   `yaml:"build"`
	Push     bool          `yaml:"push"`
	PushArgs *pushEntry    `yaml:"push_args"`
	Quadlet  *quadletEntry `yaml:"quadlet"`
}

type buildEntry struct {
	File        string            `yaml:"file"`
	Volumes     []string          `yaml:"volume"`
	Annotations map[string]string `yaml:"annotation"`
	Format      string            `yaml:"format"`
	Cache       *bool             `yaml:"cache"`
	Rm          *bool             `yaml:"rm"`
	ForceRm     bool              `yaml:"force_rm"`
	Target      string            `yaml:"target"`
	ExtraArgs   string            `yaml:"extra_args"`
}

type pushEntry struct {
	Dest             string `yaml:"dest"`
	Transport        string `yaml:"transport"`
	Format           string `yaml:"format"`
	Compress         bool   `yaml:"compress"`
	RemoveSignatures bool   `yaml:"remove_signatures"`
	SignBy           string `yaml:"sign_by"`
	ExtraArgs        string `yaml:"extra_args"`
}

type quadletEntry struct {
	Dir      string   `yaml:"dir"`
	Filename string   `yaml:"filename"`
	Options  []string `yaml:"options"`
}

func loadSpec(path string) ([]imageEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	var spec imageSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing spec file %s: %w", path, err)
	}
	if len(spec.Images) == 0 {
		return nil, fmt.Errorf("spec file %s contains no images", path)
	}
	return spec.Images, nil
}

// toConfig normalizes the entry into an engine configuration.
func (e imageEntry) toConfig() (reconcile.Config, error) {
	if e.Name == "" {
		return reconcile.Config{}, fmt.Errorf("image entry requires a name")
	}

	cfg := reconcile.Config{
		Name:       e.Name,
		Tag:        e.Tag,
		Arch:       e.Arch,
		Executable: e.Executable,
		Auth: podman.Auth{
			Username:  e.Username,
			Password:  e.Password,
			AuthFile:  e.AuthFile,
			CertDir:   e.CertDir,
			TLSVerify: e.TLSVerify,
		},
	}

	state := reconcile.State(lo.Ternary(e.State == "", string(reconcile.StatePresent), e.State))
	switch state {
	case reconcile.StatePresent:
		cfg.Desired = reconcile.Present{
			Force:         e.Force,
			Pull:          lo.FromPtrOr(e.Pull, true),
			PullExtraArgs: e.PullExtraArgs,
			Path:          e.Path,
			Build:         e.Build.toOptions(),
			Push:          e.pushOptions(),
		}
	case reconcile.StateBuild:
		opts := podman.DefaultBuildOptions()
		if built := e.Build.toOptions(); built != nil {
			opts = *built
		}
		cfg.Desired = reconcile.Build{
			Force:   e.Force,
			Path:    e.Path,
			Options: opts,
			Push:    e.pushOptions(),
		}
	case reconcile.StateAbsent:
		cfg.Desired = reconcile.Absent{Force: e.Force}
	case reconcile.StateQuadlet:
		var q quadletEntry
		if e.Quadlet != nil {
			q = *e.Quadlet
		}
		cfg.Desired = reconcile.Quadlet{
			Dir:      q.Dir,
			Filename: q.Filename,
			Options:  q.Options,
		}
	default:
		return reconcile.Config{}, fmt.Errorf("unsupported state %q for image %s", e.State, e.Name)
	}

	return cfg, nil
}

func (b *buildEntry) toOptions() *podman.BuildOptions {
	if b == nil {
		return nil
	}

	opts := podman.DefaultBuildOptions()
	opts.ContainerFile = b.File
	opts.Volumes = b.Volumes
	opts.Annotations = b.Annotations
	if b.Format != "" {
		opts.Format = b.Format
	}
	opts.Cache = lo.FromPtrOr(b.Cache, true)
	opts.Rm = lo.FromPtrOr(b.Rm, true)
	opts.ForceRm = b.ForceRm
	opts.Target = b.Target
	opts.ExtraArgs = b.ExtraArgs
	return &opts
}

func (e imageEntry) pushOptions() *podman.PushOptions {
	if !e.Push {
		return nil
	}

	opts := &podman.PushOptions{}
	if p := e.PushArgs; p != nil {
		opts.Dest = p.Dest
		opts.Transport = p.Transport
		opts.Format = p.Format
		opts.Compress = p.Compress
		opts.RemoveSignatures = p.RemoveSignatures
		opts.SignBy = p.SignBy
		opts.ExtraArgs = p.ExtraArgs
	}
	return opts
}
