package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imagectl/imagectl/internal/image"
	"github.com/imagectl/imagectl/internal/podman"
	"github.com/imagectl/imagectl/internal/quadlet"
	"github.com/imagectl/imagectl/pkg/executer"
	"github.com/imagectl/imagectl/pkg/log"
)

// Result is the outcome of one reconciliation run. On failure it is returned
// alongside the error with whatever actions, commands, and metadata were
// accumulated before the fatal step.
type Result struct {
	// Changed is true only when a mutation actually executed (or, in check
	// mode, would have executed). Lookups never set it.
	Changed bool `json:"changed"`
	// Actions is the human-readable log of what the run did or would do.
	Actions []string `json:"actions"`
	// Commands is the audit trail of every podman command line executed.
	Commands []string `json:"podman_actions"`
	// Images holds the last image records observed.
	Images []podman.Image `json:"image"`
	// Stdout is the captured output of the mutating commands.
	Stdout string `json:"stdout"`
}

// Engine sequences locate, build, pull, push, and remove operations to
// converge an image onto its desired state. Runs are synchronous and
// independent; the engine holds no state between them.
type Engine struct {
	log  *log.PrefixLogger
	exec executer.Executer
}

func NewEngine(log *log.PrefixLogger, exec executer.Executer) *Engine {
	return &Engine{
		log:  log,
		exec: exec,
	}
}

// Reconcile converges the configured image and reports what happened. Any
// command failure is fatal; there is no retry.
func (e *Engine) Reconcile(ctx context.Context, cfg Config) (*Result, error) {
	result := &Result{
		Actions:  []string{},
		Commands: []string{},
	}

	client := podman.NewClient(e.log, e.exec,
		podman.WithExecutable(cfg.Executable),
		podman.WithCommandObserver(func(cmd string) {
			result.Commands = append(result.Commands, cmd)
		}),
	)

	r := &run{
		cfg:     cfg,
		ref:     cfg.Reference(),
		client:  client,
		locator: NewLocator(e.log, client),
		result:  result,
	}

	var err error
	switch desired := cfg.Desired.(type) {
	case Present:
		err = r.converge(ctx, convergePlan{
			force:         desired.Force,
			pullGate:      desired.Pull,
			pullExtraArgs: desired.PullExtraArgs,
			path:          desired.Path,
			build:         desired.Build,
			push:          desired.Push,
		})
	case Build:
		opts := desired.Options
		err = r.converge(ctx, convergePlan{
			force:         desired.Force,
			pullGate:      true,
			path:          desired.Path,
			build:         &opts,
			buildRequired: true,
			push:          desired.Push,
		})
	case Absent:
		err = r.absent(ctx, desired)
	case Quadlet:
		err = r.quadlet(desired)
	default:
		err = fmt.Errorf("%w: no desired state", ErrInvalidConfig)
	}

	return result, err
}

// run carries the per-reconciliation state shared by the state handlers.
type run struct {
	cfg     Config
	ref     image.Reference
	client  *podman.Client
	locator *Locator
	result  *Result
}

// convergePlan is the shared shape of the present and build states.
type convergePlan struct {
	force         bool
	pullGate      bool
	pullExtraArgs string
	path          string
	build         *podman.BuildOptions
	buildRequired bool
	push          *podman.PushOptions
}

func (r *run) converge(ctx context.Context, plan convergePlan) error {
	qualified := r.ref.String()

	images, err := r.locator.Locate(ctx, qualified, r.cfg.Arch)
	if err != nil {
		return err
	}

	var digestBefore string
	if len(images) > 0 {
		digestBefore = images[0].Digest()
	}

	if len(images) == 0 || plan.force {
		if plan.buildRequired || plan.path != "" {
			images, err = r.build(ctx, plan)
		} else {
			images, err = r.pull(ctx, plan)
		}
		if err != nil {
			return err
		}

		if r.cfg.CheckMode {
			r.result.Changed = true
		} else {
			if len(images) == 0 {
				images, err = r.locator.Locate(ctx, qualified, r.cfg.Arch)
				if err != nil {
					return err
				}
			}

			var digestAfter string
			if len(images) > 0 {
				digestAfter = images[0].Digest()
			}
			r.result.Changed = digestBefore != digestAfter
		}
	}

	if plan.push != nil {
		if err := r.push(ctx, *plan.push); err != nil {
			return err
		}
	}

	if len(images) > 0 && len(r.result.Images) == 0 {
		r.result.Images = images
	}
	return nil
}

func (r *run) build(ctx context.Context, plan convergePlan) ([]podman.Image, error) {
	qualified := r.ref.String()

	opts := podman.DefaultBuildOptions()
	if plan.build != nil {
		opts = *plan.build
	}
	opts.Auth = r.cfg.Auth

	path := plan.path
	if path == "" && opts.ContainerFile != "" {
		path = filepath.Dir(opts.ContainerFile)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: path to build context or file is required when building an image", ErrInvalidConfig)
	}

	r.result.Actions = append(r.result.Actions, fmt.Sprintf("Built image %s from %s", qualified, path))
	if r.cfg.CheckMode {
		return nil, nil
	}

	out, err := r.client.Build(ctx, qualified, path, opts)
	if err != nil {
		return nil, fmt.Errorf("build image %s: %w", qualified, err)
	}
	r.result.Stdout = out

	id := image.LastBuildID(out, image.DefaultBuildMarker, "")
	images, err := r.client.Inspect(ctx, id)
	if err != nil {
		return nil, err
	}
	r.result.Images = images
	return images, nil
}

func (r *run) pull(ctx context.Context, plan convergePlan) ([]podman.Image, error) {
	qualified := r.ref.String()

	r.result.Actions = append(r.result.Actions, fmt.Sprintf("Pulled image %s", qualified))
	if r.cfg.CheckMode {
		return nil, nil
	}

	resolved, err := r.client.Pull(ctx, qualified, podman.PullOptions{
		Auth:      r.cfg.Auth,
		Arch:      r.cfg.Arch,
		ExtraArgs: plan.pullExtraArgs,
	})
	if err != nil {
		if !plan.pullGate {
			return nil, fmt.Errorf("failed to find image %s locally, image pull is disabled: %w", qualified, err)
		}
		return nil, fmt.Errorf("pull image %s: %w", qualified, err)
	}

	images, err := r.client.Inspect(ctx, resolved)
	if err != nil {
		return nil, err
	}
	r.result.Images = images
	return images, nil
}

func (r *run) push(ctx context.Context, opts podman.PushOptions) error {
	qualified := r.ref.String()

	dest, err := podman.ResolveDestination(r.ref.Repository, r.ref.Tag, qualified, opts.Dest, opts.Transport)
	if err != nil {
		return err
	}

	if strings.Contains(qualified, "/") {
		r.result.Actions = append(r.result.Actions, fmt.Sprintf("Pushed image %s", qualified))
	} else {
		r.result.Actions = append(r.result.Actions, fmt.Sprintf("Pushed image %s to %s", qualified, dest))
	}
	// remote state is not locally observable, so a real push always counts
	// as a change
	r.result.Changed = true

	if !r.cfg.CheckMode {
		opts.Auth = r.cfg.Auth
		out, err := r.client.Push(ctx, qualified, dest, opts)
		if err != nil {
			return fmt.Errorf("push image %s to %s: %w", qualified, dest, err)
		}
		r.result.Stdout = strings.TrimPrefix(r.result.Stdout+"\n"+out, "\n")
	}

	images, err := r.client.Inspect(ctx, qualified)
	if err != nil {
		return err
	}
	r.result.Images = images
	return nil
}

func (r *run) absent(ctx context.Context, desired Absent) error {
	qualified := r.ref.String()

	images, err := r.locator.Locate(ctx, qualified, r.cfg.Arch)
	if err != nil {
		return err
	}

	if len(images) > 0 {
		r.result.Actions = append(r.result.Actions, fmt.Sprintf("Removed image %s", r.ref.Repository))
		r.result.Changed = true
		r.result.Images = []podman.Image{{"state": "Deleted"}}
		if !r.cfg.CheckMode {
			out, err := r.client.Remove(ctx, qualified, desired.Force)
			if err != nil {
				return fmt.Errorf("remove image %s: %w", qualified, err)
			}
			r.result.Stdout = out
		}
		return nil
	}

	// the name may still resolve as an untagged identifier prefix
	id, err := r.locator.FindID(ctx, qualified)
	if err != nil {
		return err
	}
	if id != "" {
		r.result.Actions = append(r.result.Actions, fmt.Sprintf("Removed image with id %s", qualified))
		r.result.Changed = true
		r.result.Images = []podman.Image{{"state": "Deleted"}}
		if !r.cfg.CheckMode {
			out, err := r.client.Remove(ctx, id, desired.Force)
			if err != nil {
				return fmt.Errorf("remove image with id %s: %w", id, err)
			}
			r.result.Stdout = out
		}
	}
	return nil
}

func (r *run) quadlet(desired Quadlet) error {
	dir := desired.Dir
	if dir == "" {
		dir = quadlet.DefaultDirectory()
	}
	filename := desired.Filename
	if filename == "" {
		filename = quadlet.DefaultFilename(r.ref.Repository)
	}

	unitPath, changed, err := quadlet.WriteImageUnit(dir, filename, r.ref.String(), desired.Options, r.cfg.CheckMode)
	if err != nil {
		return err
	}
	if changed {
		r.result.Actions = append(r.result.Actions, fmt.Sprintf("Wrote quadlet file %s", unitPath))
	}
	r.result.Changed = changed
	return nil
}
