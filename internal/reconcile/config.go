package reconcile

import (
	"errors"

	"github.com/imagectl/imagectl/internal/image"
	"github.com/imagectl/imagectl/internal/podman"
)

// ErrInvalidConfig is returned for configurations the engine cannot act on,
// such as a build with neither context path nor Containerfile.
var ErrInvalidConfig = errors.New("invalid configuration")

// State is the desired state of an image.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
	StateBuild   State = "build"
	StateQuadlet State = "quadlet"
)

// DefaultTag is applied when the image name carries no tag or digest.
const DefaultTag = "latest"

// Desired is a tagged desired-state variant. Each variant carries only the
// fields its state can act on, so impossible combinations (push options on
// an absent image, build options on a quadlet) cannot be expressed.
type Desired interface {
	State() State
}

// Present converges toward the image existing in local storage: pull it, or
// build it when a build context is configured. Force re-pulls or re-builds
// even when the image already exists.
type Present struct {
	Force bool
	// Pull gates whether a missing image may be fetched. The lookup still
	// runs either way; when false, a failed fetch reports that the image was
	// not found locally instead of a pull failure.
	Pull          bool
	PullExtraArgs string
	// Path is the build context directory. When set, a missing image is
	// built rather than pulled.
	Path  string
	Build *podman.BuildOptions
	Push  *podman.PushOptions
}

func (Present) State() State { return StatePresent }

// Build always builds the image (subject to force/existence rules shared
// with Present) and requires a build context or Containerfile.
type Build struct {
	Force   bool
	Path    string
	Options podman.BuildOptions
	Push    *podman.PushOptions
}

func (Build) State() State { return StateBuild }

// Absent removes the image by qualified name, or by bare identifier when
// the name does not resolve.
type Absent struct {
	Force bool
}

func (Absent) State() State { return StateAbsent }

// Quadlet writes a .image quadlet unit for the image instead of touching
// local storage.
type Quadlet struct {
	Dir      string
	Filename string
	Options  []string
}

func (Quadlet) State() State { return StateQuadlet }

// Config is the immutable, normalized input for one reconciliation run.
type Config struct {
	// Name is the raw image name; a tag or digest embedded in it wins over
	// Tag.
	Name string
	// Tag applies when Name carries no version of its own.
	Tag string
	// Arch filters lookups to a target architecture.
	Arch string
	// Executable is the podman binary to drive (default "podman").
	Executable string
	// CheckMode reports intended mutations without performing them.
	CheckMode bool
	// Auth applies to every pull, build, and push in the run.
	Auth podman.Auth

	Desired Desired
}

// Reference returns the parsed image reference with the default tag applied.
func (c Config) Reference() image.Reference {
	tag := c.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return image.NewReference(c.Name, tag)
}
