package quadlet

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/imagectl/imagectl/internal/image"
)

const (
	// ImageExtension is the file extension for image quadlet files.
	ImageExtension = ".image"
	// ImageGroup is the section name for image specifications in quadlet files.
	ImageGroup = "Image"
	// ImageKey is the key name for image references in quadlet unit sections.
	ImageKey = "Image"

	rootUnitDir = "/etc/containers/systemd"
	userUnitDir = ".config/containers/systemd"

	unitFileMode = 0644
)

// DefaultDirectory returns where quadlet units are picked up by the systemd
// generator: the system path for root, the per-user path otherwise.
func DefaultDirectory() string {
	if os.Geteuid() == 0 {
		return rootUnitDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return rootUnitDir
	}
	return filepath.Join(home, userUnitDir)
}

// DefaultFilename derives a unit file name from an image name: the last path
// element with any tag stripped. "docker.io/library/alpine:latest" becomes
// "alpine".
func DefaultFilename(name string) string {
	base := path.Base(name)
	base = image.StripTag(base)
	if i := strings.Index(base, "@"); i >= 0 {
		base = base[:i]
	}
	return base
}

// RenderImageUnit renders an .image quadlet unit for the qualified image
// reference. Option lines are appended verbatim below the [Image] section;
// they may carry plain keys for that section or introduce sections of their
// own (e.g. an [Install] block).
func RenderImageUnit(qualified string, options []string) []byte {
	var buf bytes.Buffer

	base := unit.Serialize([]*unit.UnitOption{
		unit.NewUnitOption(ImageGroup, ImageKey, qualified),
	})
	if contents, err := io.ReadAll(base); err == nil {
		buf.Write(contents)
	}

	for _, opt := range options {
		buf.WriteString(strings.TrimRight(opt, "\n"))
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// WriteImageUnit renders the unit and reconciles it against the file at
// dir/filename(.image). It reports whether the file content changed; in
// check mode the write is skipped but the change is still reported.
func WriteImageUnit(dir, filename, qualified string, options []string, checkMode bool) (string, bool, error) {
	if !strings.HasSuffix(filename, ImageExtension) {
		filename += ImageExtension
	}
	unitPath := filepath.Join(dir, filename)
	contents := RenderImageUnit(qualified, options)

	existing, err := os.ReadFile(unitPath)
	if err == nil && bytes.Equal(existing, contents) {
		return unitPath, false, nil
	}

	if checkMode {
		return unitPath, true, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return unitPath, false, fmt.Errorf("creating quadlet directory: %w", err)
	}
	if err := os.WriteFile(unitPath, contents, unitFileMode); err != nil {
		return unitPath, false, fmt.Errorf("writing quadlet file: %w", err)
	}
	return unitPath, true, nil
}
