package podman

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParseOutput is returned when list or inspect output is not valid JSON.
	ErrParseOutput = errors.New("failed to parse JSON output")
	// ErrInvalidDestination is returned when a push destination is neither a
	// path, a digest pin, nor a recognized transport scheme.
	ErrInvalidDestination = errors.New("destination must be a full URL or path to a directory")
	// ErrTokenize is returned when a free-form extra-argument string cannot
	// be split with shell-word rules.
	ErrTokenize = errors.New("failed to tokenize extra arguments")

	ErrListImages  = errors.New("failed to list images")
	ErrInspect     = errors.New("failed to inspect image")
	ErrPull        = errors.New("failed to pull image")
	ErrBuild       = errors.New("failed to build image")
	ErrPush        = errors.New("failed to push image")
	ErrRemove      = errors.New("failed to remove image")
	ErrListImageIDs = errors.New("failed to list image ids")
)

// wrapPodmanError attaches the captured command output to a sentinel error.
func wrapPodmanError(err error, detail string) error {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, detail)
}
