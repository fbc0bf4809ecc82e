package podman

import (
	"fmt"
	"strings"
)

// Push transports supported by podman. Each transport has its own addressing
// syntax, which ResolveDestination encodes.
const (
	TransportDir           = "dir"
	TransportDocker        = "docker"
	TransportDockerArchive = "docker-archive"
	TransportDockerDaemon  = "docker-daemon"
	TransportOCIArchive    = "oci-archive"
	TransportOstree        = "ostree"
)

// ResolveDestination computes the final push destination string from the
// image name, its tag, the qualified reference, and the user-supplied
// destination and transport hints.
//
// The qualified reference (or its name and tag, when the name is bare) is
// appended to the base destination, then the transport's addressing syntax
// is applied. The result must look like a path, a digest pin, or a daemon
// address; anything else is a configuration error.
func ResolveDestination(name, tag, qualified, dest, transport string) (string, error) {
	if dest == "" {
		dest = qualified
	}

	if !strings.Contains(qualified, "/") {
		dest = fmt.Sprintf("%s/%s:%s", dest, name, tag)
	} else {
		dest = fmt.Sprintf("%s/%s", dest, qualified)
	}

	resolved := dest
	switch transport {
	case "":
		// no transport, use the destination as computed
	case TransportDocker:
		resolved = fmt.Sprintf("%s://%s", transport, dest)
	case TransportOstree:
		resolved = fmt.Sprintf("%s:%s@%s", transport, name, dest)
	default:
		// docker-daemon requires an explicit tag and defaults to latest
		if transport == TransportDockerDaemon && !strings.Contains(dest, ":") {
			resolved = fmt.Sprintf("%s:%s:latest", transport, dest)
		} else {
			resolved = fmt.Sprintf("%s:%s", transport, dest)
		}
	}

	if err := validateDestination(resolved); err != nil {
		return "", err
	}

	return resolved, nil
}

// validateDestination guards against a destination that is neither a path,
// a digest pin, nor a recognized scheme.
func validateDestination(dest string) error {
	if !strings.Contains(dest, "/") && !strings.Contains(dest, "@") &&
		!strings.Contains(dest, TransportDockerDaemon) {
		return wrapPodmanError(ErrInvalidDestination, dest)
	}
	return nil
}
