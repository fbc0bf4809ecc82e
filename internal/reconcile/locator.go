package reconcile

import (
	"context"
	"strings"

	"github.com/imagectl/imagectl/internal/image"
	"github.com/imagectl/imagectl/internal/podman"
	"github.com/imagectl/imagectl/pkg/log"
)

// Locator finds images in local storage through a layered lookup: a cheap
// list query first, then an existence probe, then an authoritative inspect.
// The layering exists because list output is architecture-incomplete on some
// podman versions, and some versions know an image exists without listing
// it under the queried name.
type Locator struct {
	client *podman.Client
	log    *log.PrefixLogger
}

func NewLocator(log *log.PrefixLogger, client *podman.Client) *Locator {
	return &Locator{
		client: client,
		log:    log,
	}
}

// Locate returns the best-available records for the qualified reference, or
// nil when no image matches. With an arch filter, a present image whose
// first record reports a different architecture counts as no match.
func (l *Locator) Locate(ctx context.Context, qualified, arch string) ([]podman.Image, error) {
	listed, inspected, err := l.lookup(ctx, qualified)
	if err != nil {
		return nil, err
	}
	if listed == nil && inspected == nil {
		return nil, nil
	}

	if arch != "" {
		if len(inspected) == 0 || inspected[0].Architecture() != arch {
			l.log.Debugf("Image %s found but does not match arch %s", qualified, arch)
			return nil, nil
		}
	}

	// prefer the listing; it reflects the queried name, inspect the content
	if len(listed) > 0 {
		return listed, nil
	}
	return inspected, nil
}

// lookup runs the ordered list -> exists -> inspect steps, stopping at the
// first conclusive miss.
func (l *Locator) lookup(ctx context.Context, qualified string) (listed, inspected []podman.Image, err error) {
	listed, err = l.client.List(ctx, qualified)
	if err != nil {
		return nil, nil, err
	}

	if len(listed) == 0 {
		// older podman sometimes reports an existing image that the filtered
		// listing misses, so a miss here is only conclusive together with a
		// failed existence probe
		if !l.client.Exists(ctx, qualified) {
			return nil, nil, nil
		}
	}

	inspected, err = l.client.Inspect(ctx, qualified)
	if err != nil {
		return nil, nil, err
	}
	return listed, inspected, nil
}

// FindID reports the bare identifier (the qualified reference with its tag
// stripped) when some local image id has it as a prefix, or "" when none
// does.
func (l *Locator) FindID(ctx context.Context, qualified string) (string, error) {
	id := image.StripTag(qualified)

	candidates, err := l.client.ListIDs(ctx)
	if err != nil {
		return "", err
	}
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, id) {
			return id, nil
		}
	}
	return "", nil
}
