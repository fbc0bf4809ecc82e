package image

import (
	"strings"
)

// Reference identifies an image by repository and a tag or digest. Exactly
// one of the two names the version; which one is in play is encoded in the
// Tag value itself (a digest carries a "sha256" marker).
type Reference struct {
	Repository string
	Tag        string
}

// NewReference splits raw into repository and tag, falling back to
// defaultTag when raw carries no version of its own.
func NewReference(raw, defaultTag string) Reference {
	repo, tag := ParseRepositoryTag(raw)
	if tag == "" {
		tag = defaultTag
	}
	return Reference{Repository: repo, Tag: tag}
}

// String returns the qualified form: repository plus tag or digest joined
// with the correct delimiter. A tag that looks like a digest is joined with
// "@", anything else with ":".
func (r Reference) String() string {
	delimiter := ":"
	if strings.Contains(r.Tag, "sha256") {
		delimiter = "@"
	}
	return r.Repository + delimiter + r.Tag
}

// ParseRepositoryTag splits a raw image name into repository and tag. A
// digest ("@" suffix) always wins. A ":" suffix counts as a tag only when it
// contains no "/", which distinguishes a tag from a registry port such as
// "host:5000/name". Any string is accepted; tag is empty when raw carries
// no version.
func ParseRepositoryTag(raw string) (string, string) {
	if repo, digest, ok := rcut(raw, "@"); ok {
		return repo, digest
	}
	if repo, tag, ok := rcut(raw, ":"); ok && !strings.Contains(tag, "/") {
		return repo, tag
	}
	return raw, ""
}

// StripTag returns everything before the first ":" in a qualified
// reference. This is the bare-identifier form used for removal by image id.
func StripTag(qualified string) string {
	bare, _, _ := strings.Cut(qualified, ":")
	return bare
}

// rcut is strings.Cut splitting on the rightmost occurrence of sep.
func rcut(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
