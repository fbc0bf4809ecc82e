package image

import (
	"strings"
)

// DefaultBuildMarker is the prefix podman uses to report the image produced
// by each build stage.
const DefaultBuildMarker = "-->"

// LastBuildID extracts the identifier of the final image from free-form
// build log text. Lines starting with marker or containing contains
// contribute their trailing token. Older podman versions emit only the bare
// identifier when run quietly, so if no line matches, every non-empty line
// is a candidate. The final stage's identifier always appears last.
func LastBuildID(log, marker, contains string) string {
	var candidates []string
	for _, line := range strings.Split(log, "\n") {
		if line == "" {
			continue
		}
		matched := marker != "" && strings.HasPrefix(line, marker) ||
			contains != "" && strings.Contains(line, contains)
		if matched {
			candidates = append(candidates, trailingToken(line))
		}
	}

	if len(candidates) == 0 {
		for _, line := range strings.Split(log, "\n") {
			if line != "" {
				candidates = append(candidates, line)
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[len(candidates)-1]
}

// trailingToken returns the text after the last single space in line, or the
// whole line when it contains no space.
func trailingToken(line string) string {
	i := strings.LastIndex(line, " ")
	if i < 0 {
		return line
	}
	return line[i+1:]
}
