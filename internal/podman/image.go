package podman

// Image is a read-only snapshot of one record from podman's list or inspect
// JSON output. The full payload is kept opaque so the result record can
// surface everything podman reported; only the fields the reconciliation
// logic depends on get typed accessors.
type Image map[string]any

// Digest returns the image digest, reading the "Digest" key with a fallback
// to lowercase "digest" for older podman versions.
func (i Image) Digest() string {
	if d, ok := i["Digest"].(string); ok {
		return d
	}
	if d, ok := i["digest"].(string); ok {
		return d
	}
	return ""
}

// Architecture returns the image architecture as reported by inspect. List
// output does not reliably carry this field.
func (i Image) Architecture() string {
	a, _ := i["Architecture"].(string)
	return a
}
