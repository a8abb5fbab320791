package loader

import (
	"errors"
	"fmt"
)

// ErrManifestNotFound is returned when no manifest.json exists at the
// resolved path.
var ErrManifestNotFound = errors.New("manifest not found")

// ManifestError reports a manifest or project file that could not be
// decoded.
type ManifestError struct {
	File    string
	Message string
}

func (e *ManifestError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}
