package amblob

import (
	"path"

	xslice "github.com/frantjc/x/slice"
)

// ArtifactKey returns the key that the artifact named name
// of version of the application pkg is published under.
func ArtifactKey(pkg, version, name string) string {
	return path.Join(
		xslice.Coalesce(pkg, "unknown"),
		xslice.Coalesce(version, "latest"),
		path.Base(name),
	)
}
