package apkmerge

import "time"

// Config controls a Pipeline. The zero value merges and
// rebuilds sequentially without signing or publishing.
type Config struct {
	// Sign signs the rebuilt artifact.
	Sign bool
	// OutputDir is where each split is decoded to before it is merged.
	// If empty, a temporary directory is created and removed after the run.
	OutputDir string
	// KeepWorkDir keeps the temporary directory used when OutputDir is empty.
	KeepWorkDir bool
	// Concurrency is the number of splits that may be decoded at once.
	// Merges are always sequential, in split file name order.
	Concurrency int
	// Strict fails the merge when two splits contribute the same
	// path instead of keeping whichever was merged first.
	Strict bool
	// CleanDist removes .apk files left in the base tree's dist
	// directory by a previous run before rebuilding.
	CleanDist bool
	// VerifyPackages checks that every split belongs to the base tree's package.
	VerifyPackages bool
	// PublishURL is the URL of a bucket to upload the artifact to, if any.
	PublishURL string
	// ToolTimeout bounds every external tool invocation. Zero means no bound.
	ToolTimeout time.Duration
}
