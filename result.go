package apkmerge

// Result is the terminal state of a Pipeline run.
type Result struct {
	RunID string
	// Artifact is the path to the rebuilt, unsigned .apk.
	Artifact string
	// SignedArtifact is the path to the signed .apk, if signing succeeded.
	SignedArtifact string
	// Fingerprint is the SHA-256 fingerprint of the certificate
	// that SignedArtifact was signed with, if it could be read.
	Fingerprint string
	// Digest is the digest of the final artifact.
	Digest string
	// Package and Version describe the application.
	Package string
	Version string
	// Merged lists every path merged into the base tree, in order.
	Merged []string
	// Skipped lists every path that was not merged because it already existed.
	Skipped []string
	// Published is the key the final artifact was uploaded to, if any.
	Published string
	// Warnings are non-fatal failures, such as failing to sign.
	Warnings []error
	// Err is the fatal failure of the run, if any. It is a *StageError.
	Err error
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Final returns the path to the artifact that the run ultimately produced,
// preferring the signed artifact over the unsigned one.
func (r *Result) Final() string {
	if r.SignedArtifact != "" {
		return r.SignedArtifact
	}

	return r.Artifact
}

// Unsigned reports whether an artifact was produced
// that was meant to be signed, but was not.
func (r *Result) Unsigned(cfg Config) bool {
	return cfg.Sign && r.Artifact != "" && r.SignedArtifact == ""
}

// FailedStage returns the Stage that the run failed at, if any.
func (r *Result) FailedStage() (Stage, bool) {
	return StageOf(r.Err)
}
