package amregexp

import "regexp"

var (
	APK       = regexp.MustCompile(`(?i)^[^/\\]+\.apk$`)
	XAPK      = regexp.MustCompile(`(?i)^[^/\\]+\.xapk$`)
	SignerJar = regexp.MustCompile(`(?i)^uber-apk-signer[\w.-]*\.jar$`)
	SplitID   = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)
)
