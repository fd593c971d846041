package amregexp

import "path/filepath"

// IsAPK reports whether the base name of name looks like an .apk.
func IsAPK(name string) bool {
	return APK.MatchString(filepath.Base(name))
}

// IsXAPK reports whether the base name of name looks like an .xapk container.
func IsXAPK(name string) bool {
	return XAPK.MatchString(filepath.Base(name))
}

// IsSignerJar reports whether the base name of name looks like a release of uber-apk-signer.
func IsSignerJar(name string) bool {
	return SignerJar.MatchString(filepath.Base(name))
}

func IsSplitID(id string) bool {
	return SplitID.MatchString(id)
}
