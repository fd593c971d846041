package apktool

import (
	"fmt"
	"os"
	"path/filepath"

	xslice "github.com/frantjc/x/slice"
	xstrings "github.com/frantjc/x/strings"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	// MetadataName is the name of the file apktool writes
	// its build metadata to at the root of a decoded tree.
	MetadataName = "apktool.yml"
	// DistDirName is the directory under a decoded tree
	// that `apktool build` writes its output to.
	DistDirName = "dist"
)

type UsesFramework struct {
	IDs []int `yaml:"ids"`
	Tag any   `yaml:"tag"`
}

type SDKInfo struct {
	MinSDKVersion    int `yaml:"minSdkVersion"`
	TargetSDKVersion int `yaml:"targetSdkVersion"`
}

type PackageInfo struct {
	ForcedPackageID       int `yaml:"forcedPackageId"`
	RenameManifestPackage any `yaml:"renameManifestPackage"`
}

type VersionInfo struct {
	VersionCode int    `yaml:"versionCode"`
	VersionName string `yaml:"versionName"`
}

type Metadata struct {
	Version                string         `yaml:"version,omitempty"`
	APKFileName            string         `yaml:"apkFileName,omitempty"`
	IsFrameworkAPK         bool           `yaml:"isFrameworkApk,omitempty"`
	UsesFramework          *UsesFramework `yaml:"usesFramework,omitempty"`
	SDKInfo                *SDKInfo       `yaml:"sdkInfo,omitempty"`
	PackageInfo            *PackageInfo   `yaml:"packageInfo,omitempty"`
	VersionInfo            *VersionInfo   `yaml:"versionInfo,omitempty"`
	ResourcesAreCompressed bool           `yaml:"resourcesAreCompressed,omitempty"`
	SharedLibrary          bool           `yaml:"sharedLibrary,omitempty"`
	SparseResources        bool           `yaml:"sparseResources,omitempty"`
	UnknownFiles           map[string]int `yaml:"unknownFiles,omitempty"`
	DoNotCompress          []string       `yaml:"doNotCompress,omitempty"`
}

// ReadMetadata decodes the apktool.yml at the root of the decoded tree dir.
func ReadMetadata(dir string) (*Metadata, error) {
	f, err := os.Open(filepath.Join(dir, MetadataName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	metadata := &Metadata{}
	if err := yaml.NewDecoder(f).Decode(metadata); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataName, err)
	}

	return metadata, nil
}

// AppVersion returns the application's version as a canonical semver string,
// preferring the version name over apktool's version over the version code.
// It returns the empty string if none of those are a valid semver.
func (m *Metadata) AppVersion() string {
	var (
		versionName string
		versionCode string
	)
	if m.VersionInfo != nil {
		versionName = m.VersionInfo.VersionName
		if m.VersionInfo.VersionCode > 0 {
			versionCode = fmt.Sprint(m.VersionInfo.VersionCode)
		}
	}

	return semver.Canonical(
		xstrings.EnsurePrefix(
			xslice.Coalesce(versionName, m.Version, versionCode),
			"v",
		),
	)
}
