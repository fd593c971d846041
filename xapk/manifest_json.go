package xapk

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/frantjc/apkmerge"
)

const (
	ManifestName = "manifest.json"
)

// Manifest is the manifest.json at the root of an .xapk.
type Manifest struct {
	XAPKVersion      int                   `json:"xapk_version,omitempty"`
	PackageName      string                `json:"package_name,omitempty"`
	Name             string                `json:"name,omitempty"`
	VersionCode      string                `json:"version_code,omitempty"`
	VersionName      string                `json:"version_name,omitempty"`
	MinSDKVersion    string                `json:"min_sdk_version,omitempty"`
	TargetSDKVersion string                `json:"target_sdk_version,omitempty"`
	Permissions      []string              `json:"permissions,omitempty"`
	SplitConfigs     []string              `json:"split_configs,omitempty"`
	SplitAPKs        []apkmerge.SplitEntry `json:"split_apks"`
}

func decodeManifest(r io.Reader) (*Manifest, error) {
	manifest := &Manifest{}
	if err := json.NewDecoder(r).Decode(manifest); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ManifestName, err)
	}

	return manifest, nil
}
