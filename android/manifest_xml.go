package android

import (
	"encoding/xml"
	"fmt"
	"os"
)

const (
	AndroidManifestName = "AndroidManifest.xml"
	// Namespace is the XML namespace of the android: attributes.
	Namespace = "http://schemas.android.com/apk/res/android"
	// ContentTypeAPK is the media type of an .apk.
	ContentTypeAPK = "application/vnd.android.package-archive"
)

type Manifest struct {
	XMLName        xml.Name                 `xml:"manifest"`
	UsesPermission []ManifestUsesPermission `xml:"uses-permission"`
	UsesFeature    []ManifestUsesFeature    `xml:"uses-feature"`
	Application    ManifestApplication      `xml:"application"`
	Attrs          []xml.Attr               `xml:",any,attr"`
}

// ReadManifestFile decodes the textual AndroidManifest.xml at name,
// as found at the root of a decoded tree.
func ReadManifestFile(name string) (*Manifest, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	manifest := &Manifest{}
	if err := xml.NewDecoder(f).Decode(manifest); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return manifest, nil
}

func (m *Manifest) Package() string {
	return attr(m.Attrs, "", "package")
}

// Split returns the name of the split that this manifest belongs to.
// It is empty for the base split.
func (m *Manifest) Split() string {
	return attr(m.Attrs, "", "split")
}

// RequiredSplitTypes returns the android:requiredSplitTypes attribute.
func (m *Manifest) RequiredSplitTypes() string {
	return attr(m.Attrs, Namespace, "requiredSplitTypes")
}

// SplitTypes returns the android:splitTypes attribute.
func (m *Manifest) SplitTypes() string {
	return attr(m.Attrs, Namespace, "splitTypes")
}

// Metadata returns the android:value of the <application>-level
// <meta-data> named name and whether it exists.
func (m *Manifest) Metadata(name string) (string, bool) {
	for _, metadata := range m.Application.Metadata {
		if metadata.Name() == name {
			return metadata.Value(), true
		}
	}

	return "", false
}

type ManifestUsesPermission struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type ManifestUsesFeature struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type ManifestApplication struct {
	Metadata []ManifestMetadata `xml:"meta-data"`
	Attrs    []xml.Attr         `xml:",any,attr"`
}

type ManifestMetadata struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

func (m *ManifestMetadata) Name() string {
	return attr(m.Attrs, Namespace, "name")
}

func (m *ManifestMetadata) Value() string {
	return attr(m.Attrs, Namespace, "value")
}

func attr(attrs []xml.Attr, space, local string) string {
	for _, a := range attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}

	return ""
}
