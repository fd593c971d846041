package android

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/shogo82148/androidbinary"
)

// ReadAPKManifest decodes the binary AndroidManifest.xml
// packaged inside of the .apk at name.
func ReadAPKManifest(name string) (*Manifest, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	f, err := zr.Open(AndroidManifestName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	xmlFile, err := androidbinary.NewXMLFile(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: parse binary %s: %w", name, AndroidManifestName, err)
	}

	manifest := &Manifest{}
	if err := xml.NewDecoder(xmlFile.Reader()).Decode(manifest); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", name, AndroidManifestName, err)
	}

	return manifest, nil
}
