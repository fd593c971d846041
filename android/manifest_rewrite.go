package android

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

const (
	MetadataSplitsRequired  = "com.android.vending.splits.required"
	MetadataSplits          = "com.android.vending.splits"
	MetadataStampType       = "com.android.stamp.type"
	MetadataDerivedAPKID    = "com.android.vending.derived.apk.id"
	StampTypeStandaloneAPK  = "STAMP_TYPE_STANDALONE_APK"
	DerivedAPKIDBase        = "1"
	AttrRequiredSplitTypes  = "requiredSplitTypes"
	AttrSplitTypes          = "splitTypes"
	xmlDeclarationTarget    = "xml"
	xmlDeclarationDirective = `version="1.0" encoding="utf-8"`
)

var (
	splitAttrs    = []string{AttrRequiredSplitTypes, AttrSplitTypes}
	splitMetadata = []string{MetadataSplitsRequired, MetadataSplits}
)

// ManifestChanges describes the edits RewriteManifest made.
type ManifestChanges struct {
	RemovedAttrs    []string
	RemovedMetadata []string
	RewrittenValues map[string]string
}

// Changed reports whether any edit was made.
func (c *ManifestChanges) Changed() bool {
	return len(c.RemovedAttrs) > 0 || len(c.RemovedMetadata) > 0 || len(c.RewrittenValues) > 0
}

// RewriteManifest strips every marker of split delivery from doc so that
// the application it describes installs as a single, standalone APK:
// the android:requiredSplitTypes and android:splitTypes attributes of the
// root element, the <application>-level <meta-data> declaring splits, and
// the stamp type and derived APK ID <meta-data> values anywhere in doc.
// Applying it to its own result changes nothing.
func RewriteManifest(doc *etree.Document) (*ManifestChanges, error) {
	changes := &ManifestChanges{RewrittenValues: map[string]string{}}

	root := doc.Root()
	if root == nil || root.Tag != "manifest" {
		return nil, fmt.Errorf("no <manifest> root element")
	}

	attrs := root.Attr[:0]
	for _, a := range root.Attr {
		if a.NamespaceURI() == Namespace && contains(splitAttrs, a.Key) {
			changes.RemovedAttrs = append(changes.RemovedAttrs, a.Key)
			continue
		}
		attrs = append(attrs, a)
	}
	root.Attr = attrs

	for _, application := range root.SelectElements("application") {
		for _, metadata := range application.SelectElements("meta-data") {
			if name := androidAttr(metadata, "name"); name != nil && contains(splitMetadata, name.Value) {
				application.RemoveChild(metadata)
				changes.RemovedMetadata = append(changes.RemovedMetadata, name.Value)
			}
		}
	}

	walk(root, func(e *etree.Element) {
		if e.Tag != "meta-data" {
			return
		}

		name := androidAttr(e, "name")
		if name == nil {
			return
		}

		switch name.Value {
		case MetadataStampType:
			setAndroidAttr(e, name, "value", StampTypeStandaloneAPK, changes)
		case MetadataDerivedAPKID:
			setAndroidAttr(e, name, "value", DerivedAPKIDBase, changes)
		}
	})

	ensureDeclaration(doc)

	return changes, nil
}

// RewriteManifestBytes parses b, rewrites it with RewriteManifest and serializes the result.
func RewriteManifestBytes(b []byte) ([]byte, *ManifestChanges, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}

	changes, err := RewriteManifest(doc)
	if err != nil {
		return nil, nil, err
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, nil, err
	}

	return out, changes, nil
}

// RewriteManifestFile rewrites the AndroidManifest.xml at name in place.
// The result is written to a temporary file next to name and renamed over it,
// so name is never left partially written.
func RewriteManifestFile(name string) (*ManifestChanges, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	out, changes, err := RewriteManifestBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if bytes.Equal(b, out) {
		return changes, nil
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return nil, err
	}

	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if err := os.Chmod(tmp.Name(), fi.Mode().Perm()); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp.Name(), name); err != nil {
		return nil, err
	}

	return changes, nil
}

func androidAttr(e *etree.Element, key string) *etree.Attr {
	for i := range e.Attr {
		if e.Attr[i].Key == key && e.Attr[i].NamespaceURI() == Namespace {
			return &e.Attr[i]
		}
	}

	return nil
}

// setAndroidAttr sets the android: attribute key of e to value. A new
// attribute takes the prefix of name, which must be in the android namespace.
func setAndroidAttr(e *etree.Element, name *etree.Attr, key, value string, changes *ManifestChanges) {
	var (
		metadata = name.Value
		prefix   = name.Space
	)

	a := androidAttr(e, key)
	if a == nil {
		e.CreateAttr(prefix+":"+key, value)
	} else if a.Value == value {
		return
	} else {
		a.Value = value
	}

	changes.RewrittenValues[metadata] = value
}

// ensureDeclaration inserts an XML declaration at the top of doc if it lacks one.
func ensureDeclaration(doc *etree.Document) {
	for _, t := range doc.Child {
		if pi, ok := t.(*etree.ProcInst); ok && pi.Target == xmlDeclarationTarget {
			return
		}
	}

	doc.InsertChildAt(0, etree.NewProcInst(xmlDeclarationTarget, xmlDeclarationDirective))
}

func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, child := range e.ChildElements() {
		walk(child, fn)
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
