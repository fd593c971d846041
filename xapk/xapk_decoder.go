package xapk

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/frantjc/apkmerge"
	"github.com/go-logr/logr"
)

const (
	// BaseDirName is the directory under a Layout's Dir that the base split is decoded into.
	BaseDirName = "base"
	// SplitsDirName is the directory under a Layout's Dir that the other splits are written to.
	SplitsDirName = "splits"
)

var (
	ErrManifestNotFound = errors.New(ManifestName + " not found in .xapk")
)

// Decompiler decodes the .apk at name into the directory dir.
type Decompiler interface {
	Decompile(ctx context.Context, name, dir string) error
}

// Layout is an .xapk unpacked into the inputs of an apkmerge.Pipeline.
type Layout struct {
	Dir      string
	Manifest *Manifest
	// BaseSplit is the entry of Manifest.SplitAPKs that is the base split.
	BaseSplit *apkmerge.SplitEntry
	// Base is the decoded tree of the base split.
	Base string
	// Splits is the directory holding every other split.
	Splits string
}

type XAPKDecoder struct {
	Name string

	manifest *Manifest
}

func NewXAPKDecoder(name string) *XAPKDecoder {
	return &XAPKDecoder{Name: name}
}

func (x *XAPKDecoder) zipReader() (*zip.ReadCloser, error) {
	return zip.OpenReader(x.Name)
}

func (x *XAPKDecoder) manifestFromZipReader(zr *zip.Reader) (*Manifest, error) {
	if x.manifest != nil {
		return x.manifest, nil
	}

	for _, zf := range zr.File {
		if strings.EqualFold(ManifestName, zf.Name) {
			f, err := zf.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()

			if x.manifest, err = decodeManifest(f); err != nil {
				return nil, err
			}

			return x.manifest, nil
		}
	}

	return nil, ErrManifestNotFound
}

// Manifest reads the manifest.json of the .xapk.
func (x *XAPKDecoder) Manifest(_ context.Context) (*Manifest, error) {
	zr, err := x.zipReader()
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return x.manifestFromZipReader(&zr.Reader)
}

// Unpack writes the splits listed by the .xapk's manifest.json under dir
// and decodes its base split with d. Only the files that manifest.json
// lists as splits are read out of the .xapk.
func (x *XAPKDecoder) Unpack(ctx context.Context, d Decompiler, dir string) (*Layout, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("xapk", x.Name)

	zr, err := x.zipReader()
	if err != nil {
		return nil, apkmerge.NewStageError(apkmerge.StageValidate, err)
	}
	defer zr.Close()

	manifest, err := x.manifestFromZipReader(&zr.Reader)
	if err != nil {
		return nil, apkmerge.NewStageError(apkmerge.StageValidate, err)
	}

	base, err := apkmerge.ValidateSplitEntries(manifest.SplitAPKs)
	if err != nil {
		return nil, err
	}

	layout := &Layout{
		Dir:       dir,
		Manifest:  manifest,
		BaseSplit: base,
		Base:      filepath.Join(dir, BaseDirName),
		Splits:    filepath.Join(dir, SplitsDirName),
	}

	if err := os.MkdirAll(layout.Splits, 0o755); err != nil {
		return nil, apkmerge.NewStageError(apkmerge.StageValidate, err)
	}

	baseAPK := filepath.Join(dir, base.File)

	for _, entry := range manifest.SplitAPKs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dst := filepath.Join(layout.Splits, entry.File)
		if entry.IsBase() {
			dst = baseAPK
		}

		log.V(1).Info("extracting split", "id", entry.ID, "file", entry.File)

		if err := extract(&zr.Reader, entry.File, dst); err != nil {
			return nil, apkmerge.NewSplitError(apkmerge.StageValidate, entry.File, err)
		}
	}

	log.V(1).Info("decoding base split", "file", base.File)

	if err := d.Decompile(ctx, baseAPK, layout.Base); err != nil {
		return nil, apkmerge.NewSplitError(apkmerge.StageDecompile, base.File, err)
	}

	return layout, nil
}

// extract writes the file name in zr to dst.
func extract(zr *zip.Reader, name, dst string) error {
	if !fs.ValidPath(name) {
		return fmt.Errorf("invalid path %q", name)
	}

	f, err := zr.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	} else if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", name)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, f); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
