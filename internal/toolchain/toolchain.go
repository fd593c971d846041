package toolchain

import (
	"context"
	"os"
	"path/filepath"

	"github.com/frantjc/apkmerge/apktool"
	"github.com/frantjc/apkmerge/keytool"
	"github.com/frantjc/apkmerge/uberapksigner"
	"github.com/go-logr/logr"
)

// Adapter runs the decompiler, compiler and signer as
// external processes, one at a time, blocking until each exits.
type Adapter struct {
	APKTool apktool.Command
	Signer  uberapksigner.Command
	Keytool keytool.Command
}

type Opt func(*Adapter)

func WithAPKTool(name string) Opt {
	return func(a *Adapter) {
		a.APKTool = apktool.Command(name)
	}
}

func WithJava(name string) Opt {
	return func(a *Adapter) {
		a.Signer.Java = name
	}
}

func WithSignerJar(jar string) Opt {
	return func(a *Adapter) {
		a.Signer.Jar = jar
	}
}

func WithKeytool(name string) Opt {
	return func(a *Adapter) {
		a.Keytool = keytool.Command(name)
	}
}

func New(opts ...Opt) *Adapter {
	a := &Adapter{
		APKTool: "apktool",
		Signer:  uberapksigner.Command{Java: "java"},
		Keytool: "keytool",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// LookupDecompiler checks that apktool can be found.
func (a *Adapter) LookupDecompiler() error {
	if _, err := a.APKTool.LookPath(); err != nil {
		return NotFound(a.APKTool.String(), err)
	}

	return nil
}

// LookupCompiler checks that apktool can be found. apktool is both
// the decompiler and the compiler, but they are checked independently.
func (a *Adapter) LookupCompiler() error {
	return a.LookupDecompiler()
}

// LookupSigner checks that java and the uber-apk-signer jar can be found.
func (a *Adapter) LookupSigner() error {
	if _, err := a.Signer.LookPath(); err != nil {
		return NotFound(a.Signer.String(), err)
	}

	return nil
}

// Decompile decodes the .apk at name into dir, replacing dir if it exists.
func (a *Adapter) Decompile(ctx context.Context, name, dir string) error {
	logr.FromContextOrDiscard(ctx).V(1).Info("running", "command", a.APKTool.String(), "subcommand", "decode", "apk", name, "output", dir)

	return Wrap(a.APKTool.String(), a.APKTool.Decode(ctx, name, &apktool.DecodeOpts{
		Force:           true,
		OutputDirectory: dir,
	}))
}

// Compile builds the decoded tree at dir into dir/dist, ignoring
// anything apktool cached from an earlier build of dir.
func (a *Adapter) Compile(ctx context.Context, dir string) error {
	logr.FromContextOrDiscard(ctx).V(1).Info("running", "command", a.APKTool.String(), "subcommand", "build", "dir", dir)

	return Wrap(a.APKTool.String(), a.APKTool.Build(ctx, dir, &apktool.BuildOpts{ForceAll: true}))
}

// Sign signs the .apk at name, writing the signed .apk next to it.
func (a *Adapter) Sign(ctx context.Context, name string) error {
	logr.FromContextOrDiscard(ctx).V(1).Info("running", "command", a.Signer.String(), "apk", name)

	return Wrap(a.Signer.String(), a.Signer.Sign(ctx, name, &uberapksigner.SignOpts{
		OutputDirectory: filepath.Dir(name),
	}))
}

// Fingerprint returns the SHA-256 fingerprint of the certificate that signed the .apk at name.
func (a *Adapter) Fingerprint(ctx context.Context, name string) (string, error) {
	if _, err := os.Stat(name); err != nil {
		return "", err
	}

	fingerprint, err := a.Keytool.SHA256CertFingerprints(ctx, name)
	if err != nil {
		return "", Wrap(a.Keytool.String(), err)
	}

	return fingerprint, nil
}
