package uberapksigner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/frantjc/apkmerge/internal/amregexp"
)

// ErrJarNotFound is returned when no uber-apk-signer
// release jar can be found.
var ErrJarNotFound = errors.New("uber-apk-signer jar not found")

// Command represents a `java` executable and the
// uber-apk-signer release jar that it runs.
type Command struct {
	Java string
	Jar  string
}

func (c Command) String() string {
	return c.Java + " -jar " + c.Jar
}

// LookPath reports the resolved location of the `java` executable
// and errors if the release jar does not exist.
func (c Command) LookPath() (string, error) {
	if c.Jar == "" {
		return "", ErrJarNotFound
	}

	if fi, err := os.Stat(c.Jar); err != nil {
		return "", err
	} else if fi.IsDir() {
		return "", ErrJarNotFound
	}

	return exec.LookPath(c.Java)
}

// SignOpts represent flags that can be passed to uber-apk-signer.
type SignOpts struct {
	OutputDirectory string
}

// Sign zipaligns and signs the .apk at name with uber-apk-signer's
// debug keystore. Without an OutputDirectory or Overwrite, the signed
// .apk is written next to name with a "-aligned-debugSigned" suffix.
func (c Command) Sign(ctx context.Context, name string, opts *SignOpts) error {
	args := []string{"-jar", c.Jar, "--apks", name}

	if opts != nil {
		if opts.OutputDirectory != "" {
			args = append(args, "--out", opts.OutputDirectory)
		}
	}

	//nolint:gosec
	return exec.CommandContext(ctx, c.Java, args...).Run()
}

// FindJar returns the uber-apk-signer release jar in the first
// of dirs that contains one. When a directory contains more than
// one release, the lexically greatest name is returned.
func FindJar(dirs ...string) (string, error) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		jars := []string{}
		for _, entry := range entries {
			if !entry.IsDir() && amregexp.IsSignerJar(entry.Name()) {
				jars = append(jars, entry.Name())
			}
		}

		if len(jars) > 0 {
			sort.Strings(jars)
			return filepath.Join(dir, jars[len(jars)-1]), nil
		}
	}

	return "", ErrJarNotFound
}
