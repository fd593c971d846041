package apktool

import (
	"context"
	"os/exec"
)

// Command represents the path to an `apktool` executable.
type Command string

func (c Command) String() string {
	return string(c)
}

// LookPath reports the resolved location of the `apktool` executable.
func (c Command) LookPath() (string, error) {
	return exec.LookPath(c.String())
}

// DecodeOpts represent flags that can be passed to `apktool decode`.
type DecodeOpts struct {
	Force           bool
	OutputDirectory string
}

// Decode executes a command against `apktool` found at Command.
// It runs `apktool decode` against the .apk at name with flags
// derived from the given DecodeOpts.
func (c Command) Decode(ctx context.Context, name string, opts *DecodeOpts) error {
	args := []string{"decode"}

	if opts != nil {
		if opts.Force {
			args = append(args, "--force")
		}

		if opts.OutputDirectory != "" {
			args = append(args, "--output", opts.OutputDirectory)
		}
	}

	args = append(args, name)

	//nolint:gosec
	return exec.CommandContext(ctx, c.String(), args...).Run()
}

// BuildOpts represent flags that can be passed to `apktool build`.
type BuildOpts struct {
	ForceAll bool
}

// Build executes `apktool build` against the decoded tree at dir,
// writing the result to dir/dist.
func (c Command) Build(ctx context.Context, dir string, opts *BuildOpts) error {
	args := []string{"build"}

	if opts != nil {
		if opts.ForceAll {
			args = append(args, "--force-all")
		}
	}

	args = append(args, dir)

	//nolint:gosec
	return exec.CommandContext(ctx, c.String(), args...).Run()
}
