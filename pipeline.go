package apkmerge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/frantjc/apkmerge/android"
	"github.com/frantjc/apkmerge/apktool"
	"github.com/frantjc/apkmerge/internal/amblob"
	"github.com/frantjc/apkmerge/internal/amregexp"
	"github.com/frantjc/apkmerge/internal/merge"
	xslice "github.com/frantjc/x/slice"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

// Toolchain runs the external tools that a Pipeline orchestrates.
// Each method blocks until the tool exits.
type Toolchain interface {
	LookupDecompiler() error
	LookupCompiler() error
	LookupSigner() error
	// Decompile decodes the .apk at name into the directory dir.
	Decompile(ctx context.Context, name, dir string) error
	// Compile builds the decoded tree at dir into dir/dist.
	Compile(ctx context.Context, dir string) error
	// Sign signs the .apk at name, writing the signed .apk next to it.
	Sign(ctx context.Context, name string) error
	// Fingerprint returns the SHA-256 fingerprint of the certificate the .apk at name is signed with.
	Fingerprint(ctx context.Context, name string) (string, error)
}

// Pipeline merges the split .apks of an application into its base
// split's decoded tree and rebuilds that tree into a single .apk.
type Pipeline struct {
	Config
	Toolchain Toolchain

	handlers []EventHandler
	inspect  func(string) (*android.Manifest, error)
}

type PipelineOpt func(*Pipeline)

// WithEventHandler adds h to the EventHandlers of the Pipeline.
func WithEventHandler(h EventHandler) PipelineOpt {
	return func(p *Pipeline) {
		p.handlers = append(p.handlers, h)
	}
}

// WithInspector replaces how the Pipeline reads the manifest of
// a split .apk when Config.VerifyPackages is set.
func WithInspector(inspect func(name string) (*android.Manifest, error)) PipelineOpt {
	return func(p *Pipeline) {
		p.inspect = inspect
	}
}

func NewPipeline(toolchain Toolchain, cfg Config, opts ...PipelineOpt) *Pipeline {
	p := &Pipeline{
		Config:    cfg,
		Toolchain: toolchain,
		inspect:   android.ReadAPKManifest,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run merges every split .apk in splitsDir into the decoded tree baseDir,
// then rewrites its manifest, rebuilds it and, if configured, signs and
// publishes the result. Stages run strictly one after another. A failed
// stage stops the run, but nothing that earlier stages did to baseDir is
// undone. Running two Pipelines against the same baseDir at once is not
// supported.
func (p *Pipeline) Run(ctx context.Context, baseDir, splitsDir string) *Result {
	r := &run{
		Pipeline:  p,
		id:        uuid.NewString(),
		base:      baseDir,
		splitsDir: splitsDir,
	}
	r.result = &Result{RunID: r.id}

	ctx = logr.NewContext(ctx, logr.FromContextOrDiscard(ctx).WithValues("run", r.id))

	if r.result.Err = r.do(ctx); r.result.Err == nil {
		r.emit(Event{Type: EventStageSucceeded, Stage: StageDone, Path: r.result.Final()})
	}

	return r.result
}

type run struct {
	*Pipeline
	id        string
	base      string
	splitsDir string
	work      string
	splits    []string
	record    *merge.Record
	merger    *merge.Merger
	result    *Result
}

func (r *run) do(ctx context.Context) error {
	if err := r.stage(StageValidate, "", func() error {
		return r.validate()
	}); err != nil {
		return err
	}

	if err := r.decompileAndMerge(ctx); err != nil {
		return err
	}

	if err := r.stage(StageManifest, "", r.rewriteManifest); err != nil {
		return err
	}

	if err := r.stage(StageRebuild, "", func() error {
		return r.rebuild(ctx)
	}); err != nil {
		return err
	}

	for _, s := range []struct {
		stage   Stage
		enabled bool
		fn      func(context.Context) error
	}{
		{StageSign, r.Sign, r.sign},
		{StagePublish, r.PublishURL != "", r.publish},
	} {
		if !s.enabled {
			continue
		}

		if err := r.stage(s.stage, "", func() error {
			return s.fn(ctx)
		}); err != nil {
			if s.stage.Fatal() {
				return err
			}

			r.result.Warnings = append(r.result.Warnings, err)
		}
	}

	return nil
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	for _, h := range r.handlers {
		h.HandleEvent(e)
	}
}

// stage runs fn as stage, emitting its lifecycle Events
// and attributing any error it returns to stage.
func (r *run) stage(stage Stage, split string, fn func() error) error {
	r.emit(Event{Type: EventStageStarted, Stage: stage, Split: split})

	if err := fn(); err != nil {
		if split != "" {
			err = NewSplitError(stage, split, err)
		} else {
			err = NewStageError(stage, err)
		}

		r.emit(Event{Type: EventStageFailed, Stage: stage, Split: split, Err: err})
		return err
	}

	r.emit(Event{Type: EventStageSucceeded, Stage: stage, Split: split})

	return nil
}

// validate checks everything that the run depends on without changing anything.
func (r *run) validate() error {
	errs := []error{}

	for _, dir := range []string{r.base, r.splitsDir} {
		if fi, err := os.Stat(dir); err != nil {
			errs = append(errs, err)
		} else if !fi.IsDir() {
			errs = append(errs, fmt.Errorf("%s is not a directory", dir))
		}
	}

	if err := r.Toolchain.LookupDecompiler(); err != nil {
		errs = append(errs, fmt.Errorf("decompiler: %w", err))
	}

	if err := r.Toolchain.LookupCompiler(); err != nil {
		errs = append(errs, fmt.Errorf("compiler: %w", err))
	}

	if r.Sign {
		if err := r.Toolchain.LookupSigner(); err != nil {
			errs = append(errs, fmt.Errorf("signer: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	var err error
	if r.splits, err = listAPKs(r.splitsDir); err != nil {
		return err
	} else if len(r.splits) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSplits, r.splitsDir)
	}

	// The manifest is only required to exist by the manifest stage,
	// so failing to read it here is not yet an error.
	manifest, manifestErr := android.ReadManifestFile(filepath.Join(r.base, android.AndroidManifestName))
	if manifestErr == nil {
		r.result.Package = manifest.Package()
	}

	if metadata, err := apktool.ReadMetadata(r.base); err == nil {
		r.result.Version = metadata.AppVersion()
	}

	if r.VerifyPackages {
		if manifestErr != nil {
			return fmt.Errorf("read package of base tree: %w", manifestErr)
		}

		for _, split := range r.splits {
			splitManifest, err := r.inspect(split)
			if err != nil {
				errs = append(errs, err)
			} else if pkg := splitManifest.Package(); pkg != r.result.Package {
				errs = append(errs, fmt.Errorf("%w: %s belongs to %q, not %q", ErrPackageMismatch, filepath.Base(split), pkg, r.result.Package))
			}
		}
	}

	return errors.Join(errs...)
}

// decompileAndMerge decodes each split in file name order and
// merges it into the base tree as soon as it has been decoded.
func (r *run) decompileAndMerge(ctx context.Context) error {
	work, cleanup, err := r.workDir()
	if err != nil {
		return r.fail(StageDecompile, "", err)
	}
	defer cleanup()

	r.work = work
	r.merger = &merge.Merger{Root: work, Strict: r.Strict}

	if r.record, err = merge.OpenRecord(filepath.Join(r.base, apktool.MetadataName)); err != nil {
		return r.fail(StageMerge, "", err)
	}
	defer r.record.Close()

	decode, stop := r.decodeInOrder(ctx)
	if r.Concurrency > 1 {
		decode, stop = r.decodeAhead(ctx)
	}
	defer stop()

	for i, split := range r.splits {
		var (
			name = filepath.Base(split)
			dir  = r.decodedDir(i)
		)

		if err := r.stage(StageDecompile, name, func() error {
			return decode(i)
		}); err != nil {
			return err
		}

		r.emit(Event{Type: EventSplitDecoded, Stage: StageDecompile, Split: name, Path: dir})

		if err := r.stage(StageMerge, name, func() error {
			return r.mergeSplit(ctx, name, dir)
		}); err != nil {
			return err
		}
	}

	return nil
}

func (r *run) fail(stage Stage, split string, err error) error {
	err = NewSplitError(stage, split, err)
	r.emit(Event{Type: EventStageFailed, Stage: stage, Split: split, Err: err})
	return err
}

func (r *run) workDir() (string, func(), error) {
	if r.OutputDir != "" {
		return r.OutputDir, func() {}, os.MkdirAll(r.OutputDir, 0o755)
	}

	dir := filepath.Join(os.TempDir(), "apkmerge-"+r.id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, err
	}

	if r.KeepWorkDir {
		return dir, func() {}, nil
	}

	return dir, func() {
		_ = os.RemoveAll(dir)
	}, nil
}

func (r *run) decodedDir(i int) string {
	return filepath.Join(r.work, filepath.Base(r.splits[i]))
}

// decodeInOrder decodes split i when asked to.
func (r *run) decodeInOrder(ctx context.Context) (func(int) error, func()) {
	return func(i int) error {
		return r.decompile(ctx, i)
	}, func() {}
}

func (r *run) decompile(ctx context.Context, i int) error {
	ctx, cancel := r.toolContext(ctx)
	defer cancel()

	return r.Toolchain.Decompile(ctx, r.splits[i], r.decodedDir(i))
}

// toolContext bounds a single tool invocation by ToolTimeout.
func (r *run) toolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.ToolTimeout > 0 {
		return context.WithTimeout(ctx, r.ToolTimeout)
	}

	return context.WithCancel(ctx)
}

// decodeAhead decodes up to Concurrency splits in the background, in
// order, and waits for split i to finish decoding when asked for it.
// The returned func cancels outstanding decodes and waits for them to exit.
func (r *run) decodeAhead(ctx context.Context) (func(int) error, func()) {
	type job struct {
		done chan struct{}
		err  error
	}

	var (
		jobs     = make([]*job, len(r.splits))
		eg       = new(errgroup.Group)
		launched = make(chan struct{})
	)
	ctx, cancel := context.WithCancel(ctx)
	eg.SetLimit(r.Concurrency)

	for i := range jobs {
		jobs[i] = &job{done: make(chan struct{})}
	}

	go func() {
		defer close(launched)

		for i, j := range jobs {
			eg.Go(func() error {
				defer close(j.done)

				if j.err = ctx.Err(); j.err == nil {
					j.err = r.decompile(ctx, i)
				}

				return nil
			})
		}
	}()

	return func(i int) error {
			<-jobs[i].done
			return jobs[i].err
		}, func() {
			cancel()
			<-launched
			_ = eg.Wait()
		}
}

func (r *run) mergeSplit(ctx context.Context, name, dir string) error {
	report, err := r.merger.Merge(ctx, dir, r.base, r.record)

	for _, path := range report.Merged {
		r.emit(Event{Type: EventFileMerged, Stage: StageMerge, Split: name, Path: path})
	}

	for _, path := range report.Skipped {
		r.emit(Event{Type: EventFileSkipped, Stage: StageMerge, Split: name, Path: path})
	}

	r.result.Merged = append(r.result.Merged, report.Merged...)
	r.result.Skipped = append(r.result.Skipped, report.Skipped...)

	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		r.result.Warnings = append(r.result.Warnings, NewSplitError(StageMerge, name, err))
	}

	return nil
}

func (r *run) rewriteManifest() error {
	changes, err := android.RewriteManifestFile(filepath.Join(r.base, android.AndroidManifestName))
	if err != nil {
		return err
	}

	for _, attr := range changes.RemovedAttrs {
		r.emit(Event{Type: EventManifestEdited, Stage: StageManifest, Path: android.AndroidManifestName, Detail: "removed attribute android:" + attr})
	}

	for _, name := range changes.RemovedMetadata {
		r.emit(Event{Type: EventManifestEdited, Stage: StageManifest, Path: android.AndroidManifestName, Detail: "removed meta-data " + name})
	}

	names := make([]string, 0, len(changes.RewrittenValues))
	for name := range changes.RewrittenValues {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r.emit(Event{Type: EventManifestEdited, Stage: StageManifest, Path: android.AndroidManifestName, Detail: "set meta-data " + name + " to " + changes.RewrittenValues[name]})
	}

	return nil
}

func (r *run) rebuild(ctx context.Context) error {
	dist := filepath.Join(r.base, apktool.DistDirName)

	if r.CleanDist {
		stale, err := listAPKs(dist)
		if err != nil {
			return err
		}

		for _, name := range stale {
			if err := os.Remove(name); err != nil {
				return err
			}
		}
	}

	toolCtx, cancel := r.toolContext(ctx)
	defer cancel()

	if err := r.Toolchain.Compile(toolCtx, r.base); err != nil {
		return err
	}

	apks, err := listAPKs(dist)
	if err != nil {
		return err
	}

	switch len(apks) {
	case 0:
		return fmt.Errorf("%w in %s", ErrNoOutput, dist)
	case 1:
	default:
		return fmt.Errorf("%w in %s: %s", ErrAmbiguousOutput, dist, strings.Join(xslice.Map(apks, func(name string, _ int) string {
			return filepath.Base(name)
		}), ", "))
	}

	r.result.Artifact = apks[0]

	dig, err := digestFile(r.result.Artifact)
	if err != nil {
		return err
	}
	r.result.Digest = dig.String()

	r.emit(Event{Type: EventArtifact, Stage: StageRebuild, Path: r.result.Artifact, Detail: r.result.Digest})

	return nil
}

func (r *run) sign(ctx context.Context) error {
	dist := filepath.Dir(r.result.Artifact)

	before, err := listAPKs(dist)
	if err != nil {
		return err
	}

	signCtx, cancel := r.toolContext(ctx)
	defer cancel()

	if err := r.Toolchain.Sign(signCtx, r.result.Artifact); err != nil {
		return err
	}

	after, err := listAPKs(dist)
	if err != nil {
		return err
	}

	signed := []string{}
	for _, name := range after {
		if !xslice.Includes(before, name) {
			signed = append(signed, name)
		}
	}

	switch len(signed) {
	case 0:
		return fmt.Errorf("locate signed artifact: %w in %s", ErrNoOutput, dist)
	case 1:
	default:
		return fmt.Errorf("locate signed artifact: %w in %s", ErrAmbiguousOutput, dist)
	}

	r.result.SignedArtifact = signed[0]

	dig, err := digestFile(r.result.SignedArtifact)
	if err != nil {
		return err
	}
	r.result.Digest = dig.String()

	r.emit(Event{Type: EventArtifact, Stage: StageSign, Path: r.result.SignedArtifact, Detail: r.result.Digest})

	// The signed artifact exists at this point, so not being
	// able to describe its certificate is only worth a warning.
	fingerprintCtx, cancel := r.toolContext(ctx)
	defer cancel()

	if r.result.Fingerprint, err = r.Toolchain.Fingerprint(fingerprintCtx, r.result.SignedArtifact); err != nil {
		r.result.Warnings = append(r.result.Warnings, NewStageError(StageSign, fmt.Errorf("read certificate fingerprint: %w", err)))
	}

	return nil
}

func (r *run) publish(ctx context.Context) error {
	var (
		name = r.result.Final()
		key  = amblob.ArtifactKey(r.result.Package, r.result.Version, name)
	)

	if err := amblob.Publish(ctx, r.PublishURL, key, name); err != nil {
		return err
	}

	r.result.Published = key

	return nil
}

// listAPKs returns the paths of the .apk files directly inside dir,
// sorted by file name. A dir that does not exist contains none.
func listAPKs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	apks := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && amregexp.IsAPK(entry.Name()) {
			apks = append(apks, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(apks)

	return apks, nil
}

func digestFile(name string) (digest.Digest, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return digest.FromReader(f)
}
