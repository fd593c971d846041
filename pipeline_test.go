package apkmerge_test

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frantjc/apkmerge"
	"github.com/frantjc/apkmerge/android"
	"github.com/frantjc/apkmerge/apktool"
	"github.com/frantjc/apkmerge/internal/merge"
	"github.com/frantjc/apkmerge/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gocloud.dev/blob/fileblob"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const manifest = `<?xml version="1.0" encoding="utf-8" standalone="no"?><manifest xmlns:android="http://schemas.android.com/apk/res/android" android:requiredSplitTypes="base__abi" android:splitTypes="" package="com.example.app">
    <application android:label="@string/app_name">
        <meta-data android:name="com.android.vending.splits.required" android:value="true"/>
        <meta-data android:name="com.android.stamp.type" android:value="STAMP_TYPE_DISTRIBUTION_APK"/>
        <meta-data android:name="com.android.vending.splits" android:resource="@xml/splits0"/>
        <meta-data android:name="com.android.vending.derived.apk.id" android:value="2"/>
    </application>
</manifest>
`

// apktool lists doNotCompress last, so merged paths extend that list.
const metadata = "version: 2.9.3\napkFileName: base.apk\nversionInfo:\n  versionCode: 10\n  versionName: 1.0.0\ndoNotCompress:\n- resources.arsc\n"

type fakeToolchain struct {
	mu sync.Mutex

	trees           map[string]map[string]string
	failDecompile   map[string]bool
	hangDecompile   bool
	notFound        bool
	signerNotFound  bool
	outputs         []string
	compileErr      error
	signErr         error
	fingerprintErr  error
	decompiled      []string
	compiled        bool
	signed          bool
	compileManifest string
}

func (f *fakeToolchain) LookupDecompiler() error {
	if f.notFound {
		return toolchain.NotFound("apktool", errors.New("executable file not found in $PATH"))
	}

	return nil
}

func (f *fakeToolchain) LookupCompiler() error {
	return f.LookupDecompiler()
}

func (f *fakeToolchain) LookupSigner() error {
	if f.signerNotFound {
		return toolchain.NotFound("java -jar", errors.New("uber-apk-signer jar not found"))
	}

	return nil
}

func (f *fakeToolchain) Decompile(ctx context.Context, name, dir string) error {
	split := filepath.Base(name)

	f.mu.Lock()
	f.decompiled = append(f.decompiled, split)
	f.mu.Unlock()

	if f.hangDecompile {
		<-ctx.Done()
		return ctx.Err()
	}

	if f.failDecompile[split] {
		return toolchain.Reported("apktool", errors.New("exit status 1"))
	}

	for rel, content := range f.trees[split] {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func (f *fakeToolchain) Compile(_ context.Context, dir string) error {
	f.compiled = true

	if f.compileErr != nil {
		return f.compileErr
	}

	b, err := os.ReadFile(filepath.Join(dir, android.AndroidManifestName))
	if err != nil {
		return err
	}
	f.compileManifest = string(b)

	if err := os.MkdirAll(filepath.Join(dir, "dist"), 0o755); err != nil {
		return err
	}

	for _, output := range f.outputs {
		if err := os.WriteFile(filepath.Join(dir, "dist", output), []byte("apk "+output), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func (f *fakeToolchain) Sign(_ context.Context, name string) error {
	f.signed = true

	if f.signErr != nil {
		return f.signErr
	}

	return os.WriteFile(strings.TrimSuffix(name, ".apk")+"-aligned-debugSigned.apk", []byte("signed"), 0o644)
}

func (f *fakeToolchain) Fingerprint(_ context.Context, _ string) (string, error) {
	if f.fingerprintErr != nil {
		return "", f.fingerprintErr
	}

	return "A4:0D:A8:0A", nil
}

type recorder struct {
	events []apkmerge.Event
}

func (r *recorder) HandleEvent(e apkmerge.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) stages(typ apkmerge.EventType) []string {
	stages := []string{}
	for _, e := range r.events {
		if e.Type == typ {
			if e.Split != "" {
				stages = append(stages, string(e.Stage)+":"+e.Split)
			} else {
				stages = append(stages, string(e.Stage))
			}
		}
	}

	return stages
}

func (r *recorder) paths(typ apkmerge.EventType) []string {
	paths := []string{}
	for _, e := range r.events {
		if e.Type == typ {
			paths = append(paths, e.Path)
		}
	}

	return paths
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()

	b, err := os.ReadFile(name)
	require.NoError(t, err)

	return string(b)
}

// fixture lays out a decoded base tree and a folder of
// (empty) split .apks named after the keys of trees.
func fixture(t *testing.T, trees map[string]map[string]string) (string, string) {
	t.Helper()

	var (
		base   = t.TempDir()
		splits = t.TempDir()
	)

	writeTree(t, base, map[string]string{
		android.AndroidManifestName:                manifest,
		"apktool.yml":                              metadata,
		"res/values/strings.xml":                   "<resources/>",
		"resources.arsc":                           "base-table",
		"smali/com/example/app/MainActivity.smali": ".class",
	})

	for name := range trees {
		require.NoError(t, os.WriteFile(filepath.Join(splits, name), nil, 0o644))
	}

	return base, splits
}

func exampleTrees() map[string]map[string]string {
	return map[string]map[string]string{
		"base.apk": {
			android.AndroidManifestName: manifest,
			"apktool.yml":               metadata,
			"res/values/strings.xml":    "<resources/>",
			"resources.arsc":            "base-table",
		},
		"config.en.apk": {
			android.AndroidManifestName: "<manifest/>",
			"apktool.yml":               "split",
			"res/values-en/strings.xml": "<resources>en</resources>",
			"res/values/strings.xml":    "<resources>split</resources>",
			"resources.arsc":            "en-table",
		},
		"config.xhdpi.apk": {
			android.AndroidManifestName:      "<manifest/>",
			"apktool.yml":                    "split",
			"res/drawable-xhdpi/icon.png":    "xhdpi",
			"res/drawable-xhdpi/ic_back.png": "back",
			"resources.arsc":                 "xhdpi-table",
		},
	}
}

func TestPipelineRun(t *testing.T) {
	var (
		ctx          = context.Background()
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
		rec          = &recorder{}
		p            = apkmerge.NewPipeline(tc, apkmerge.Config{}, apkmerge.WithEventHandler(rec))
	)

	result := p.Run(ctx, base, splits)
	require.NoError(t, result.Err)
	assert.True(t, result.OK())

	assert.Equal(t, []string{"base.apk", "config.en.apk", "config.xhdpi.apk"}, tc.decompiled)

	// Only the paths that the base tree did not already have are merged.
	assert.Equal(t, metadata+
		"- res/values-en/strings.xml\n"+
		"- res/drawable-xhdpi/ic_back.png\n"+
		"- res/drawable-xhdpi/icon.png\n",
		readFile(t, filepath.Join(base, "apktool.yml")),
	)
	assert.Equal(t, []string{
		"res/values-en/strings.xml",
		"res/drawable-xhdpi/ic_back.png",
		"res/drawable-xhdpi/icon.png",
	}, result.Merged)

	// Nothing that the base tree already had is overwritten.
	assert.Equal(t, "<resources/>", readFile(t, filepath.Join(base, "res/values/strings.xml")))
	assert.Equal(t, "base-table", readFile(t, filepath.Join(base, "resources.arsc")))

	// The manifest is rewritten before the rebuild.
	assert.NotContains(t, tc.compileManifest, "requiredSplitTypes")
	assert.NotContains(t, tc.compileManifest, "com.android.vending.splits")
	assert.Contains(t, tc.compileManifest, android.StampTypeStandaloneAPK)

	entries, err := os.ReadDir(filepath.Join(base, "dist"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, filepath.Join(base, "dist", "base.apk"), result.Artifact)
	assert.Equal(t, result.Artifact, result.Final())
	assert.True(t, strings.HasPrefix(result.Digest, "sha256:"))
	assert.Equal(t, "com.example.app", result.Package)
	assert.Equal(t, "v1.0.0", result.Version)
	assert.False(t, tc.signed)
	assert.False(t, result.Unsigned(p.Config))

	assert.Equal(t, []string{
		"validate",
		"decompile:base.apk", "merge:base.apk",
		"decompile:config.en.apk", "merge:config.en.apk",
		"decompile:config.xhdpi.apk", "merge:config.xhdpi.apk",
		"manifest",
		"rebuild",
	}, rec.stages(apkmerge.EventStageStarted))
	assert.Empty(t, rec.stages(apkmerge.EventStageFailed))
	assert.Equal(t, result.Merged, rec.paths(apkmerge.EventFileMerged))
	assert.Contains(t, rec.stages(apkmerge.EventStageSucceeded), "done")

	for _, e := range rec.events {
		assert.Equal(t, result.RunID, e.RunID)
	}

	assert.NoDirExists(t, filepath.Join(os.TempDir(), "apkmerge-"+result.RunID))
}

func TestPipelineRunTwice(t *testing.T) {
	var (
		ctx          = context.Background()
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
		p            = apkmerge.NewPipeline(tc, apkmerge.Config{})
	)

	require.NoError(t, p.Run(ctx, base, splits).Err)
	once := readFile(t, filepath.Join(base, android.AndroidManifestName))

	result := p.Run(ctx, base, splits)
	require.NoError(t, result.Err)

	// Everything was merged by the first run.
	assert.Empty(t, result.Merged)
	assert.Equal(t, "v1.0.0", result.Version)

	m, err := apktool.ReadMetadata(base)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"resources.arsc",
		"res/values-en/strings.xml",
		"res/drawable-xhdpi/ic_back.png",
		"res/drawable-xhdpi/icon.png",
	}, m.DoNotCompress)
	assert.Equal(t, once, readFile(t, filepath.Join(base, android.AndroidManifestName)))
}

func TestPipelineDecompileFailure(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run("concurrency "+strconv.Itoa(concurrency), func(t *testing.T) {
			var (
				ctx   = context.Background()
				trees = map[string]map[string]string{
					"a.apk": {"res/a.xml": "a"},
					"b.apk": {"res/b.xml": "b"},
					"c.apk": {"res/c.xml": "c"},
				}
				base, splits = fixture(t, trees)
				tc           = &fakeToolchain{trees: trees, failDecompile: map[string]bool{"b.apk": true}, outputs: []string{"base.apk"}}
				rec          = &recorder{}
				p            = apkmerge.NewPipeline(tc, apkmerge.Config{Concurrency: concurrency}, apkmerge.WithEventHandler(rec))
			)

			result := p.Run(ctx, base, splits)
			require.Error(t, result.Err)
			assert.False(t, result.OK())

			assert.Equal(t, apkmerge.KindDecompile, apkmerge.KindOf(result.Err))
			stage, ok := result.FailedStage()
			assert.True(t, ok)
			assert.Equal(t, apkmerge.StageDecompile, stage)
			assert.Equal(t, toolchain.ToolReportedError, toolchain.Classify(result.Err))

			serr := &apkmerge.StageError{}
			require.ErrorAs(t, result.Err, &serr)
			assert.Equal(t, "b.apk", serr.Split)

			// a was merged and stays merged; b and c were not.
			assert.FileExists(t, filepath.Join(base, "res/a.xml"))
			assert.NoFileExists(t, filepath.Join(base, "res/b.xml"))
			assert.NoFileExists(t, filepath.Join(base, "res/c.xml"))
			assert.Equal(t, []string{"res/a.xml"}, result.Merged)
			assert.Equal(t, metadata+"- res/a.xml\n", readFile(t, filepath.Join(base, "apktool.yml")))

			// Neither the manifest nor the rebuild stage ran.
			assert.False(t, tc.compiled)
			assert.Equal(t, manifest, readFile(t, filepath.Join(base, android.AndroidManifestName)))
			assert.NotContains(t, rec.stages(apkmerge.EventStageStarted), "merge:b.apk")
			assert.NotContains(t, rec.stages(apkmerge.EventStageStarted), "manifest")
			assert.Equal(t, []string{"decompile:b.apk"}, rec.stages(apkmerge.EventStageFailed))

			if concurrency == 1 {
				assert.Equal(t, []string{"a.apk", "b.apk"}, tc.decompiled)
			}
		})
	}
}

func TestPipelineToolTimeout(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, hangDecompile: true}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{ToolTimeout: 10 * time.Millisecond}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindDecompile, apkmerge.KindOf(result.Err))
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Equal(t, []string{"base.apk"}, tc.decompiled)
}

func TestPipelineCanceled(t *testing.T) {
	var (
		ctx, cancel  = context.WithCancel(context.Background())
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, hangDecompile: true}
	)

	time.AfterFunc(10*time.Millisecond, cancel)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{Concurrency: 2}).Run(ctx, base, splits)
	assert.Equal(t, apkmerge.KindDecompile, apkmerge.KindOf(result.Err))
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.False(t, tc.compiled)
}

func TestPipelineConcurrentDecode(t *testing.T) {
	var (
		ctx          = context.Background()
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
		rec          = &recorder{}
		p            = apkmerge.NewPipeline(tc, apkmerge.Config{Concurrency: 4}, apkmerge.WithEventHandler(rec))
	)

	result := p.Run(ctx, base, splits)
	require.NoError(t, result.Err)

	// Merges happen in file name order regardless of decode order.
	assert.Equal(t, []string{
		"res/values-en/strings.xml",
		"res/drawable-xhdpi/ic_back.png",
		"res/drawable-xhdpi/icon.png",
	}, result.Merged)
	assert.ElementsMatch(t, []string{"base.apk", "config.en.apk", "config.xhdpi.apk"}, tc.decompiled)
}

func TestPipelineRebuildOutputCount(t *testing.T) {
	tests := []struct {
		name    string
		outputs []string
		err     error
	}{
		{name: "none", outputs: nil, err: apkmerge.ErrNoOutput},
		{name: "ambiguous", outputs: []string{"base.apk", "other.apk"}, err: apkmerge.ErrAmbiguousOutput},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var (
				trees        = exampleTrees()
				base, splits = fixture(t, trees)
				tc           = &fakeToolchain{trees: trees, outputs: test.outputs}
				p            = apkmerge.NewPipeline(tc, apkmerge.Config{Sign: true})
			)

			result := p.Run(context.Background(), base, splits)
			assert.ErrorIs(t, result.Err, test.err)
			assert.Equal(t, apkmerge.KindRebuild, apkmerge.KindOf(result.Err))
			assert.Empty(t, result.Artifact)
			assert.False(t, tc.signed)
		})
	}
}

func TestPipelineRebuildFailure(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, compileErr: toolchain.Reported("apktool", errors.New("exit status 1"))}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindRebuild, apkmerge.KindOf(result.Err))
	assert.Equal(t, toolchain.ToolReportedError, toolchain.Classify(result.Err))
}

func TestPipelineCleanDist(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	writeTree(t, base, map[string]string{"dist/base-aligned-debugSigned.apk": "stale"})

	result := apkmerge.NewPipeline(tc, apkmerge.Config{}).Run(context.Background(), base, splits)
	assert.ErrorIs(t, result.Err, apkmerge.ErrAmbiguousOutput)

	result = apkmerge.NewPipeline(tc, apkmerge.Config{CleanDist: true}).Run(context.Background(), base, splits)
	require.NoError(t, result.Err)
	assert.NoFileExists(t, filepath.Join(base, "dist", "base-aligned-debugSigned.apk"))
}

func TestPipelineSign(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
		cfg          = apkmerge.Config{Sign: true}
	)

	result := apkmerge.NewPipeline(tc, cfg).Run(context.Background(), base, splits)
	require.NoError(t, result.Err)

	assert.True(t, tc.signed)
	assert.Equal(t, filepath.Join(base, "dist", "base.apk"), result.Artifact)
	assert.Equal(t, filepath.Join(base, "dist", "base-aligned-debugSigned.apk"), result.SignedArtifact)
	assert.Equal(t, result.SignedArtifact, result.Final())
	assert.Equal(t, "A4:0D:A8:0A", result.Fingerprint)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.Unsigned(cfg))
}

func TestPipelineSignFailureIsAWarning(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}, signErr: toolchain.Reported("java", errors.New("exit status 1"))}
		rec          = &recorder{}
		cfg          = apkmerge.Config{Sign: true}
	)

	result := apkmerge.NewPipeline(tc, cfg, apkmerge.WithEventHandler(rec)).Run(context.Background(), base, splits)
	require.NoError(t, result.Err)
	assert.True(t, result.OK())

	assert.FileExists(t, result.Artifact)
	assert.Empty(t, result.SignedArtifact)
	assert.True(t, result.Unsigned(cfg))

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, apkmerge.KindSign, apkmerge.KindOf(result.Warnings[0]))
	assert.Equal(t, []string{"sign"}, rec.stages(apkmerge.EventStageFailed))
}

func TestPipelineFingerprintFailureIsAWarning(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}, fingerprintErr: errors.New("keytool: tool-not-found")}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{Sign: true}).Run(context.Background(), base, splits)
	require.NoError(t, result.Err)
	assert.NotEmpty(t, result.SignedArtifact)
	assert.Empty(t, result.Fingerprint)
	assert.Len(t, result.Warnings, 1)
}

func TestPipelineValidation(t *testing.T) {
	tests := []struct {
		name      string
		toolchain *fakeToolchain
		cfg       apkmerge.Config
		setup     func(t *testing.T, base, splits string) (string, string)
		err       error
		outcome   toolchain.Outcome
	}{
		{
			name:      "missing base",
			toolchain: &fakeToolchain{},
			setup: func(t *testing.T, base, splits string) (string, string) {
				return filepath.Join(base, "missing"), splits
			},
			err: os.ErrNotExist,
		},
		{
			name:      "splits is a file",
			toolchain: &fakeToolchain{},
			setup: func(t *testing.T, base, splits string) (string, string) {
				return base, filepath.Join(splits, "base.apk")
			},
		},
		{
			name:      "no splits",
			toolchain: &fakeToolchain{},
			setup: func(t *testing.T, base, splits string) (string, string) {
				return base, t.TempDir()
			},
			err: apkmerge.ErrNoSplits,
		},
		{
			name:      "decompiler not found",
			toolchain: &fakeToolchain{notFound: true},
			outcome:   toolchain.ToolNotFound,
		},
		{
			name:      "signer not found",
			toolchain: &fakeToolchain{signerNotFound: true},
			cfg:       apkmerge.Config{Sign: true},
			outcome:   toolchain.ToolNotFound,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var (
				trees        = exampleTrees()
				base, splits = fixture(t, trees)
			)
			test.toolchain.trees = trees

			if test.setup != nil {
				base, splits = test.setup(t, base, splits)
			}

			result := apkmerge.NewPipeline(test.toolchain, test.cfg).Run(context.Background(), base, splits)
			require.Error(t, result.Err)
			assert.Equal(t, apkmerge.KindValidation, apkmerge.KindOf(result.Err))

			if test.err != nil {
				assert.ErrorIs(t, result.Err, test.err)
			}

			if test.outcome != toolchain.OK {
				assert.Equal(t, test.outcome, toolchain.Classify(result.Err))
			}

			// Validation failures happen before anything is touched.
			assert.Empty(t, test.toolchain.decompiled)
			assert.False(t, test.toolchain.compiled)
		})
	}
}

func TestPipelineVerifyPackages(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
		inspect      = func(name string) (*android.Manifest, error) {
			pkg := "com.example.app"
			if filepath.Base(name) == "config.xhdpi.apk" {
				pkg = "com.example.other"
			}

			return &android.Manifest{Attrs: []xml.Attr{{Name: xml.Name{Local: "package"}, Value: pkg}}}, nil
		}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{VerifyPackages: true}, apkmerge.WithInspector(inspect)).Run(context.Background(), base, splits)
	assert.ErrorIs(t, result.Err, apkmerge.ErrPackageMismatch)
	assert.Equal(t, apkmerge.KindValidation, apkmerge.KindOf(result.Err))
	assert.Empty(t, tc.decompiled)
}

func TestPipelineManifestMissing(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	require.NoError(t, os.Remove(filepath.Join(base, android.AndroidManifestName)))
	delete(trees["base.apk"], android.AndroidManifestName)
	delete(trees["config.en.apk"], android.AndroidManifestName)
	delete(trees["config.xhdpi.apk"], android.AndroidManifestName)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindManifest, apkmerge.KindOf(result.Err))
	assert.ErrorIs(t, result.Err, os.ErrNotExist)
	assert.False(t, tc.compiled)
}

func TestPipelineManifestUnparsable(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	writeTree(t, base, map[string]string{android.AndroidManifestName: "<manifest><application></manifest>"})

	result := apkmerge.NewPipeline(tc, apkmerge.Config{}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindManifest, apkmerge.KindOf(result.Err))
	assert.False(t, tc.compiled)
}

func TestPipelineStrict(t *testing.T) {
	var (
		trees = map[string]map[string]string{
			"config.en.apk":    {"res/shared.xml": "en"},
			"config.xhdpi.apk": {"res/shared.xml": "xhdpi"},
		}
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{Strict: true}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindMerge, apkmerge.KindOf(result.Err))
	assert.ErrorIs(t, result.Err, merge.ErrConflict)
	assert.Equal(t, "en", readFile(t, filepath.Join(base, "res/shared.xml")))
	assert.False(t, tc.compiled)
}

func TestPipelineOutputDir(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		out          = filepath.Join(t.TempDir(), "out")
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{OutputDir: out}).Run(context.Background(), base, splits)
	require.NoError(t, result.Err)

	// Each split's decoded tree is discarded once it is merged.
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelinePublish(t *testing.T) {
	var (
		ctx          = context.Background()
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		dir          = t.TempDir()
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{PublishURL: "file://" + filepath.ToSlash(dir)}).Run(ctx, base, splits)
	require.NoError(t, result.Err)
	assert.Equal(t, "com.example.app/v1.0.0/base.apk", result.Published)

	bucket, err := fileblob.OpenBucket(dir, nil)
	require.NoError(t, err)
	defer bucket.Close()

	b, err := bucket.ReadAll(ctx, result.Published)
	require.NoError(t, err)
	assert.Equal(t, "apk base.apk", string(b))
}

func TestPipelinePublishFailure(t *testing.T) {
	var (
		trees        = exampleTrees()
		base, splits = fixture(t, trees)
		tc           = &fakeToolchain{trees: trees, outputs: []string{"base.apk"}}
	)

	result := apkmerge.NewPipeline(tc, apkmerge.Config{PublishURL: "nope://bucket"}).Run(context.Background(), base, splits)
	assert.Equal(t, apkmerge.KindPublish, apkmerge.KindOf(result.Err))
	assert.FileExists(t, result.Artifact)
}
