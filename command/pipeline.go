package command

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/frantjc/apkmerge"
	"github.com/frantjc/apkmerge/internal/toolchain"
	"github.com/frantjc/apkmerge/uberapksigner"
	xslice "github.com/frantjc/x/slice"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// pipelineFlags are the flags shared by every command that runs an apkmerge.Pipeline.
type pipelineFlags struct {
	apktool        string
	java           string
	keytool        string
	signerJar      string
	sign           bool
	output         string
	keepWorkDir    bool
	jobs           int
	strict         bool
	cleanDist      bool
	verifyPackages bool
	publish        string
	timeout        time.Duration
}

func (f *pipelineFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.apktool, "apktool", xslice.Coalesce(os.Getenv("APKMERGE_APKTOOL"), "apktool"), "apktool executable")
	cmd.Flags().StringVar(&f.java, "java", xslice.Coalesce(os.Getenv("APKMERGE_JAVA"), "java"), "java executable to run uber-apk-signer with")
	cmd.Flags().StringVar(&f.keytool, "keytool", xslice.Coalesce(os.Getenv("APKMERGE_KEYTOOL"), "keytool"), "keytool executable")
	cmd.Flags().StringVar(&f.signerJar, "signer-jar", os.Getenv("APKMERGE_SIGNER_JAR"), "uber-apk-signer release jar (default is found in the working directory)")
	cmd.Flags().BoolVarP(&f.sign, "sign", "s", false, "Sign the merged .apk")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Directory to decode splits into (default is a temporary directory)")
	cmd.Flags().BoolVar(&f.keepWorkDir, "keep-work-dir", false, "Keep the temporary directory that splits are decoded into")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 1, "Number of splits to decode at once")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail when two splits contain the same file")
	cmd.Flags().BoolVar(&f.cleanDist, "clean-dist", false, "Remove .apks left in the base tree's dist directory before rebuilding")
	cmd.Flags().BoolVar(&f.verifyPackages, "verify-packages", false, "Check that every split belongs to the base tree's package")
	cmd.Flags().StringVar(&f.publish, "publish", os.Getenv("APKMERGE_PUBLISH_URL"), "URL of a bucket to upload the merged .apk to")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Timeout for each external tool invocation")
}

func (f *pipelineFlags) config() apkmerge.Config {
	return apkmerge.Config{
		Sign:           f.sign,
		OutputDir:      f.output,
		KeepWorkDir:    f.keepWorkDir,
		Concurrency:    f.jobs,
		Strict:         f.strict,
		CleanDist:      f.cleanDist,
		VerifyPackages: f.verifyPackages,
		PublishURL:     f.publish,
		ToolTimeout:    f.timeout,
	}
}

func (f *pipelineFlags) toolchain() *toolchain.Adapter {
	opts := []toolchain.Opt{
		toolchain.WithAPKTool(f.apktool),
		toolchain.WithJava(f.java),
		toolchain.WithKeytool(f.keytool),
	}

	jar := f.signerJar
	if jar == "" && f.sign {
		dirs := []string{"."}
		if exe, err := os.Executable(); err == nil {
			dirs = append(dirs, filepath.Dir(exe))
		}

		// A missing jar is reported when the Pipeline validates.
		jar, _ = uberapksigner.FindJar(dirs...)
	}

	if jar != "" {
		opts = append(opts, toolchain.WithSignerJar(jar))
	}

	return toolchain.New(opts...)
}

func (f *pipelineFlags) run(cmd *cobra.Command, base, splits string) error {
	return f.runWith(cmd, f.toolchain(), base, splits)
}

func (f *pipelineFlags) runWith(cmd *cobra.Command, tc apkmerge.Toolchain, base, splits string) error {
	var (
		ctx = cmd.Context()
		log = logr.FromContextOrDiscard(ctx)
		cfg = f.config()
	)

	unlock, err := lock(base)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Error(err, "removing lock")
		}
	}()

	result := apkmerge.NewPipeline(tc, cfg, apkmerge.WithEventHandler(newEventLogger(log))).Run(ctx, base, splits)

	return report(cmd, cfg, result)
}

// report writes the path to the artifact that result produced to stdout.
// It errors if the run failed or if an artifact meant to be signed was not.
func report(cmd *cobra.Command, cfg apkmerge.Config, result *apkmerge.Result) error {
	if result.Artifact != "" {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.Final()); err != nil {
			return err
		}
	}

	if !result.OK() {
		if stage, ok := result.FailedStage(); ok {
			return fmt.Errorf("%s stage failed: %w", stage, result.Err)
		}

		return result.Err
	}

	if result.Unsigned(cfg) {
		for _, warning := range result.Warnings {
			if apkmerge.KindOf(warning) == apkmerge.KindSign {
				return fmt.Errorf("%s is unsigned: %w", result.Artifact, warning)
			}
		}

		return fmt.Errorf("%s is unsigned", result.Artifact)
	}

	return nil
}
