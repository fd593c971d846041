package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frantjc/apkmerge/internal/amregexp"
	"github.com/frantjc/apkmerge/xapk"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// NewXAPK returns the command which acts as
// the entrypoint for `apkmerge xapk`.
func NewXAPK() *cobra.Command {
	var (
		dir string
		f   = &pipelineFlags{}
		cmd = &cobra.Command{
			Use:   "xapk FILE.xapk",
			Short: "Unpack FILE.xapk and merge its splits into a single .apk",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					ctx  = cmd.Context()
					log  = logr.FromContextOrDiscard(ctx)
					name = args[0]
				)

				if !amregexp.IsXAPK(name) {
					return fmt.Errorf("%s is not an .xapk", name)
				}

				if dir == "" {
					dir = strings.TrimSuffix(name, filepath.Ext(name))
				}

				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}

				tc := f.toolchain()

				log.Info("unpacking", "xapk", name, "dir", dir)

				layout, err := xapk.NewXAPKDecoder(name).Unpack(ctx, &boundedDecompiler{Decompiler: tc, timeout: f.timeout}, dir)
				if err != nil {
					return err
				}

				return f.runWith(cmd, tc, layout.Base, layout.Splits)
			},
		}
	)

	f.addFlags(cmd)
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to unpack the .xapk into (default is next to the .xapk)")

	return cmd
}

// boundedDecompiler bounds each Decompile by timeout. Zero means no bound.
type boundedDecompiler struct {
	xapk.Decompiler
	timeout time.Duration
}

func (d *boundedDecompiler) Decompile(ctx context.Context, name, dir string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return d.Decompiler.Decompile(ctx, name, dir)
}
