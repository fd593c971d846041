package command

import (
	"github.com/spf13/cobra"
)

// NewAPKMerge returns the command which acts as
// the entrypoint for `apkmerge`.
func NewAPKMerge() *cobra.Command {
	var (
		cmd = &cobra.Command{Use: "apkmerge"}
	)

	cmd.AddCommand(
		NewMerge(),
		NewXAPK(),
	)

	return cmd
}

// NewMerge returns the command which acts as
// the entrypoint for `apkmerge merge`.
func NewMerge() *cobra.Command {
	var (
		f   = &pipelineFlags{}
		cmd = &cobra.Command{
			Use:   "merge BASE_DIR SPLITS_DIR",
			Short: "Merge the split .apks in SPLITS_DIR into the decoded base tree BASE_DIR",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return f.run(cmd, args[0], args[1])
			},
		}
	)

	f.addFlags(cmd)

	return cmd
}
