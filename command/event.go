package command

import (
	"github.com/frantjc/apkmerge"
	"github.com/go-logr/logr"
)

// newEventLogger returns an apkmerge.EventHandler that logs each Event
// it receives to log, at a verbosity matching how noteworthy it is.
func newEventLogger(log logr.Logger) apkmerge.EventHandler {
	return apkmerge.EventHandlerFunc(func(e apkmerge.Event) {
		kv := []any{"run", e.RunID, "stage", e.Stage}
		if e.Split != "" {
			kv = append(kv, "split", e.Split)
		}
		if e.Path != "" {
			kv = append(kv, "path", e.Path)
		}
		if e.Detail != "" {
			kv = append(kv, "detail", e.Detail)
		}

		switch e.Type {
		case apkmerge.EventStageFailed:
			log.Error(e.Err, "stage failed", kv...)
		case apkmerge.EventStageSucceeded:
			log.Info("stage succeeded", kv...)
		case apkmerge.EventArtifact:
			log.Info("produced artifact", kv...)
		case apkmerge.EventStageStarted:
			log.V(1).Info("stage started", kv...)
		case apkmerge.EventSplitDecoded:
			log.V(1).Info("decoded split", kv...)
		case apkmerge.EventManifestEdited:
			log.V(1).Info("edited manifest", kv...)
		case apkmerge.EventFileMerged:
			log.V(2).Info("merged file", kv...)
		case apkmerge.EventFileSkipped:
			log.V(3).Info("skipped file", kv...)
		}
	})
}
