package apkmerge

import "time"

// EventType is the type of an Event.
type EventType string

const (
	EventStageStarted   EventType = "StageStarted"
	EventStageSucceeded EventType = "StageSucceeded"
	EventStageFailed    EventType = "StageFailed"
	EventSplitDecoded   EventType = "SplitDecoded"
	EventFileMerged     EventType = "FileMerged"
	EventFileSkipped    EventType = "FileSkipped"
	EventManifestEdited EventType = "ManifestEdited"
	EventArtifact       EventType = "Artifact"
)

// Event is emitted by a Pipeline as it progresses. The Pipeline does
// not present Events itself; that is left to its EventHandlers.
type Event struct {
	RunID string
	Type  EventType
	Stage Stage
	// Split is the file name of the split that the Event is about, if any.
	Split string
	// Path is the file that the Event is about, if any. For
	// EventFileMerged and EventFileSkipped, it is relative to the base tree.
	Path string
	// Detail is free-form, machine-oriented context such as
	// the value a manifest entry was rewritten to.
	Detail string
	Err    error
	Time   time.Time
}

// EventHandler receives the Events of a Pipeline run. A Pipeline
// never calls its EventHandlers concurrently.
type EventHandler interface {
	HandleEvent(Event)
}

// EventHandlerFunc adapts a func to an EventHandler.
type EventHandlerFunc func(Event)

func (f EventHandlerFunc) HandleEvent(e Event) {
	f(e)
}
