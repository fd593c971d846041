package apkmerge

import (
	"errors"
	"fmt"
)

// Stage is a step of the merge pipeline.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageDecompile Stage = "decompile"
	StageMerge     Stage = "merge"
	StageManifest  Stage = "manifest"
	StageRebuild   Stage = "rebuild"
	StageSign      Stage = "sign"
	StagePublish   Stage = "publish"
	StageDone      Stage = "done"
)

// Kind classifies a StageError by the Stage that produced it.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindDecompile  Kind = "DecompileError"
	KindMerge      Kind = "MergeError"
	KindManifest   Kind = "ManifestError"
	KindRebuild    Kind = "RebuildError"
	KindSign       Kind = "SignError"
	KindPublish    Kind = "PublishError"
	KindUnknown    Kind = "UnknownError"
)

// Kind returns the Kind of error that s produces.
func (s Stage) Kind() Kind {
	switch s {
	case StageValidate:
		return KindValidation
	case StageDecompile:
		return KindDecompile
	case StageMerge:
		return KindMerge
	case StageManifest:
		return KindManifest
	case StageRebuild:
		return KindRebuild
	case StageSign:
		return KindSign
	case StagePublish:
		return KindPublish
	}

	return KindUnknown
}

// Fatal reports whether a failure of s fails the run.
// A failed StageSign leaves the unsigned artifact in place.
func (s Stage) Fatal() bool {
	return s != StageSign
}

var (
	ErrNoSplits        = errors.New("no split .apk files found")
	ErrNoOutput        = errors.New("no .apk produced")
	ErrAmbiguousOutput = errors.New("more than one .apk produced")
	ErrPackageMismatch = errors.New("split belongs to a different package")
)

// StageError identifies the Stage, and the split if any, that failed.
type StageError struct {
	Stage Stage
	Split string
	Err   error
}

// NewStageError attributes err to stage. It returns nil if err is nil
// and err itself if it is already a *StageError.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}

	serr := &StageError{}
	if errors.As(err, &serr) {
		return err
	}

	return &StageError{Stage: stage, Err: err}
}

// NewSplitError attributes err to stage while handling split.
func NewSplitError(stage Stage, split string, err error) error {
	if err == nil {
		return nil
	}

	return &StageError{Stage: stage, Split: split, Err: err}
}

func (e *StageError) Kind() Kind {
	return e.Stage.Kind()
}

func (e *StageError) Error() string {
	if e.Split != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind(), e.Split, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Kind(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the Stage that err is attributed to, if any.
func StageOf(err error) (Stage, bool) {
	serr := &StageError{}
	if errors.As(err, &serr) {
		return serr.Stage, true
	}

	return "", false
}

// KindOf returns the Kind of err, or KindUnknown if
// it is not attributed to a Stage.
func KindOf(err error) Kind {
	if stage, ok := StageOf(err); ok {
		return stage.Kind()
	}

	return KindUnknown
}
