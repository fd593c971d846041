package apkmerge

import (
	"errors"
	"fmt"

	"github.com/frantjc/apkmerge/internal/amregexp"
)

// BaseID is the SplitEntry.ID of the split carrying the
// application's code, resource table and manifest.
const BaseID = "base"

var (
	ErrNoBase       = errors.New("no base split")
	ErrMultipleBase = errors.New("more than one base split")
)

// SplitEntry is one split APK of a multi-file distribution.
type SplitEntry struct {
	File string `json:"file"`
	ID   string `json:"id"`
}

func (s SplitEntry) IsBase() bool {
	return s.ID == BaseID
}

// ValidateSplitEntries checks that entries name exactly one base split
// and that every entry names a file. It returns the base split.
func ValidateSplitEntries(entries []SplitEntry) (*SplitEntry, error) {
	var (
		base *SplitEntry
		errs = []error{}
	)

	for i := range entries {
		entry := &entries[i]

		if entry.File == "" {
			errs = append(errs, fmt.Errorf("split %d has no file", i))
		} else if !amregexp.APK.MatchString(entry.File) {
			errs = append(errs, fmt.Errorf("split %s is not the name of an .apk", entry.File))
		}

		if !amregexp.IsSplitID(entry.ID) {
			errs = append(errs, fmt.Errorf("split %d has invalid id %q", i, entry.ID))
		}

		if entry.IsBase() {
			if base != nil {
				errs = append(errs, fmt.Errorf("%w: %s and %s", ErrMultipleBase, base.File, entry.File))
				continue
			}
			base = entry
		}
	}

	if base == nil {
		errs = append(errs, ErrNoBase)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, NewStageError(StageValidate, err)
	}

	return base, nil
}
