package indexer

import (
	"errors"
	"fmt"
)

// Outcome is the diagnostic code of one fetch-and-index attempt. Zero means
// the video was downloaded, uploaded, and indexed (or already indexed); each
// failing stage has its own non-zero code. The retry loop only looks at
// zero versus non-zero.
type Outcome int

const (
	OutcomeOK                  Outcome = 0
	OutcomeFetchFailed         Outcome = 1
	OutcomeUploadFailed        Outcome = 2
	OutcomeIndexFailed         Outcome = 3
	OutcomeRecordWriteFailed   Outcome = 4
	OutcomeMetadataWriteFailed Outcome = 5
	OutcomeUnexpected          Outcome = 6
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFetchFailed:
		return "fetch"
	case OutcomeUploadFailed:
		return "upload"
	case OutcomeIndexFailed:
		return "index"
	case OutcomeRecordWriteFailed:
		return "record-write"
	case OutcomeMetadataWriteFailed:
		return "metadata-write"
	case OutcomeUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Sentinel errors, one per failure kind. A *StageError matches the sentinel
// of its stage with errors.Is.
var (
	ErrUnrecognizedURL = errors.New("unrecognized video URL")
	ErrFetch           = errors.New("audio download failed")
	ErrUpload          = errors.New("audio upload failed")
	ErrIndex           = errors.New("index record could not be built")
	ErrRecordWrite     = errors.New("index record write failed")
	ErrMetadataWrite   = errors.New("metadata document write failed")
	ErrUnexpected      = errors.New("unexpected failure")
)

// StageError reports which stage of fetch-and-index failed for a video.
type StageError struct {
	Outcome Outcome
	VideoID string
	URL     string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for video %q (%s): %v", e.Outcome, e.VideoID, e.URL, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Outcome.sentinel(), e.Err}
}

func (o Outcome) sentinel() error {
	switch o {
	case OutcomeFetchFailed:
		return ErrFetch
	case OutcomeUploadFailed:
		return ErrUpload
	case OutcomeIndexFailed:
		return ErrIndex
	case OutcomeRecordWriteFailed:
		return ErrRecordWrite
	case OutcomeMetadataWriteFailed:
		return ErrMetadataWrite
	default:
		return ErrUnexpected
	}
}

// OutcomeOf maps an error returned by FetchAndIndex to its outcome code.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Outcome
	}
	return OutcomeUnexpected
}

func stageError(o Outcome, videoID, url string, err error) *StageError {
	return &StageError{Outcome: o, VideoID: videoID, URL: url, Err: err}
}
