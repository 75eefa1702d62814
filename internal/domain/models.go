package domain

import (
	"strings"
	"time"
)

// AgeStage identifies one of the three target ages a source photo is
// transformed into.
type AgeStage string

const (
	StageChild      AgeStage = "child"
	StageMiddleAged AgeStage = "middle_aged"
	StageElderly    AgeStage = "elderly"
)

// Stages lists the transformation targets in presentation order.
func Stages() []AgeStage {
	return []AgeStage{StageChild, StageMiddleAged, StageElderly}
}

// EncodedImage holds an image as a base64 payload tagged with its MIME type.
type EncodedImage struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// IsImage reports whether the payload declares an image MIME type.
func (e EncodedImage) IsImage() bool {
	return strings.HasPrefix(e.MimeType, "image/")
}

// TransformationRequest is one adapter call: a source image plus the
// natural-language edit instruction. Constructed per call, never retained.
type TransformationRequest struct {
	Source      EncodedImage
	Instruction string
}

// StageResult is the settled outcome of a single stage: exactly one of
// Image or Err is set.
type StageResult struct {
	Stage AgeStage
	Image *EncodedImage
	Err   error
}

// HistoryEntry records one fully successful transformation. It is created
// only when all three stages succeed and is immutable afterwards. Entries
// live in process memory only.
type HistoryEntry struct {
	ID         string       `json:"id"`
	Original   EncodedImage `json:"original"`
	Child      EncodedImage `json:"child"`
	MiddleAged EncodedImage `json:"middle_aged"`
	Elderly    EncodedImage `json:"elderly"`
	CreatedAt  time.Time    `json:"created_at"`
}
