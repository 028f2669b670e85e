package domain

import "time"

// ResultSource identifies which tier produced a result
type ResultSource string

const (
	SourcePrimary  ResultSource = "primary"
	SourceCache    ResultSource = "cache"
	SourceDeferred ResultSource = "deferred"
	SourceDegraded ResultSource = "degraded"
)

// Result is the terminal outcome of one orchestrated submission. Degraded
// outcomes carry enough metadata (queue position, cache timestamp) for the
// caller to communicate status without guessing.
type Result struct {
	Source        ResultSource `json:"source"`
	ResultRef     string       `json:"result_ref,omitempty"`
	QueuePosition int          `json:"queue_position,omitempty"`
	CachedAt      time.Time    `json:"cached_at,omitempty"`
	RequestID     string       `json:"request_id,omitempty"`
}

// DeferredRecord is appended to the deferred queue when the work cannot be
// performed now. It carries the full request so a replay can reproduce the
// original job.
type DeferredRecord struct {
	SubjectID      string    `json:"subject_id"`
	VariantID      string    `json:"variant_id"`
	OutputFormat   string    `json:"output_format,omitempty"`
	SourceAssetRef string    `json:"source_asset_ref,omitempty"`
	QueuedAt       time.Time `json:"queued_at"`
}

// Request reconstructs the submission this record was deferred from.
func (r DeferredRecord) Request() Request {
	return Request{
		SubjectID:      r.SubjectID,
		VariantID:      r.VariantID,
		OutputFormat:   r.OutputFormat,
		SourceAssetRef: r.SourceAssetRef,
	}
}
