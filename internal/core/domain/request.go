package domain

// Request identifies one unit of enhancement work. It is treated as an
// immutable value; the orchestrator never mutates it after submission.
type Request struct {
	SubjectID      string `json:"subject_id"`
	VariantID      string `json:"variant_id"`
	OutputFormat   string `json:"output_format"`
	SourceAssetRef string `json:"source_asset_ref"`
}

// IdempotencyKey derives the deduplication unit for this request.
// Two requests with the same subject and variant describe the same
// logical job regardless of output format or asset reference.
func (r Request) IdempotencyKey() string {
	return r.SubjectID + ":" + r.VariantID
}
