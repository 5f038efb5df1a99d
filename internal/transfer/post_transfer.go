package transfer

// ManualPostCreation is the body of the manual-entry create path.
// ScheduledAt uses the dashboard's "2006-01-02T15:04" local format.
type ManualPostCreation struct {
	Content     string `json:"content" validate:"required"`
	ScheduledAt string `json:"scheduled_at" validate:"required"`
	AssetIDs    []int64 `json:"asset_ids,omitempty"`
}

// GenerationRequest is the transient input to the content generator: either
// keywords+tone or source text+style, plus a requested count.
type GenerationRequest struct {
	Keywords     []string `json:"keywords,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	SourceText   string   `json:"source_text,omitempty"`
	SourceTitle  string   `json:"source_title,omitempty"`
	Style        string   `json:"style,omitempty"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	Count        int      `json:"count" validate:"omitempty,min=1,max=10"`
	ScheduledAt  string   `json:"scheduled_at,omitempty"`
}

// SourceBased reports whether the request runs the source-text path rather
// than the keyword path.
func (r *GenerationRequest) SourceBased() bool {
	return r.SourceText != ""
}

// PostEdit carries a partial update; nil fields are left untouched.
type PostEdit struct {
	Content     *string `json:"content,omitempty"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
	IsApproved  *bool   `json:"is_approved,omitempty"`
}
