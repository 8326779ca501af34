package schema

// CandidateRecordSize/ConfirmedRecordSize are the ArrayMap record widths
// of the height-indexed chain indexes (spec.md 3): height -> header_link.
const (
	CandidateRecordSize = CandidateLinkWidth
	ConfirmedRecordSize = ConfirmedLinkWidth
)
