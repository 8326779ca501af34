package schema

// PutsInsRecordSize/PutsOutsRecordSize are the ArrayMap record widths
// binding a tx's contiguous input/output link run (spec.md 3, INS/OUTS):
// each slot holds one INPUT or OUTPUT slab Link.
const (
	PutsInsRecordSize  = InputLinkWidth
	PutsOutsRecordSize = OutputLinkWidth
)
