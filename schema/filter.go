package schema

// FILTER_BK/FILTER_TX are optional (gated by Config.FilterEnabled,
// spec.md 3/6): header_link or tx_link -> a slab of opaque BIP157-style
// filter bytes. Key width matches the owning table's link; payload is a
// Link into the filter slab body.
const (
	FilterBkKeySize     = HeaderLinkWidth
	FilterTxKeySize     = TxLinkWidth
	FilterPayloadSize   = FilterSlabLinkWidth
)
