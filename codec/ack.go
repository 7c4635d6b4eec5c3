package codec

// Ack verbs (node -> coordinator), spec.md §4.1.
const (
	AckWriteSuccess = "write blk success"
	AckBlockExists  = "blk_ex"
	AckBlockMissing = "blk_mi"
	AckDecodeDone   = "fi_deco"
	AckUpcodeDone   = "fi_upco"
	AckDowncodeDone = "fi_doco"
)

// IsKnownAck reports whether s is one of the well-formed non-error acks.
// Anything else — including the empty string, a truncated frame, or
// garbage — is a ProtocolViolation (spec.md §7).
func IsKnownAck(s string) bool {
	switch s {
	case AckWriteSuccess, AckBlockExists, AckBlockMissing, AckDecodeDone, AckUpcodeDone, AckDowncodeDone:
		return true
	default:
		return false
	}
}
