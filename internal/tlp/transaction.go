package tlp

// TransactionID derives the bridge's internal correlation key for TLPs that
// participate in request/completion matching: `tag | (requester << 16)`.
// Only the Config{0,1}{Read,Write} request class and the Completion* class
// produce one; any other packet type has no transaction id; ok reports
// whether h carries one.
func TransactionID(h Header) (id uint32, ok bool) {
	switch {
	case h.Type.isRequestClass():
		if h.Config == nil {
			return 0, false
		}
		return uint32(h.Config.Tag) | (uint32(h.Config.Requester) << 16), true
	case h.Type.isCompletionClass():
		if h.Completion == nil {
			return 0, false
		}
		return uint32(h.Completion.Tag) | (uint32(h.Completion.Requester) << 16), true
	default:
		return 0, false
	}
}
