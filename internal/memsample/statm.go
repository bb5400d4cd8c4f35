package memsample

// parseResidentPages returns the second field of a statm line, which is the
// number of resident pages. Malformed input yields 0.
func parseResidentPages(b []byte) int64 {
	field := 0
	var v int64
	inField := false
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			if !inField {
				inField = true
				field++
				v = 0
			}
			v = v*10 + int64(c-'0')
		default:
			if inField && field == 2 {
				return v
			}
			inField = false
		}
	}
	if field == 2 {
		return v
	}
	return 0
}
