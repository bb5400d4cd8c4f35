package profiler

import "runtime"

// CurrentGoroutineID returns the id of the calling goroutine, or 0 if it can't
// be determined. It parses the header line of runtime.Stack, which does not
// allocate when given a stack buffer.
func CurrentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

// parseGoroutineID extracts 123 from "goroutine 123 [running]:...".
func parseGoroutineID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
