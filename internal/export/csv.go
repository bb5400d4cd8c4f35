// Package export writes profiling results as delimited text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/metrics"
	"github.com/getsentry/callprof/internal/timeutil"
)

var (
	statisticsHeader = []string{
		"Address",
		"Name",
		"AvgSelfTime(us)",
		"AvgTime(us)",
		"AvgMemory(bytes)",
		"TotalSelfTime(us)",
		"TotalTime(us)",
		"TotalMemory(bytes)",
		"InvokeTimes",
	}
	framesHeader = []string{
		"Frame",
		"StartTime",
		"TotalTime(us)",
		"TotalMemory(bytes)",
		"InvokeTimes",
	}
)

// WriteStatistics writes one row per unit, in the given order. Every field is
// quoted; downstream tooling relies on the column order.
func WriteStatistics(w io.Writer, units []metrics.Unit) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, statisticsHeader)
	for _, u := range units {
		writeRow(bw, []string{
			FormatAddress(u.Address),
			u.Name,
			strconv.FormatInt(u.AverageSelfTimeMicros(), 10),
			strconv.FormatInt(u.AverageTimeMicros(), 10),
			strconv.FormatInt(u.AverageMemoryDeltaBytes(), 10),
			strconv.FormatInt(u.TotalSelfTimeMicros, 10),
			strconv.FormatInt(u.TotalTimeMicros, 10),
			strconv.FormatInt(u.TotalMemoryDeltaBytes, 10),
			strconv.FormatUint(u.InvocationCount, 10),
		})
	}
	return bw.Flush()
}

// WriteFrames writes one row per frame. Start times are relative to
// sessionStart, in microseconds.
func WriteFrames(w io.Writer, frames []frame.Frame, sessionStart, frequency int64) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, framesHeader)
	for _, f := range frames {
		writeRow(bw, []string{
			strconv.Itoa(f.ID),
			strconv.FormatInt(timeutil.TicksToMicros(f.EnterTicks-sessionStart, frequency), 10),
			strconv.FormatInt(f.DurationMicros(frequency), 10),
			strconv.FormatInt(f.MemoryDelta(), 10),
			strconv.Itoa(len(f.Events)),
		})
	}
	return bw.Flush()
}

// SaveStatistics writes units to path, truncating it. It reports whether the
// file was written completely.
func SaveStatistics(path string, units []metrics.Unit) bool {
	return save(path, func(w io.Writer) error {
		return WriteStatistics(w, units)
	})
}

// SaveFrames writes frames to path, truncating it. It reports whether the file
// was written completely.
func SaveFrames(path string, frames []frame.Frame, sessionStart, frequency int64) bool {
	return save(path, func(w io.Writer) error {
		return WriteFrames(w, frames, sessionStart, frequency)
	})
}

func save(path string, write func(io.Writer) error) bool {
	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("can't create export file")
		return false
	}
	err = write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("can't write export file")
		return false
	}
	return true
}

// FormatAddress renders an address as upper case hex with a 0X prefix.
func FormatAddress(addr uint64) string {
	return fmt.Sprintf("%#X", addr)
}

func writeRow(w *bufio.Writer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
