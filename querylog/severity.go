package querylog

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// severity picks the level for a statement that ran for elapsed.
func severity(elapsed time.Duration) zerolog.Level {
	if elapsed >= SlowQueryThreshold {
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// enabled reports whether both the static and the current level of sink
// admit level. The two are checked separately: the static level belongs to
// the logger the sink was built with, the current one can change at runtime.
func enabled(sink Sink, level zerolog.Level) bool {
	if sink == nil {
		return false
	}
	return level >= sink.StaticLevel() && level >= sink.Level()
}

// FormatElapsed renders d with three decimals in the largest unit that
// keeps the integer part non-zero.
//
// Example:
//
//	FormatElapsed(1500 * time.Millisecond)  // returns "1.500s"
//	FormatElapsed(12345 * time.Microsecond) // returns "12.345ms"
//	FormatElapsed(250 * time.Nanosecond)    // returns "250.000ns"
func FormatElapsed(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fixed3(d, time.Second) + "s"
	case d >= time.Millisecond:
		return fixed3(d, time.Millisecond) + "ms"
	case d >= time.Microsecond:
		return fixed3(d, time.Microsecond) + "µs"
	default:
		return fixed3(d, time.Nanosecond) + "ns"
	}
}

func fixed3(d, unit time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(unit), 'f', 3, 64)
}
