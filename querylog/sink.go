package querylog

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Record is a finished statement as handed to a Sink.
type Record struct {
	Level   zerolog.Level
	Target  string
	Message string
	Rows    uint64
	Elapsed time.Duration
}

// Sink receives query log records.
//
// A Query consults both levels before doing any formatting work; a record
// is only built when its level is at or above both.
type Sink interface {
	// StaticLevel is the minimum level fixed when the sink was built.
	StaticLevel() zerolog.Level

	// Level is the minimum level currently in effect. It may change at
	// runtime.
	Level() zerolog.Level

	// Log writes the record.
	Log(rec Record)
}

// ZerologSink writes records to a zerolog.Logger.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink writing to logger. The logger's own level is
// the static level, zerolog.GlobalLevel() is the current one.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel)
//	ql := querylog.New(querylog.WithSink(querylog.NewZerologSink(logger)))
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// StaticLevel implements Sink.
func (s *ZerologSink) StaticLevel() zerolog.Level {
	return s.logger.GetLevel()
}

// Level implements Sink.
func (s *ZerologSink) Level() zerolog.Level {
	return zerolog.GlobalLevel()
}

// Log implements Sink.
func (s *ZerologSink) Log(rec Record) {
	writeEvent(s.logger, rec)
}

// GlobalSink returns a sink writing to the process-wide logger of the
// zerolog/log package, resolved on every call so that replacing log.Logger
// takes effect immediately.
func GlobalSink() Sink {
	return globalSink{}
}

type globalSink struct{}

func (globalSink) StaticLevel() zerolog.Level { return log.Logger.GetLevel() }
func (globalSink) Level() zerolog.Level       { return zerolog.GlobalLevel() }
func (globalSink) Log(rec Record)             { writeEvent(log.Logger, rec) }

// NopSink returns a sink that admits no level.
func NopSink() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) StaticLevel() zerolog.Level { return zerolog.Disabled }
func (nopSink) Level() zerolog.Level       { return zerolog.Disabled }
func (nopSink) Log(Record)                 {}

func writeEvent(logger zerolog.Logger, rec Record) {
	logger.WithLevel(rec.Level).
		Str("target", rec.Target).
		Uint64("rows", rec.Rows).
		Dur("elapsed", rec.Elapsed).
		Msg(rec.Message)
}
