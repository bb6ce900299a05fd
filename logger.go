package arena

import "log"

// Logger receives lifecycle diagnostics: arena reservations, fallback
// decisions, purge-pass outcomes. The default implementation writes to
// log.Default(), matching the narrow leveled-logging-over-stdlib shape
// used elsewhere in the retrieval pack rather than pulling in a
// structured-logging dependency this module has no other use for.
type Logger interface {
	Warnf(format string, args ...any)
	Verbosef(format string, args ...any)
}

type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...any) {
	log.Printf("WARN arena: "+format, args...)
}

func (stdLogger) Verbosef(format string, args ...any) {
	log.Printf("arena: "+format, args...)
}

// defaultLogger is shared by every Registry that doesn't set its own.
var defaultLogger Logger = stdLogger{}
