package sim

import (
	"log"
)

// LogHookBase gives text-writing hooks a logger.
type LogHookBase struct {
	*log.Logger
}

// MakeLogHookBase wraps the logger. A nil logger falls back to the standard
// logger of the log package.
func MakeLogHookBase(logger *log.Logger) LogHookBase {
	if logger == nil {
		logger = log.Default()
	}

	return LogHookBase{Logger: logger}
}
