package soundstream

import "github.com/rs/zerolog"

// logger is a no-op by default; callers opt into diagnostics with SetLogger.
var logger = zerolog.Nop()

// SetLogger installs the logger used for trace-level diagnostics such as
// open dispatch and length-query math.
func SetLogger(l zerolog.Logger) {
	logger = l
}
