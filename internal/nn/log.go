package nn

import "log/slog"

var logger *slog.Logger

// SetLogger replaces the logger used for warnings and debug output.
// Passing nil restores slog.Default(). It is not safe to call while modules
// are running.
func SetLogger(l *slog.Logger) {
	logger = l
}

func lg() *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// Logger returns the logger in use, for packages building on nn.
func Logger() *slog.Logger {
	return lg()
}
