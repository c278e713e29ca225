package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var logLevelOverride string

// configureLogger sets the process-wide slog default. Logs always go
// to stderr; stdout is reserved for the hook protocol. The level comes
// from CC_APPROVER_LOG_LEVEL unless overridden by flag.
func configureLogger(override string) error {
	v := viper.New()
	v.SetEnvPrefix("CC_APPROVER")
	v.AutomaticEnv()

	level := v.GetString("log_level")
	if strings.TrimSpace(override) != "" {
		level = override
	}

	parsed, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
