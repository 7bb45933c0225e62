// Package logging configures the global zerolog logger.
//
// Every entry goes to stderr (coloured on a terminal) and to a rotating
// lrp-copilot.log. The log directory is LOGS_FOLDER when set, else
// DATA_PATH/logs, else logs/ next to the binary. stdout is never written:
// it carries the MCP stdio stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the rotating log file written under the log directory.
const LogFileName = "lrp-copilot.log"

// Rotation limits of the log file.
const (
	maxSizeMB  = 16
	maxBackups = 32
	maxAgeDays = 365
)

// Init installs the global logger and returns the log file path. verbose
// lowers the level to debug.
func Init(verbose bool) (string, error) {
	// Init runs before config.Load, so LOGS_FOLDER and DATA_PATH may only
	// exist in the .env next to the binary.
	exePath, exeErr := os.Executable()
	if exeErr == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logDir := resolveLogDir(exePath, exeErr)
	if err := ensureWritable(logDir); err != nil {
		return "", err
	}
	logFile := filepath.Join(logDir, LogFileName)

	fd := os.Stderr.Fd()
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)),
	}
	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(io.Writer(console), rotating)).
		With().
		Timestamp().
		Logger()

	return logFile, nil
}

// resolveLogDir prefers LOGS_FOLDER, then DATA_PATH/logs, then logs/ next to the binary.
func resolveLogDir(exePath string, exeErr error) string {
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if data := os.Getenv("DATA_PATH"); data != "" {
		return filepath.Join(data, "logs")
	}
	if exeErr == nil {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}

// ensureWritable creates dir and proves a file can be written in it.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", dir, err)
	}
	_ = os.Remove(testFile)
	return nil
}
