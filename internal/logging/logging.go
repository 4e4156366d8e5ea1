// Package logging routes the trial log to stdout and an optional append-mode file.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	logFile *os.File

	successColor = color.New(color.FgGreen)
	majorColor   = color.New(color.Bold)
)

// Init sends the standard logger to stdout and, when logPath is set, to logPath as well.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close detaches and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// LogEvent writes a plain line.
func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// Progress writes a routine per-epoch line. Nothing is written unless verbose is set.
func Progress(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	log.Println(fmt.Sprintf(format, args...))
}

// Success writes a milestone line, green on a terminal.
func Success(format string, args ...any) {
	log.Println(successColor.Sprintf(format, args...))
}

// Major writes a summary line, bold on a terminal.
func Major(format string, args ...any) {
	log.Println(majorColor.Sprintf(format, args...))
}

// MajorValue writes label followed by payload rendered as indented JSON.
func MajorValue(label string, payload any) {
	Major("%s\n%s", strings.TrimSpace(label), formatPayload(payload))
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
