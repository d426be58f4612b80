// Package logger provides leveled, component-tagged logging for homeclaw.
//
// Components are short tags like "dispatch" or "channel.telegram" so that
// gateway logs from independent subsystems can be filtered apart.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "UNKNOWN"
}

var (
	mu       sync.Mutex
	minLevel = INFO
	fileSink *os.File
)

// SetLevel sets the minimum level emitted to the console and file sink.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetLogFile enables a JSON-lines file sink. The parent directory is
// created if needed. Passing an empty path disables the sink.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	fileSink = f
	return nil
}

func DebugC(component, msg string) { log(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { log(INFO, component, msg, nil) }
func WarnC(component, msg string)  { log(WARN, component, msg, nil) }
func ErrorC(component, msg string) { log(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) { log(DEBUG, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]any)  { log(INFO, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]any)  { log(WARN, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]any) { log(ERROR, component, msg, fields) }

func log(level Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()

	if level < minLevel {
		return
	}

	now := time.Now()
	line := fmt.Sprintf("%s %-5s [%s] %s", now.Format("2006-01-02 15:04:05"), level, component, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " " + strings.Join(parts, " ")
	}
	fmt.Fprintln(os.Stderr, line)

	if fileSink != nil {
		entry := map[string]any{
			"ts":        now.Format(time.RFC3339Nano),
			"level":     level.String(),
			"component": component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fileSink.Write(append(data, '\n'))
		}
	}
}
