package database

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// DefaultLogPath is used when neither LOG_PATH nor the config names a log file.
const DefaultLogPath = "logs/schema-sync.log"

// PrintRecentLogTail prints the last `lines` lines of the log file to stderr.
// LOG_PATH overrides the path and LOG_TAIL_LINES the line count. It is meant
// for fatal errors so a pipeline sees the verbose context.
func PrintRecentLogTail(lines int) {
	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = DefaultLogPath
	}

	if envLines := os.Getenv("LOG_TAIL_LINES"); envLines != "" {
		if v, err := strconv.Atoi(envLines); err == nil && v > 0 {
			lines = v
		}
	}

	writeLogTail(os.Stderr, logPath, lines)
}

func writeLogTail(w io.Writer, logPath string, lines int) {
	if lines <= 0 {
		return
	}
	f, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(w, "Failed to open log file %s: %v\n", logPath, err)
		return
	}
	defer f.Close()

	// Keep a ring of the last `lines` lines instead of the whole file.
	ring := make([]string, 0, lines)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == lines {
			ring = append(ring[1:], scanner.Text())
			continue
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(w, "Failed to read log file %s: %v\n", logPath, err)
		return
	}

	fmt.Fprintf(w, "--- BEGIN LOG TAIL (%s) last %d lines ---\n", logPath, lines)
	for _, l := range ring {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintf(w, "---  END LOG TAIL (%s) ---\n", logPath)
}
