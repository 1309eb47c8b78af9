package watcher

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"
)

// LogTailer streams raw log lines from a growing file
type LogTailer struct {
	path     string
	file     *os.File
	position int64
	Lines    chan string
	Errors   chan error
	done     chan struct{}
}

// NewLogTailer creates a new log tailer
func NewLogTailer(path string) *LogTailer {
	return &LogTailer{
		path:   path,
		Lines:  make(chan string, 100),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// Start begins tailing the log file from the current end
func (t *LogTailer) Start() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file

	// Seek to end to only process new lines
	pos, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.position = pos

	go t.tailLoop()
	return nil
}

// Stop stops the tailer
func (t *LogTailer) Stop() {
	close(t.done)
	if t.file != nil {
		t.file.Close()
	}
}

// tailLoop continuously reads new content from the log
func (t *LogTailer) tailLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				select {
				case t.Errors <- err:
				default:
				}
			}
		}
	}
}

// readNewContent reads any new content since last read
func (t *LogTailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	// Handle copytruncate: file size smaller than position
	if stat.Size() < t.position {
		t.position = 0
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seeking to start after truncate: %w", err)
		}
	}

	// No new content
	if stat.Size() == t.position {
		return nil
	}

	// Read new content
	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Partial line - don't advance position past it
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}

		// Update position
		t.position += int64(len(line))

		// Trim newline and send
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if line != "" {
			select {
			case t.Lines <- line:
			default:
				// Channel full, drop line
			}
		}
	}

	return nil
}
