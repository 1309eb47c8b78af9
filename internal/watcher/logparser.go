package watcher

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// LogEvent represents a parsed event from a game server log
type LogEvent struct {
	Timestamp time.Time
	Type      string
	Data      interface{}
}

// Event types
const (
	EventTypeClientJoin  = "client_join"
	EventTypeClientTeam  = "client_team"
	EventTypeClientLeave = "client_leave"
)

// Event data structures

type ClientJoinData struct {
	Slot int
	UUID string
	Name string
}

type ClientTeamData struct {
	Slot int
	Team int
}

type ClientLeaveData struct {
	Slot int
}

var (
	timestampRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\s+`)

	// The team number is intentionally loose: servers emit whatever value
	// the client sent, including negatives, and we carry it as-is.
	clientJoinRegex  = regexp.MustCompile(`^ClientJoin: (\d+) (\S+) (.+)$`)
	clientTeamRegex  = regexp.MustCompile(`^ClientTeam: (\d+) (-?\d+)$`)
	clientLeaveRegex = regexp.MustCompile(`^ClientLeave: (\d+)$`)
)

// ParseLine parses a single log line into a LogEvent.
// Returns nil for lines that are not events we track.
func ParseLine(line string) (*LogEvent, error) {
	var timestamp time.Time
	content := line

	// Try to extract ISO 8601 timestamp
	if match := timestampRegex.FindStringSubmatch(line); match != nil {
		// Try parsing with timezone, then without
		ts, err := time.Parse(time.RFC3339Nano, match[1])
		if err != nil {
			ts, err = time.ParseInLocation("2006-01-02T15:04:05", match[1], time.Local)
		}
		if err == nil {
			timestamp = ts
			content = line[len(match[0]):]
		}
	}

	// If no timestamp, use current time
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	event := &LogEvent{Timestamp: timestamp}

	if match := clientJoinRegex.FindStringSubmatch(content); match != nil {
		slot, _ := strconv.Atoi(match[1])
		event.Type = EventTypeClientJoin
		event.Data = ClientJoinData{
			Slot: slot,
			UUID: match[2],
			Name: match[3],
		}
		return event, nil
	}

	if match := clientTeamRegex.FindStringSubmatch(content); match != nil {
		slot, _ := strconv.Atoi(match[1])
		team, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, fmt.Errorf("parsing team number: %w", err)
		}
		event.Type = EventTypeClientTeam
		event.Data = ClientTeamData{Slot: slot, Team: team}
		return event, nil
	}

	if match := clientLeaveRegex.FindStringSubmatch(content); match != nil {
		slot, _ := strconv.Atoi(match[1])
		event.Type = EventTypeClientLeave
		event.Data = ClientLeaveData{Slot: slot}
		return event, nil
	}

	// Not an event we care about
	return nil, nil
}
