package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// rconRequest is the body for a command passthrough
type rconRequest struct {
	Command string `json:"command"`
}

// rconResult echoes the command alongside the server's reply so callers
// can correlate output when issuing several commands in a row
type rconResult struct {
	ServerID int64  `json:"server_id"`
	Command  string `json:"command"`
	Output   string `json:"output"`
}

// handleRconCommand forwards a raw command to a watched server (admin only)
func (r *Router) handleRconCommand(w http.ResponseWriter, req *http.Request) {
	serverID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var body rconRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	command := strings.TrimSpace(body.Command)
	if command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	if r.manager.Status(serverID) == nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if !r.manager.HasRconAccess(serverID) {
		writeError(w, http.StatusConflict, "rcon not configured for this server")
		return
	}

	output, err := r.manager.ExecuteRcon(serverID, command)
	if err != nil {
		// The failure is between us and the game server, not the caller
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rconResult{
		ServerID: serverID,
		Command:  command,
		Output:   output,
	})
}

// handleRconStatus reports whether a server accepts RCON commands
func (r *Router) handleRconStatus(w http.ResponseWriter, req *http.Request) {
	serverID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server_id": serverID,
		"available": r.manager.HasRconAccess(serverID),
	})
}
