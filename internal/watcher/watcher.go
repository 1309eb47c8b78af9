// Package watcher tails game server logs, maintains a live view of who
// is connected to each server, and publishes join/team/leave events on
// the bus.
package watcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ernie/teamkeeper/internal/bus"
	"github.com/ernie/teamkeeper/internal/config"
	"github.com/ernie/teamkeeper/internal/domain"
	"github.com/ernie/teamkeeper/internal/rcon"
	"github.com/ernie/teamkeeper/internal/storage"
	"github.com/ernie/teamkeeper/internal/teamsync"
)

// Manager tails logs for all configured servers
type Manager struct {
	cfg   *config.Config
	store *storage.Store
	bus   *bus.Bus
	rcon  *rcon.Client

	mu      sync.RWMutex
	servers map[int64]*serverState
	tailers map[int64]*LogTailer
	done    chan struct{}
	wg      sync.WaitGroup
}

// serverState tracks the current state of a watched server
type serverState struct {
	server       domain.GameServer
	rconPassword string
	clients      map[int]*clientState // slot -> client state
	lastEvent    time.Time
}

// clientState tracks a connected client
type clientState struct {
	slot     int
	name     string
	uuid     string
	team     domain.Team
	joinedAt time.Time
}

// NewManager creates a new watcher manager
func NewManager(cfg *config.Config, store *storage.Store, eventBus *bus.Bus) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		bus:     eventBus,
		rcon:    rcon.NewClient(),
		servers: make(map[int64]*serverState),
		tailers: make(map[int64]*LogTailer),
		done:    make(chan struct{}),
	}
}

// Start registers configured servers and begins tailing their logs.
// Tailing starts at the current end of each log, so nothing that
// happened while we were down is replayed.
func (m *Manager) Start(ctx context.Context) error {
	for _, srv := range m.cfg.GameServers {
		dbSrv := &domain.GameServer{
			Name:    srv.Name,
			Address: srv.Address,
			LogPath: srv.LogPath,
		}
		if err := m.store.UpsertServer(ctx, dbSrv); err != nil {
			return fmt.Errorf("registering server %s: %w", srv.Name, err)
		}

		m.servers[dbSrv.ID] = &serverState{
			server:       *dbSrv,
			rconPassword: srv.RconPassword,
			clients:      make(map[int]*clientState),
		}

		if srv.LogPath == "" {
			continue
		}

		tailer := NewLogTailer(srv.LogPath)
		if err := tailer.Start(); err != nil {
			log.Printf("Warning: failed to start log tailer for %s: %v", srv.Name, err)
			continue
		}
		m.tailers[dbSrv.ID] = tailer
		m.wg.Add(1)
		go m.processLines(dbSrv.ID, tailer)
	}

	return nil
}

// Stop stops all tailers and waits for their goroutines to finish
func (m *Manager) Stop() {
	log.Println("Watcher: stopping...")
	close(m.done)
	for _, tailer := range m.tailers {
		tailer.Stop()
	}
	m.wg.Wait()
	log.Println("Watcher: shutdown complete")
}

// processLines consumes raw lines from a tailer and handles parsed events
func (m *Manager) processLines(serverID int64, tailer *LogTailer) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case line := <-tailer.Lines:
			event, err := ParseLine(line)
			if err != nil {
				log.Printf("Server %d: bad log line: %v", serverID, err)
				continue
			}
			if event == nil {
				continue
			}
			m.handleLogEvent(serverID, *event)
		case err := <-tailer.Errors:
			log.Printf("Server %d: log tailer error: %v", serverID, err)
		}
	}
}

// handleLogEvent updates the live slot table and publishes the
// corresponding bus event. Names are attached here so consumers never
// need the slot table themselves.
func (m *Manager) handleLogEvent(serverID int64, event LogEvent) {
	m.mu.Lock()
	state, ok := m.servers[serverID]
	if !ok {
		m.mu.Unlock()
		return
	}
	state.lastEvent = event.Timestamp

	var out *domain.Event

	switch data := event.Data.(type) {
	case ClientJoinData:
		state.clients[data.Slot] = &clientState{
			slot:     data.Slot,
			name:     data.Name,
			uuid:     data.UUID,
			team:     domain.TeamNone,
			joinedAt: event.Timestamp,
		}
		out = &domain.Event{
			Type:       domain.EventPlayerJoin,
			ServerID:   serverID,
			Timestamp:  event.Timestamp,
			PlayerJoin: &domain.PlayerJoinEvent{Slot: data.Slot, PlayerName: data.Name},
		}

	case ClientTeamData:
		client, ok := state.clients[data.Slot]
		if !ok {
			// Team change for a slot we never saw join. Track the slot
			// anyway so the live view stays usable, but without an
			// identity there is nothing to persist.
			client = &clientState{slot: data.Slot, joinedAt: event.Timestamp}
			state.clients[data.Slot] = client
		}
		client.team = domain.Team(data.Team)
		out = &domain.Event{
			Type:      domain.EventTeamChange,
			ServerID:  serverID,
			Timestamp: event.Timestamp,
			TeamChange: &domain.TeamChangeEvent{
				Slot:       data.Slot,
				Team:       domain.Team(data.Team),
				PlayerName: client.name,
			},
		}

	case ClientLeaveData:
		var name string
		if client, ok := state.clients[data.Slot]; ok {
			name = client.name
		}
		delete(state.clients, data.Slot)
		out = &domain.Event{
			Type:        domain.EventPlayerLeave,
			ServerID:    serverID,
			Timestamp:   event.Timestamp,
			PlayerLeave: &domain.PlayerLeaveEvent{Slot: data.Slot, PlayerName: name},
		}
	}
	m.mu.Unlock()

	if out != nil {
		if err := m.bus.Publish(*out); err != nil {
			log.Printf("Server %d: publishing %s event: %v", serverID, out.Type, err)
		}
	}
}

// Status returns the current live view of a server, or nil if unknown
func (m *Manager) Status(serverID int64) *domain.ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.servers[serverID]
	if !ok {
		return nil
	}
	status := buildStatus(state)
	return &status
}

// AllStatuses returns the live view of every watched server
func (m *Manager) AllStatuses() []domain.ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []domain.ServerStatus
	for _, state := range m.servers {
		statuses = append(statuses, buildStatus(state))
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ServerID < statuses[j].ServerID
	})
	return statuses
}

// buildStatus snapshots a server state. Caller must hold at least a
// read lock.
func buildStatus(state *serverState) domain.ServerStatus {
	status := domain.ServerStatus{
		ServerID:  state.server.ID,
		Name:      state.server.Name,
		Address:   state.server.Address,
		Online:    !state.lastEvent.IsZero(),
		LastEvent: state.lastEvent,
	}
	for _, client := range state.clients {
		status.Players = append(status.Players, domain.PlayerStatus{
			Slot:     client.slot,
			Name:     client.name,
			Team:     client.team,
			JoinedAt: client.joinedAt,
		})
	}
	sort.Slice(status.Players, func(i, j int) bool {
		return status.Players[i].Slot < status.Players[j].Slot
	})
	status.PlayerCount = len(status.Players)
	return status
}

// ExecuteRcon sends an RCON command to a server and returns the response
func (m *Manager) ExecuteRcon(serverID int64, command string) (string, error) {
	m.mu.RLock()
	state, ok := m.servers[serverID]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("server not found")
	}
	if state.rconPassword == "" {
		return "", fmt.Errorf("RCON not configured for this server")
	}
	return m.rcon.Command(state.server.Address, state.rconPassword, command)
}

// HasRconAccess checks if a server has RCON configured
func (m *Manager) HasRconAccess(serverID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.servers[serverID]
	return ok && state.rconPassword != ""
}

// --- teamsync collaborators ---

// Resolve looks up a connected player by server and slot. The slot
// table is the source of truth for who is online; a miss means the
// player already disconnected and there is nothing to act on.
func (m *Manager) Resolve(serverID int64, slot int) (teamsync.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.servers[serverID]
	if !ok {
		return nil, false
	}
	client, ok := state.clients[slot]
	if !ok || client.uuid == "" {
		return nil, false
	}

	return &playerHandle{
		manager:      m,
		serverID:     serverID,
		slot:         slot,
		name:         client.name,
		uuid:         client.uuid,
		address:      state.server.Address,
		rconPassword: state.rconPassword,
	}, true
}

// Broadcast sends a colored chat message to everyone on a server
func (m *Manager) Broadcast(serverID int64, text string, color domain.Color) {
	m.mu.RLock()
	state, ok := m.servers[serverID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	command := fmt.Sprintf("say %d %d %d %s", color.R, color.G, color.B, text)
	m.sendRcon(state.server.Address, state.rconPassword, command)
}

// sendRcon fires an RCON command without waiting for the reply. Chat
// and team commands have no useful response and must not block the
// event loop on a slow server.
func (m *Manager) sendRcon(address, password, command string) {
	go func() {
		if _, err := m.rcon.Command(address, password, command); err != nil {
			log.Printf("RCON command failed on %s: %v", address, err)
		}
	}()
}

// playerHandle is a snapshot of a connected player that can act on them
// over RCON. It stays valid only as long as the player keeps the slot.
type playerHandle struct {
	manager      *Manager
	serverID     int64
	slot         int
	name         string
	uuid         string
	address      string
	rconPassword string
}

func (p *playerHandle) Name() string { return p.name }
func (p *playerHandle) UUID() string { return p.uuid }

// SetTeam moves the player to a team on the game server. The server
// echoes the change back through its log, which is what updates the
// slot table.
func (p *playerHandle) SetTeam(team domain.Team) {
	command := fmt.Sprintf("setteam %d %d", p.slot, int(team))
	p.manager.sendRcon(p.address, p.rconPassword, command)
}

// Notify sends a private colored message to the player
func (p *playerHandle) Notify(text string, color domain.Color) {
	command := fmt.Sprintf("tell %d %d %d %d %s", p.slot, color.R, color.G, color.B, text)
	p.manager.sendRcon(p.address, p.rconPassword, command)
}
