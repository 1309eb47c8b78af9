// Package teamsync keeps players' party membership sticky across
// reconnects. It persists every team change and, when a player comes
// back, puts them straight onto their last team.
package teamsync

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/ernie/teamkeeper/internal/bus"
	"github.com/ernie/teamkeeper/internal/domain"
)

// AssignmentStore persists team assignments keyed by player identity.
// Both methods fail open: persistence trouble must never keep a player
// from playing, so lookups report absence and saves report nothing.
type AssignmentStore interface {
	FindAssignment(ctx context.Context, username, uuid string) *domain.Assignment
	SaveAssignment(ctx context.Context, username, uuid string, team domain.Team)
}

// Player is a currently connected player that can be acted on
type Player interface {
	Name() string
	UUID() string
	SetTeam(team domain.Team)
	Notify(text string, color domain.Color)
}

// Directory resolves event slots to connected players. A failed resolve
// means the player is gone and the event should be dropped.
type Directory interface {
	Resolve(serverID int64, slot int) (Player, bool)
}

// Broadcaster sends a message to everyone on a server
type Broadcaster interface {
	Broadcast(serverID int64, text string, color domain.Color)
}

// Service reacts to join and team-change events
type Service struct {
	store       AssignmentStore
	directory   Directory
	broadcaster Broadcaster
	sub         *nats.Subscription
}

// New creates a sync service
func New(store AssignmentStore, directory Directory, broadcaster Broadcaster) *Service {
	return &Service{
		store:       store,
		directory:   directory,
		broadcaster: broadcaster,
	}
}

// Start subscribes the service to the event bus. The single
// subscription processes events one at a time, so a join and a team
// change for the same player cannot interleave.
func (s *Service) Start(ctx context.Context, eventBus *bus.Bus) error {
	sub, err := eventBus.Subscribe(func(event domain.Event) {
		s.handleEvent(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("subscribing to event bus: %w", err)
	}
	s.sub = sub
	return nil
}

// Stop unsubscribes from the event bus
func (s *Service) Stop() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
}

func (s *Service) handleEvent(ctx context.Context, event domain.Event) {
	switch event.Type {
	case domain.EventTeamChange:
		if event.TeamChange != nil {
			s.HandleTeamChange(ctx, event.ServerID, event.TeamChange.Slot, event.TeamChange.Team)
		}
	case domain.EventPlayerJoin:
		if event.PlayerJoin != nil {
			s.HandlePlayerJoin(ctx, event.ServerID, event.PlayerJoin.Slot)
		}
	}
}

// HandleTeamChange announces the player's new team and records it.
// The announcement text for an unknown team number is empty, leaving
// just the name; the record is written regardless so whatever the
// server accepted is what we restore later.
func (s *Service) HandleTeamChange(ctx context.Context, serverID int64, slot int, team domain.Team) {
	player, ok := s.directory.Resolve(serverID, slot)
	if !ok {
		return
	}

	s.broadcaster.Broadcast(serverID, fmt.Sprintf("%s %s", player.Name(), team.ChangeMessage()), team.Color())
	s.store.SaveAssignment(ctx, player.Name(), player.UUID(), team)
}

// HandlePlayerJoin restores the player's stored team, if any. Players
// with no record, or whose last team was none, are left alone.
func (s *Service) HandlePlayerJoin(ctx context.Context, serverID int64, slot int) {
	player, ok := s.directory.Resolve(serverID, slot)
	if !ok {
		return
	}

	assignment := s.store.FindAssignment(ctx, player.Name(), player.UUID())
	if assignment == nil || assignment.Team == domain.TeamNone {
		return
	}

	log.Printf("Restoring %s to team %d on server %d", player.Name(), assignment.Team, serverID)
	player.SetTeam(assignment.Team)
	player.Notify(fmt.Sprintf("You have been automatically joined to the %s party.", assignment.Team.Name()), assignment.Team.Color())
	s.broadcaster.Broadcast(serverID, fmt.Sprintf("%s has been automatically joined to the %s party.", player.Name(), assignment.Team.Name()), assignment.Team.Color())
}
