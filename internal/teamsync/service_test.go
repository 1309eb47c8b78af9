package teamsync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ernie/teamkeeper/internal/domain"
)

// fakeStore is an in-memory AssignmentStore
type fakeStore struct {
	assignments map[string]domain.Assignment
	saves       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{assignments: make(map[string]domain.Assignment)}
}

func storeKey(username, uuid string) string {
	return username + "\x00" + uuid
}

func (f *fakeStore) FindAssignment(ctx context.Context, username, uuid string) *domain.Assignment {
	if a, ok := f.assignments[storeKey(username, uuid)]; ok {
		return &a
	}
	return nil
}

func (f *fakeStore) SaveAssignment(ctx context.Context, username, uuid string, team domain.Team) {
	f.saves++
	f.assignments[storeKey(username, uuid)] = domain.Assignment{
		Username: username,
		UUID:     uuid,
		Team:     team,
	}
}

// fakePlayer records actions taken on it
type fakePlayer struct {
	name     string
	uuid     string
	setTeams []domain.Team
	notices  []string
}

func (p *fakePlayer) Name() string { return p.name }
func (p *fakePlayer) UUID() string { return p.uuid }

func (p *fakePlayer) SetTeam(team domain.Team) {
	p.setTeams = append(p.setTeams, team)
}

func (p *fakePlayer) Notify(text string, color domain.Color) {
	p.notices = append(p.notices, text)
}

// fakeDirectory maps (serverID, slot) to players
type fakeDirectory struct {
	players map[string]*fakePlayer
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{players: make(map[string]*fakePlayer)}
}

func (d *fakeDirectory) add(serverID int64, slot int, p *fakePlayer) {
	d.players[fmt.Sprintf("%d/%d", serverID, slot)] = p
}

func (d *fakeDirectory) Resolve(serverID int64, slot int) (Player, bool) {
	p, ok := d.players[fmt.Sprintf("%d/%d", serverID, slot)]
	if !ok {
		return nil, false
	}
	return p, true
}

// fakeBroadcaster records broadcast messages
type fakeBroadcaster struct {
	messages []string
	colors   []domain.Color
}

func (b *fakeBroadcaster) Broadcast(serverID int64, text string, color domain.Color) {
	b.messages = append(b.messages, text)
	b.colors = append(b.colors, color)
}

type ServiceSuite struct {
	suite.Suite
	store       *fakeStore
	directory   *fakeDirectory
	broadcaster *fakeBroadcaster
	service     *Service
	ctx         context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = newFakeStore()
	s.directory = newFakeDirectory()
	s.broadcaster = &fakeBroadcaster{}
	s.service = New(s.store, s.directory, s.broadcaster)
	s.ctx = context.Background()
}

// Team change tests

func (s *ServiceSuite) TestTeamChangeBroadcastsAndPersists() {
	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandleTeamChange(s.ctx, 1, 3, domain.TeamBlue)

	s.Require().Len(s.broadcaster.messages, 1)
	s.Equal("alice has joined the blue party.", s.broadcaster.messages[0])
	s.Equal(domain.ColorBlue, s.broadcaster.colors[0])

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.TeamBlue, a.Team)
}

func (s *ServiceSuite) TestTeamChangeToNone() {
	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandleTeamChange(s.ctx, 1, 3, domain.TeamNone)

	s.Require().Len(s.broadcaster.messages, 1)
	s.Equal("alice is no longer on a party.", s.broadcaster.messages[0])
	s.Equal(domain.ColorWhite, s.broadcaster.colors[0])

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.TeamNone, a.Team)
}

func (s *ServiceSuite) TestTeamChangeUnresolvableSlot() {
	s.service.HandleTeamChange(s.ctx, 1, 3, domain.TeamBlue)

	s.Empty(s.broadcaster.messages)
	s.Zero(s.store.saves)
}

func (s *ServiceSuite) TestTeamChangeOutOfRangeStillPersisted() {
	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandleTeamChange(s.ctx, 1, 3, domain.Team(42))

	// No label exists for team 42, leaving just the name
	s.Require().Len(s.broadcaster.messages, 1)
	s.Equal("alice ", s.broadcaster.messages[0])
	s.Equal(domain.ColorWhite, s.broadcaster.colors[0])

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.Team(42), a.Team)
}

// Player join tests

func (s *ServiceSuite) TestJoinRestoresStoredTeam() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamBlue)
	s.store.saves = 0

	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandlePlayerJoin(s.ctx, 1, 3)

	s.Require().Len(player.setTeams, 1)
	s.Equal(domain.TeamBlue, player.setTeams[0])

	s.Require().Len(player.notices, 1)
	s.Equal("You have been automatically joined to the blue party.", player.notices[0])

	s.Require().Len(s.broadcaster.messages, 1)
	s.Equal("alice has been automatically joined to the blue party.", s.broadcaster.messages[0])
	s.Equal(domain.ColorBlue, s.broadcaster.colors[0])

	// Restoring does not rewrite the record; the echoed team change does
	s.Zero(s.store.saves)
}

func (s *ServiceSuite) TestJoinWithNoRecord() {
	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandlePlayerJoin(s.ctx, 1, 3)

	s.Empty(player.setTeams)
	s.Empty(player.notices)
	s.Empty(s.broadcaster.messages)
}

func (s *ServiceSuite) TestJoinWithTeamNoneRecord() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamNone)

	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.HandlePlayerJoin(s.ctx, 1, 3)

	s.Empty(player.setTeams)
	s.Empty(player.notices)
	s.Empty(s.broadcaster.messages)
}

func (s *ServiceSuite) TestJoinUnresolvableSlot() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamBlue)

	s.service.HandlePlayerJoin(s.ctx, 1, 3)

	s.Empty(s.broadcaster.messages)
}

func (s *ServiceSuite) TestJoinRecordsAreIdentityScoped() {
	// Same name, different client: no restore
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamBlue)

	player := &fakePlayer{name: "alice", uuid: "uuid-2"}
	s.directory.add(1, 3, player)

	s.service.HandlePlayerJoin(s.ctx, 1, 3)

	s.Empty(player.setTeams)
}

// Event dispatch tests

func (s *ServiceSuite) TestHandleEventDispatch() {
	player := &fakePlayer{name: "alice", uuid: "uuid-1"}
	s.directory.add(1, 3, player)

	s.service.handleEvent(s.ctx, domain.Event{
		Type:       domain.EventTeamChange,
		ServerID:   1,
		TeamChange: &domain.TeamChangeEvent{Slot: 3, Team: domain.TeamRed},
	})
	s.Require().Len(s.broadcaster.messages, 1)
	s.Equal("alice has joined the red party.", s.broadcaster.messages[0])

	// Leave events and envelopes without a payload are ignored
	s.service.handleEvent(s.ctx, domain.Event{Type: domain.EventPlayerLeave, ServerID: 1})
	s.service.handleEvent(s.ctx, domain.Event{Type: domain.EventTeamChange, ServerID: 1})
	s.Len(s.broadcaster.messages, 1)
}
