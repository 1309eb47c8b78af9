package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ernie/teamkeeper/internal/domain"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	store, err := New(filepath.Join(s.T().TempDir(), "test.db"))
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.store.Close()
}

// Assignment tests

func (s *StoreSuite) TestFindAssignmentAbsent() {
	s.Nil(s.store.FindAssignment(s.ctx, "alice", "uuid-1"))
}

func (s *StoreSuite) TestSaveThenFind() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamBlue)

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal("alice", a.Username)
	s.Equal("uuid-1", a.UUID)
	s.Equal(domain.TeamBlue, a.Team)
}

func (s *StoreSuite) TestSaveUpdatesExistingRow() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamRed)
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamGreen)

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.TeamGreen, a.Team)

	// Repeated saves for one identity must not grow the table
	all, total, err := s.store.ListAssignments(s.ctx, 10, 0)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Len(all, 1)
}

func (s *StoreSuite) TestIdentityPairsAreIndependent() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamRed)
	s.store.SaveAssignment(s.ctx, "alice", "uuid-2", domain.TeamBlue)
	s.store.SaveAssignment(s.ctx, "bob", "uuid-1", domain.TeamPink)

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.TeamRed, a.Team)

	b := s.store.FindAssignment(s.ctx, "alice", "uuid-2")
	s.Require().NotNil(b)
	s.Equal(domain.TeamBlue, b.Team)

	c := s.store.FindAssignment(s.ctx, "bob", "uuid-1")
	s.Require().NotNil(c)
	s.Equal(domain.TeamPink, c.Team)
}

func (s *StoreSuite) TestEmptyStringKeys() {
	// Players without a client UUID still get exactly one record
	s.store.SaveAssignment(s.ctx, "alice", "", domain.TeamRed)
	s.store.SaveAssignment(s.ctx, "alice", "", domain.TeamYellow)

	a := s.store.FindAssignment(s.ctx, "alice", "")
	s.Require().NotNil(a)
	s.Equal(domain.TeamYellow, a.Team)

	_, total, err := s.store.ListAssignments(s.ctx, 10, 0)
	s.Require().NoError(err)
	s.Equal(1, total)
}

func (s *StoreSuite) TestOutOfRangeTeamStored() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.Team(42))

	a := s.store.FindAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NotNil(a)
	s.Equal(domain.Team(42), a.Team)
}

func (s *StoreSuite) TestFailOpenOnClosedDatabase() {
	s.store.Close()

	// Neither call may panic or surface an error to the caller
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamRed)
	s.Nil(s.store.FindAssignment(s.ctx, "alice", "uuid-1"))
}

func (s *StoreSuite) TestDeleteAssignment() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamRed)

	deleted, err := s.store.DeleteAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	s.Nil(s.store.FindAssignment(s.ctx, "alice", "uuid-1"))

	deleted, err = s.store.DeleteAssignment(s.ctx, "alice", "uuid-1")
	s.Require().NoError(err)
	s.Equal(int64(0), deleted)
}

func (s *StoreSuite) TestListAssignmentsPagination() {
	s.store.SaveAssignment(s.ctx, "alice", "uuid-1", domain.TeamRed)
	s.store.SaveAssignment(s.ctx, "bob", "uuid-2", domain.TeamBlue)
	s.store.SaveAssignment(s.ctx, "carol", "uuid-3", domain.TeamGreen)

	page, total, err := s.store.ListAssignments(s.ctx, 2, 0)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(page, 2)

	rest, total, err := s.store.ListAssignments(s.ctx, 2, 2)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(rest, 1)
}

// Server tests

func (s *StoreSuite) TestUpsertServerAssignsID() {
	srv := &domain.GameServer{Name: "main", Address: "127.0.0.1:27960"}
	s.Require().NoError(s.store.UpsertServer(s.ctx, srv))
	s.NotZero(srv.ID)

	// Upserting the same address keeps the ID but refreshes the name
	again := &domain.GameServer{Name: "renamed", Address: "127.0.0.1:27960"}
	s.Require().NoError(s.store.UpsertServer(s.ctx, again))
	s.Equal(srv.ID, again.ID)

	got, err := s.store.GetServerByID(s.ctx, srv.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("renamed", got.Name)
}

func (s *StoreSuite) TestGetServerByIDMissing() {
	got, err := s.store.GetServerByID(s.ctx, 999)
	s.Require().NoError(err)
	s.Nil(got)
}

// User tests

func (s *StoreSuite) TestUserLifecycle() {
	s.Require().NoError(s.store.CreateUser(s.ctx, "admin", "hash", true))

	user, err := s.store.GetUserByUsername(s.ctx, "admin")
	s.Require().NoError(err)
	s.True(user.IsAdmin)
	s.Nil(user.LastLogin)

	s.Require().NoError(s.store.UpdateUserAdmin(s.ctx, user.ID, false))
	user, err = s.store.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.False(user.IsAdmin)

	s.Require().NoError(s.store.DeleteUser(s.ctx, "admin"))
	s.Error(s.store.DeleteUser(s.ctx, "admin"))
}
