package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newInvitationService(t *testing.T) (*InvitationService, *repository.Repository, *clock) {
	t.Helper()
	repo := newTestRepository(t)
	seedTenant(t, repo, "t1", "alice")

	c := &clock{now: fixedNow}
	svc := NewInvitationService(repo, 7)
	svc.now = c.Now
	return svc, repo, c
}

func TestInvitationService_CreateAndAccept(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newInvitationService(t)

	inv, err := svc.CreateInvitation(ctx, "t1", "alice", &models.CreateInvitationRequest{Email: " Bob@Example.com ", Role: models.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.Email)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), inv.ExpiresAt)
	assert.NotEmpty(t, inv.Token)

	fetched, err := svc.GetInvitation(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, fetched.ID)

	_, err = svc.AcceptInvitation(ctx, inv.Token, "bob", "carol@example.com")
	assert.ErrorIs(t, err, ErrInvitationEmailMismatch)

	member, err := svc.AcceptInvitation(ctx, inv.Token, "bob", "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, member.Role)
	assert.Equal(t, "t1", member.TenantID)

	membership, err := repo.GetMembership(ctx, "t1", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, membership.Role)

	_, err = svc.AcceptInvitation(ctx, inv.Token, "bob", "bob@example.com")
	assert.ErrorIs(t, err, ErrInvitationAccepted)
}

func TestInvitationService_Expiry(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newInvitationService(t)

	inv, err := svc.CreateInvitation(ctx, "t1", "alice", &models.CreateInvitationRequest{Email: "bob@example.com", Role: models.RoleUser, ExpiresInDays: 1})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(24*time.Hour), inv.ExpiresAt)

	c.now = inv.ExpiresAt
	_, err = svc.AcceptInvitation(ctx, inv.Token, "bob", "bob@example.com")
	assert.ErrorIs(t, err, ErrInvitationExpired)

	deleted, err := svc.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	c.now = inv.ExpiresAt.Add(time.Second)
	deleted, err = svc.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = svc.GetInvitation(ctx, inv.Token)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvitationService_UnknownToken(t *testing.T) {
	svc, _, _ := newInvitationService(t)

	_, err := svc.AcceptInvitation(context.Background(), "nope", "bob", "bob@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// MockInvitationDeleter is a mock implementation of ExpiredInvitationDeleter
type MockInvitationDeleter struct {
	mock.Mock
}

func (m *MockInvitationDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestInvitationSweeper(t *testing.T) {
	_, err := NewInvitationSweeper(&MockInvitationDeleter{}, "every hour")
	assert.Error(t, err)

	deleter := &MockInvitationDeleter{}
	deleter.On("DeleteExpired", mock.Anything).Return(int64(3), nil).Once()
	deleter.On("DeleteExpired", mock.Anything).Return(int64(0), errors.New("database is locked")).Once()

	sweeper, err := NewInvitationSweeper(deleter, "@every 1h")
	require.NoError(t, err)

	deleted, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = sweeper.RunOnce(context.Background())
	assert.Error(t, err)

	assert.True(t, sweeper.NextRun().IsZero())
	sweeper.Start()
	assert.WithinDuration(t, time.Now().Add(time.Hour), sweeper.NextRun(), time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(ctx))
	deleter.AssertExpectations(t)
}
