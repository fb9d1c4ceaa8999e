package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/auth"
	"github.com/boardhub/boardhub/internal/database/testutil"
	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/internal/notifications"
	"github.com/boardhub/boardhub/internal/permissions"
	"github.com/boardhub/boardhub/pkg/mail"
)

// testMailer records outbound messages instead of delivering them.
type testMailer struct {
	sent []mail.Message
}

func (m *testMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

// env wires every service against one test database.
type env struct {
	db     *gorm.DB
	tokens *auth.TokenService
	mailer *testMailer

	users         *UserService
	accounts      *AccountService
	boards        *BoardService
	collaborators *CollaboratorService
	requests      *RequestService
	invitations   *InvitationService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	tokens, err := auth.NewTokenService(db, auth.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "boardhub",
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	mailer := &testMailer{}
	notifier, err := notifications.NewNotifier(db, notifications.NewHub(), mailer)
	require.NoError(t, err)

	users, err := NewUserService(db, tokens, notifier)
	require.NoError(t, err)
	accounts, err := NewAccountService(db, checker)
	require.NoError(t, err)
	boards, err := NewBoardService(db, checker)
	require.NoError(t, err)
	collaborators, err := NewCollaboratorService(db, checker, notifier)
	require.NoError(t, err)
	requests, err := NewRequestService(db, checker, notifier)
	require.NoError(t, err)
	invitations, err := NewInvitationService(db, checker, notifier)
	require.NoError(t, err)

	return &env{
		db:            db,
		tokens:        tokens,
		mailer:        mailer,
		users:         users,
		accounts:      accounts,
		boards:        boards,
		collaborators: collaborators,
		requests:      requests,
		invitations:   invitations,
	}
}

func (e *env) createUser(t *testing.T, name string) *models.User {
	t.Helper()

	user, err := e.users.Create(context.Background(), CreateUserInput{
		Username: name + "-" + uuid.NewString()[:8],
		Email:    name + "-" + uuid.NewString()[:8] + "@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return user
}

// createTeam builds a team account owned by owner with the given extra members.
func (e *env) createTeam(t *testing.T, owner *models.User, members ...*models.User) *models.Account {
	t.Helper()

	account, err := e.accounts.CreateTeamAccount(context.Background(), owner.ID, "Team "+uuid.NewString()[:8])
	require.NoError(t, err)

	for _, member := range members {
		_, err := e.accounts.AddCollaborator(context.Background(), owner.ID, account.ID, member.ID)
		require.NoError(t, err)
	}
	return account
}

func (e *env) createBoard(t *testing.T, actor *models.User, accountID, name string) *models.Board {
	t.Helper()

	board, err := e.boards.Create(context.Background(), actor.ID, accountID, BoardInput{Name: name})
	require.NoError(t, err)
	return board
}
