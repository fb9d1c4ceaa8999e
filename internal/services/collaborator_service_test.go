package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardhub/boardhub/internal/models"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
)

func TestCreateCollaboratorByUserID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner, member)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: member.ID})
	require.NoError(t, err)
	require.NotNil(t, collab.UserID)
	require.Equal(t, member.ID, *collab.UserID)
	require.Empty(t, collab.Email)
}

func TestCreateCollaboratorByEmailLinksExistingUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{Email: member.Email})
	require.NoError(t, err)
	require.NotNil(t, collab.UserID)
	require.Equal(t, member.ID, *collab.UserID)

	// The invitee gets an in-app notification plus an email.
	var note models.Notification
	require.NoError(t, e.db.First(&note, "user_id = ?", member.ID).Error)
	require.Equal(t, "board_invite_created", note.Label)
	require.NotEmpty(t, e.mailer.sent)
}

func TestCreateCollaboratorByUnknownEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{Email: "New@Example.com"})
	require.NoError(t, err)
	require.Nil(t, collab.UserID)
	require.Equal(t, "new@example.com", collab.Email)

	// No user row, so the email leg is the only delivery.
	require.Len(t, e.mailer.sent, 1)
	require.Equal(t, []string{"new@example.com"}, e.mailer.sent[0].To)
}

func TestCreateCollaboratorIsIdempotentForLinkedUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	first, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: member.ID})
	require.NoError(t, err)

	second, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{Email: member.Email})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, e.db.Model(&models.BoardCollaborator{}).
		Where("board_id = ? AND user_id = ?", board.ID, member.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateCollaboratorRequiresWriteAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	stranger := e.createUser(t, "stranger")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	_, err := e.collaborators.Create(ctx, stranger.ID, board.ID, CollaboratorInput{Email: "x@example.com"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = e.collaborators.Create(ctx, "", board.ID, CollaboratorInput{Email: "x@example.com"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCreateCollaboratorValidatesInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	_, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{})
	appErr := appErrors.FromError(err)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestDeleteCollaboratorSelfRemoval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: member.ID})
	require.NoError(t, err)

	require.NoError(t, e.collaborators.Delete(ctx, member.ID, collab.ID))

	_, err = e.collaborators.Get(ctx, owner.ID, collab.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteCollaboratorByAccountOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner, member)
	board := e.createBoard(t, member, account.ID, "Board")

	var collab models.BoardCollaborator
	require.NoError(t, e.db.First(&collab, "board_id = ? AND user_id = ?", board.ID, member.ID).Error)

	require.NoError(t, e.collaborators.Delete(ctx, owner.ID, collab.ID))
}

func TestDeleteCollaboratorByFellowBoardMember(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	peer := e.createUser(t, "peer")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: member.ID})
	require.NoError(t, err)
	_, err = e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: peer.ID})
	require.NoError(t, err)

	// A fellow board member holds write access and may remove someone else.
	require.NoError(t, e.collaborators.Delete(ctx, peer.ID, collab.ID))

	_, err = e.collaborators.Get(ctx, owner.ID, collab.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteCollaboratorDeniedWithoutWriteAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	stranger := e.createUser(t, "stranger")
	account := e.createTeam(t, owner)
	board := e.createBoard(t, owner, account.ID, "Board")

	collab, err := e.collaborators.Create(ctx, owner.ID, board.ID, CollaboratorInput{UserID: member.ID})
	require.NoError(t, err)

	err = e.collaborators.Delete(ctx, stranger.ID, collab.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	err = e.collaborators.Delete(ctx, "", collab.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
