package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardhub/boardhub/internal/models"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
)

func TestValidateSignupDomain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	account := e.createTeam(t, owner)

	require.NoError(t, e.accounts.SetAllowSignup(ctx, owner.ID, account.ID, true))
	_, err := e.accounts.AddEmailDomain(ctx, owner.ID, account.ID, "example.com")
	require.NoError(t, err)

	got, err := e.invitations.ValidateSignupDomain(ctx, account.Slug, "new.hire@Example.COM")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)
}

func TestValidateSignupDomainUniformFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")

	// Signup enabled but wrong domain.
	open := e.createTeam(t, owner)
	require.NoError(t, e.accounts.SetAllowSignup(ctx, owner.ID, open.ID, true))
	_, err := e.accounts.AddEmailDomain(ctx, owner.ID, open.ID, "example.com")
	require.NoError(t, err)

	_, err = e.invitations.ValidateSignupDomain(ctx, open.Slug, "who@other.com")
	require.ErrorIs(t, err, appErrors.ErrDomainNotAllowed)

	// Right domain but signup disabled.
	closed := e.createTeam(t, owner)
	_, err = e.accounts.AddEmailDomain(ctx, owner.ID, closed.ID, "example.com")
	require.NoError(t, err)

	_, err = e.invitations.ValidateSignupDomain(ctx, closed.Slug, "who@example.com")
	require.ErrorIs(t, err, appErrors.ErrDomainNotAllowed)

	// Unknown account slug.
	_, err = e.invitations.ValidateSignupDomain(ctx, "no-such-account", "who@example.com")
	require.ErrorIs(t, err, appErrors.ErrDomainNotAllowed)

	// Not even an email.
	_, err = e.invitations.ValidateSignupDomain(ctx, open.Slug, "not-an-email")
	require.ErrorIs(t, err, appErrors.ErrDomainNotAllowed)
}

func TestInviteUserCreates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	account := e.createTeam(t, owner)

	result, err := e.invitations.InviteUser(ctx, owner.ID, InviteInput{
		Email:     "Invitee@Example.com",
		AccountID: account.ID,
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	require.Equal(t, "invitee@example.com", result.Invite.Email)
	require.Equal(t, owner.ID, result.Invite.CreatedByID)

	require.Len(t, e.mailer.sent, 1)
	require.Equal(t, []string{"invitee@example.com"}, e.mailer.sent[0].To)
}

func TestInviteUserIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner, member)

	first, err := e.invitations.InviteUser(ctx, owner.ID, InviteInput{Email: "invitee@example.com", AccountID: account.ID})
	require.NoError(t, err)
	require.True(t, first.Created)

	// A different actor repeating the invite gets the original row and
	// triggers no second email.
	second, err := e.invitations.InviteUser(ctx, member.ID, InviteInput{Email: "INVITEE@example.com", AccountID: account.ID})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Invite.ID, second.Invite.ID)
	require.Equal(t, owner.ID, second.Invite.CreatedByID)
	require.Len(t, e.mailer.sent, 1)
}

func TestInviteUserRequiresAccountMembership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	stranger := e.createUser(t, "stranger")
	account := e.createTeam(t, owner)

	_, err := e.invitations.InviteUser(ctx, stranger.ID, InviteInput{Email: "x@example.com", AccountID: account.ID})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestInviteUserValidatesEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	account := e.createTeam(t, owner)

	_, err := e.invitations.InviteUser(ctx, owner.ID, InviteInput{Email: "not-an-email", AccountID: account.ID})
	appErr := appErrors.FromError(err)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestListAndRevokeInvites(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "owner")
	member := e.createUser(t, "member")
	account := e.createTeam(t, owner, member)

	result, err := e.invitations.InviteUser(ctx, owner.ID, InviteInput{Email: "a@example.com", AccountID: account.ID})
	require.NoError(t, err)

	invites, err := e.invitations.ListForAccount(ctx, member.ID, account.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)

	// Revocation is owner only.
	err = e.invitations.RevokeInvite(ctx, member.ID, result.Invite.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, e.invitations.RevokeInvite(ctx, owner.ID, result.Invite.ID))

	invites, err = e.invitations.ListForAccount(ctx, owner.ID, account.ID)
	require.NoError(t, err)
	require.Empty(t, invites)
}

func TestRegisterSignupInterest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.invitations.RegisterSignupInterest(ctx, "Waiting@Example.com")
	require.NoError(t, err)
	require.Equal(t, "waiting@example.com", first.Email)
	require.NotEmpty(t, first.Token)

	// Repeat submissions keep the original row and token.
	second, err := e.invitations.RegisterSignupInterest(ctx, "waiting@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Token, second.Token)

	var count int64
	require.NoError(t, e.db.Model(&models.SignupRequest{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = e.invitations.RegisterSignupInterest(ctx, "nope")
	appErr := appErrors.FromError(err)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}
