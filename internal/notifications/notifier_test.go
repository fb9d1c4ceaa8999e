package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/database/testutil"
	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/pkg/mail"
)

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newNotifierFixture(t *testing.T) (*gorm.DB, *Notifier, *recordingMailer, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{}
	notifier, err := NewNotifier(db, NewHub(), mailer)
	require.NoError(t, err)

	user := &models.User{
		Username:     "recipient-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		Password:     "hashed",
		TokenVersion: uuid.NewString(),
	}
	require.NoError(t, db.Create(user).Error)

	return db, notifier, mailer, user
}

func TestNotifyPersistsNotification(t *testing.T) {
	db, notifier, _, user := newNotifierFixture(t)

	notifier.Notify(context.Background(), Payload{
		UserID:   user.ID,
		Label:    LabelJoinRequestAccepted,
		Metadata: map[string]interface{}{"board_id": "b1"},
	})

	var stored models.Notification
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	require.Equal(t, LabelJoinRequestAccepted, stored.Label)
	require.False(t, stored.IsRead)
	require.Contains(t, string(stored.Metadata), "b1")
}

func TestNotifySendsEmail(t *testing.T) {
	_, notifier, mailer, user := newNotifierFixture(t)

	notifier.Notify(context.Background(), Payload{
		UserID: user.ID,
		Label:  LabelBoardInviteCreated,
		Email: &mail.Message{
			To:      []string{user.Email},
			Subject: "You have been invited",
			Body:    "Open your boards to get started.",
		},
	})

	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{user.Email}, mailer.sent[0].To)
}

func TestNotifyEmailOnlyWhenNoRecipientUser(t *testing.T) {
	db, notifier, mailer, _ := newNotifierFixture(t)

	notifier.Notify(context.Background(), Payload{
		Label: LabelBoardInviteCreated,
		Email: &mail.Message{
			To:      []string{"invitee@example.com"},
			Subject: "Invitation",
			Body:    "Join us.",
		},
	})

	require.Len(t, mailer.sent, 1)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestNotifySwallowsMailerFailures(t *testing.T) {
	db, notifier, mailer, user := newNotifierFixture(t)
	mailer.err = context.DeadlineExceeded

	notifier.Notify(context.Background(), Payload{
		UserID: user.ID,
		Label:  LabelUserPasswordUpdated,
		Email:  &mail.Message{To: []string{user.Email}, Subject: "x", Body: "y"},
	})

	// The in-app leg still lands.
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestListForUserAndMarkRead(t *testing.T) {
	db, notifier, _, user := newNotifierFixture(t)
	ctx := context.Background()

	notifier.Notify(ctx, Payload{UserID: user.ID, Label: LabelJoinRequestAccepted})
	notifier.Notify(ctx, Payload{UserID: user.ID, Label: LabelJoinRequestRejected})

	items, err := notifier.ListForUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, notifier.MarkRead(ctx, user.ID, items[0].ID))

	unread, err := notifier.ListForUser(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	var read models.Notification
	require.NoError(t, db.First(&read, "id = ?", items[0].ID).Error)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	// Another user cannot mark it.
	err = notifier.MarkRead(ctx, uuid.NewString(), items[1].ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
