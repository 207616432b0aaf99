package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"igrepost/pkg/config"
	"igrepost/pkg/progress"
)

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

type fakeTelegram struct {
	to   telebot.Recipient
	text string
}

func (f *fakeTelegram) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.to = to
	f.text, _ = what.(string)
	return &telebot.Message{}, nil
}

func TestNotifierPrintsAndForwards(t *testing.T) {
	var out bytes.Buffer
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender, &out)

	n.SendSuccess("Reposted", "@creator")
	n.SendError("Repost failed", "upload rejected")
	n.SendNotification("Bot", "started")

	assert.Equal(t, []string{"Reposted", "Repost failed", "Bot"}, sender.titles)
	assert.Contains(t, out.String(), "upload rejected")
	assert.NoError(t, n.LastError())
}

func TestNotifierRemembersDeliveryFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWithSender(sender, nil)

	n.SendSuccess("Reposted", "x")
	assert.EqualError(t, n.LastError(), "no display")
}

func TestNotifierRespectsToggles(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender, nil)
	n.onComplete = false

	n.SendSuccess("Reposted", "x")
	n.SendError("Failed", "y")
	assert.Equal(t, []string{"Failed"}, sender.titles)
}

func TestNewNotifierFromConfig(t *testing.T) {
	n, err := NewNotifierFromConfig(config.NotificationConfig{})
	require.NoError(t, err)
	assert.Nil(t, n.sender)

	_, err = NewNotifierFromConfig(config.NotificationConfig{Enabled: true, NotificationType: "pigeon"})
	assert.Error(t, err)

	n, err = NewNotifierFromConfig(config.NotificationConfig{
		Enabled:          true,
		NotificationType: "telegram",
		TelegramToken:    "123:abc",
		TelegramChatID:   42,
	})
	require.NoError(t, err)
	assert.IsType(t, &TelegramSender{}, n.sender)
}

func TestTelegramSender(t *testing.T) {
	fake := &fakeTelegram{}
	s := &TelegramSender{bot: fake, chat: &telebot.Chat{ID: 42}}

	require.NoError(t, s.Send("Reposted", "ABC by @creator"))
	assert.Equal(t, "42", fake.to.Recipient())
	assert.Equal(t, "Reposted\nABC by @creator", fake.text)
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	r := progress.NewUpdate(progress.StatusError, "Failed to repost reel.", "r1", "alice").Record(time.Now())
	WriteRecord(&buf, r)

	out := buf.String()
	for _, want := range []string{"error", "Failed to repost reel.", "r1", "alice"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	WriteRecord(&buf, progress.Default(time.Now()))
	assert.Contains(t, buf.String(), "idle")
	assert.Contains(t, buf.String(), "-")
}
