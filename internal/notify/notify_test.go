package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegram_Notify(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegramWithSender(sender, 42)

	require.NoError(t, tg.Notify(context.Background(), Info, "<b>Digest</b>"))
	require.NoError(t, tg.Notify(context.Background(), Warning, "sync failed: a<b"))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, sender.sent[0].ParseMode)
	assert.Equal(t, "<b>Digest</b>", sender.sent[0].Text, "info notices are pre-rendered HTML")
	assert.Equal(t, "⚠️ <b>sync failed: a&lt;b</b>", sender.sent[1].Text)
}

func TestTelegram_SendError(t *testing.T) {
	tg := NewTelegramWithSender(&fakeSender{err: errors.New("429 too many requests")}, 1)
	err := tg.Notify(context.Background(), Info, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	var got []string
	ok := Func(func(_ context.Context, _ Level, text string) error {
		got = append(got, text)
		return nil
	})
	failing := Func(func(context.Context, Level, string) error { return errors.New("down") })

	err := Multi{failing, nil, ok, Log{}}.Notify(context.Background(), Warning, "hello")
	require.Error(t, err)
	assert.Equal(t, []string{"hello"}, got)
}

func TestSend_NilNotifier(t *testing.T) {
	assert.NotPanics(t, func() { Send(context.Background(), nil, Info, "ignored") })
}
