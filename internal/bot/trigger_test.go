package bot

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgUpdate(id int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id,
			From:      &User{ID: 42, Username: "alice"},
			Chat:      Chat{ID: 42},
			Text:      text,
		},
	}
}

func callbackUpdate(id int64, data string) Update {
	return Update{
		UpdateID: id,
		CallbackQuery: &CallbackQuery{
			ID:      "cb",
			From:    User{ID: 42, Username: "alice"},
			Message: &Message{MessageID: id, Chat: Chat{ID: 42}},
			Data:    data,
		},
	}
}

func TestTrigger_Command(t *testing.T) {
	trig := Trigger{Command: "/start"}

	u := msgUpdate(1, "/start")
	assert.True(t, trig.Matches(&u))

	u = msgUpdate(2, "/start now")
	assert.True(t, trig.Matches(&u))

	u = msgUpdate(3, "/started")
	assert.False(t, trig.Matches(&u))

	u = callbackUpdate(4, "/start")
	assert.False(t, trig.Matches(&u))
}

func TestTrigger_Pattern(t *testing.T) {
	trig := Trigger{Pattern: regexp.MustCompile(`^Load average$`)}

	u := msgUpdate(1, "Load average")
	assert.True(t, trig.Matches(&u))

	u = msgUpdate(2, "load average please")
	assert.False(t, trig.Matches(&u))
}

func TestTrigger_CallbackPrefix(t *testing.T) {
	trig := Trigger{CallbackPrefix: "__manage__:"}

	u := callbackUpdate(1, "__manage__:nginx:42")
	assert.True(t, trig.Matches(&u))

	u = callbackUpdate(2, "__get_logs__:nginx")
	assert.False(t, trig.Matches(&u))

	u = msgUpdate(3, "__manage__:nginx:42")
	assert.False(t, trig.Matches(&u))
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := NewRegistry()

	var fired string
	r.Add("specific", Trigger{Command: "/start"}, func(context.Context, *Update) error {
		fired = "specific"
		return nil
	})
	r.Add("fallback", Trigger{AnyMessage: true}, func(context.Context, *Update) error {
		fired = "fallback"
		return nil
	})

	u := msgUpdate(1, "/start")
	name, h := r.Match(&u)
	require.NotNil(t, h)
	assert.Equal(t, "specific", name)
	require.NoError(t, h(context.Background(), &u))
	assert.Equal(t, "specific", fired)

	u = msgUpdate(2, "anything else")
	name, h = r.Match(&u)
	require.NotNil(t, h)
	assert.Equal(t, "fallback", name)
}

func TestRegistry_NoMatch(t *testing.T) {
	r := NewRegistry()
	r.Add("cb", Trigger{CallbackPrefix: "__swap_info__"}, func(context.Context, *Update) error { return nil })

	u := msgUpdate(1, "hello")
	name, h := r.Match(&u)
	assert.Empty(t, name)
	assert.Nil(t, h)
}
