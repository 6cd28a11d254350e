package channel_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/message"
)

type wire struct {
	Kind string
	Body string
}

func textConverter() channel.Converter[wire, wire] {
	return channel.NewConverter(message.TypeText,
		func(w wire) bool { return w.Kind == "text" },
		func(w wire) (string, error) { return w.Body, nil },
		func(text string) (wire, error) { return wire{Kind: "text", Body: text}, nil },
	)
}

func shoutConverter() channel.Converter[wire, wire] {
	return channel.NewConverter(message.TypeText,
		func(w wire) bool { return w.Kind == "text" || w.Kind == "shout" },
		func(w wire) (string, error) { return strings.ToUpper(w.Body), nil },
		func(text string) (wire, error) { return wire{Kind: "shout", Body: text}, nil },
	)
}

func TestConverters_FirstMatchWins(t *testing.T) {
	t.Parallel()
	cs := channel.Converters[wire, wire]{textConverter(), shoutConverter()}

	out, err := cs.ToProvider(message.Text("hello"))
	require.NoError(t, err)
	assert.Equal(t, wire{Kind: "text", Body: "hello"}, out)

	msg, ok, err := cs.FromProvider(wire{Kind: "text", Body: "hello"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.PlainText())

	msg, ok, err = cs.FromProvider(wire{Kind: "shout", Body: "hello"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "HELLO", msg.PlainText())
}

func TestConverters_NoOutboundConverter(t *testing.T) {
	t.Parallel()
	cs := channel.Converters[wire, wire]{
		textConverter(),
		// recognizes menus inbound only
		channel.NewConverter[message.Menu, wire, wire](message.TypeMenu,
			func(w wire) bool { return w.Kind == "menu" },
			func(w wire) (message.Menu, error) {
				return message.Menu{Text: w.Body, Items: []message.MenuItem{{ID: "1", Title: "one"}}}, nil
			},
			nil,
		),
	}
	msg, err := message.New(message.TypeMenu, message.Menu{Text: "pick", Items: []message.MenuItem{{ID: "a", Title: "A"}}})
	require.NoError(t, err)

	_, err = cs.ToProvider(msg)
	require.ErrorIs(t, err, channel.ErrNoConverter)

	_, err = cs.ToProvider(message.Message{Type: "sticker", Content: []byte(`"x"`)})
	require.ErrorIs(t, err, channel.ErrNoConverter)
	assert.Equal(t, []message.Type{message.TypeText}, cs.Types())
}

func TestConverters_InvalidMessageNeverRendered(t *testing.T) {
	t.Parallel()
	called := false
	cs := channel.Converters[wire, wire]{
		channel.NewConverter[string, wire, wire](message.TypeText, nil, nil, func(text string) (wire, error) {
			called = true
			return wire{Body: text}, nil
		}),
	}
	_, err := cs.ToProvider(message.Message{Type: message.TypeText, Content: []byte(`{"not":"a string"}`)})
	require.ErrorIs(t, err, message.ErrInvalidContent)
	assert.False(t, called)
}

func TestConverters_Unrecognized(t *testing.T) {
	t.Parallel()
	cs := channel.Converters[wire, wire]{textConverter()}
	_, ok, err := cs.FromProvider(wire{Kind: "image"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConverters_InboundError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	cs := channel.Converters[wire, wire]{
		channel.NewConverter[string, wire, wire](message.TypeText,
			func(wire) bool { return true },
			func(wire) (string, error) { return "", boom },
			nil,
		),
	}
	_, ok, err := cs.FromProvider(wire{})
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestConverters_RoundTrip(t *testing.T) {
	t.Parallel()
	cs := channel.Converters[wire, wire]{textConverter()}
	for _, text := range []string{"hi", "", "línea\nnueva", `"quoted"`} {
		out, err := cs.ToProvider(message.Text(text))
		require.NoError(t, err)
		back, ok, err := cs.FromProvider(out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, message.TypeText, back.Type)
		assert.JSONEq(t, string(message.Text(text).Content), string(back.Content))
	}
}
