package dispatch

import (
	"testing"

	"grouplock/internal/runstate"

	"github.com/stretchr/testify/assert"
)

func TestNextMessage_Rotation(t *testing.T) {
	st := runstate.New(nil)
	msgs := []string{"m0", "m1", "m2"}
	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, NextMessage(msgs, st))
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m0"}, got)
}

func TestNextMessage_EmptyList(t *testing.T) {
	st := runstate.New(nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "Hello!", NextMessage(nil, st))
	}
}

func TestParseMessages(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, ParseMessages("  one\n\n \t\ntwo  \r\n"))
	assert.Nil(t, ParseMessages(""))
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "Bob hi", Compose("Bob", "hi"))
	assert.Equal(t, "hi", Compose("", "hi"))
	assert.Equal(t, "Bob", Compose("Bob ", ""))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 60))
	long := "ééééééééééééééééééééééééééééééééééééééééééééééééééééééééééééééééééééé"
	assert.Len(t, []rune(Preview(long, 60)), 60)
}
