package chatlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantasma-ai/specky/internal/model"
	"github.com/phantasma-ai/specky/pkg/logger"
)

const testGreeting = "Hello Souldier\n1)Build"

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Chatlogs")
	s, err := NewStore(dir, testGreeting, logger.NewNop())
	require.NoError(t, err)
	return s, dir
}

func TestLoad_SynthesizesGreeting(t *testing.T) {
	s, dir := newTestStore(t)

	conv, err := s.Load(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, conv.Turns, 1)
	assert.True(t, conv.Turns[0].Assistant)
	assert.Equal(t, Canonical(testGreeting), conv.Turns[0].Text)

	_, err = os.Stat(filepath.Join(dir, "abc.txt"))
	assert.True(t, os.IsNotExist(err), "greeting alone must not create a log")
}

func TestLoad_ParsesExistingLog(t *testing.T) {
	s, dir := newTestStore(t)
	log := "specky:\nmenu\n####\nuser:\nI Want To Build\n####\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1234.txt"), []byte(log), 0o644))

	conv, err := s.Load(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, []model.Turn{
		model.AssistantTurn("menu\n"),
		model.UserTurn("I Want To Build\n"),
	}, conv.Turns)
	assert.True(t, s.Exists("1234"))
}

func TestLoad_ReturnsSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := s.Load(ctx, "snap")
	require.NoError(t, err)
	conv.Turns[0] = model.UserTurn("mutated")

	again, err := s.Load(ctx, "snap")
	require.NoError(t, err)
	assert.True(t, again.Turns[0].Assistant)
}

func TestLoad_ReadErrorIsSurfaced(t *testing.T) {
	s, dir := newTestStore(t)
	// A directory where the log file should be cannot be read as a log.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "broken.txt"), 0o755))

	_, err := s.Load(context.Background(), "broken")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLoad_InvalidID(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Load(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidSessionID)
	assert.False(t, s.Exists("../etc/passwd"))
}

func TestAppend_PersistsGreetingThenTurns(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "abc", model.UserTurn("I Want To Build")))
	require.NoError(t, s.Append(ctx, "abc", model.AssistantTurn("Sure, what specifically?\n1)Gaming")))

	data, err := os.ReadFile(filepath.Join(dir, "abc.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"specky:\nHello Souldier\n1)Build\n####\n"+
			"user:\nI Want To Build\n####\n"+
			"specky:\nSure, what specifically?\n1)Gaming\n####\n",
		string(data))

	mem, err := s.Load(ctx, "abc")
	require.NoError(t, err)

	// A fresh store reading the same directory sees the same conversation.
	fresh, err := NewStore(dir, "unused", logger.NewNop())
	require.NoError(t, err)
	disk, err := fresh.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, mem.Turns, disk.Turns)
	assert.Len(t, disk.Turns, 3)
}

func TestAppend_ConcurrentSessions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < 10; j++ {
				assert.NoError(t, s.Append(ctx, id, model.UserTurn(fmt.Sprintf("msg %d", j))))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		conv, err := s.Load(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Len(t, conv.Turns, 11)
	}
}

func TestLoad_UnknownSessionIsNotCached(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Load(ctx, fmt.Sprintf("visitor%d", i))
		require.NoError(t, err)
	}
	assert.Empty(t, s.entries)
	assert.False(t, s.Exists("visitor0"))

	require.NoError(t, s.Append(ctx, "visitor0", model.UserTurn("hi")))
	assert.Len(t, s.entries, 1)
	assert.True(t, s.Exists("visitor0"))

	conv, err := s.Load(ctx, "visitor0")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 2)
}

func TestAppend_CRLFTextMatchesLogAfterReload(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "crlf", model.UserTurn("line one\r\nline two")))
	require.NoError(t, s.Append(ctx, "crlf", model.AssistantTurn("reply\r\n")))

	mem, err := s.Load(ctx, "crlf")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", mem.Turns[1].Text)
	assert.Equal(t, "reply\n", mem.Turns[2].Text)

	fresh, err := NewStore(dir, testGreeting, logger.NewNop())
	require.NoError(t, err)
	disk, err := fresh.Load(ctx, "crlf")
	require.NoError(t, err)
	assert.Equal(t, mem.Turns, disk.Turns)
}
