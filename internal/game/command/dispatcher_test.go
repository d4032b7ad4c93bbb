package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/samud/samud/internal/game/session"
	"github.com/samud/samud/internal/game/world"
)

type recorder struct {
	mu    sync.Mutex
	name  string
	lines []string
}

func (r *recorder) SendLine(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
	return nil
}

func (r *recorder) DisplayName() string { return r.name }

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

type nullStore struct{}

func (nullStore) SavePlayerLocation(context.Context, int64, int64) error { return nil }

type fixture struct {
	world      *session.Manager
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := world.NewGraph(
		[]*world.Room{
			{ID: 1, Name: "The Alamo Plaza", Description: "Stone walls rise around you."},
			{ID: 2, Name: "The River Walk", Description: "Water flows past cafes."},
		},
		[]world.Exit{
			{FromRoomID: 1, ToRoomID: 2, Direction: "south"},
			{FromRoomID: 2, ToRoomID: 1, Direction: "north"},
		},
		1,
	)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return &fixture{
		world:      session.NewManager(g, nullStore{}, logger),
		dispatcher: NewDispatcher(DefaultRegistry(), logger),
	}
}

func (f *fixture) join(t *testing.T, userID int64, name string, roomID int64) (*Request, *recorder) {
	t.Helper()
	out := &recorder{name: name}
	sess := &session.Session{
		ID:       uuid.New(),
		UserID:   userID,
		Username: name,
		Out:      out,
	}
	require.NoError(t, f.world.Join(sess, roomID))
	return &Request{
		Ctx:      context.Background(),
		World:    f.world,
		UserID:   userID,
		Username: name,
		Out:      out,
	}, out
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "dance"))
	assert.Equal(t, "Unknown command. Type 'help' for available commands.", out.last())
}

func TestDispatchBlankLine(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	before := len(out.received())
	assert.True(t, f.dispatcher.Dispatch(req, "   "))
	assert.Len(t, out.received(), before)
}

func TestDispatchLook(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)
	f.join(t, 2, "bob", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "look"))
	assert.Equal(t, "The Alamo Plaza\nStone walls rise around you.\nExits: south\nPlayers here: alice, bob\n", out.last())
}

func TestDispatchSayScopedToRoom(t *testing.T) {
	f := newFixture(t)
	aliceReq, aliceOut := f.join(t, 1, "alice", 1)
	_, bobOut := f.join(t, 2, "bob", 1)
	_, carolOut := f.join(t, 3, "carol", 2)

	assert.True(t, f.dispatcher.Dispatch(aliceReq, "say hi"))

	assert.Equal(t, "[Room] you: hi", aliceOut.last())
	assert.Contains(t, bobOut.received(), "[Room] alice: hi")
	assert.NotContains(t, carolOut.received(), "[Room] alice: hi")
}

func TestDispatchSayNoMessage(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "say"))
	assert.Equal(t, "Say what?", out.last())
}

func TestDispatchShoutReachesEveryone(t *testing.T) {
	f := newFixture(t)
	aliceReq, aliceOut := f.join(t, 1, "alice", 1)
	_, carolOut := f.join(t, 3, "carol", 2)

	assert.True(t, f.dispatcher.Dispatch(aliceReq, "shout free tacos downtown"))

	assert.Equal(t, "[Global] you: free tacos downtown", aliceOut.last())
	assert.Contains(t, carolOut.received(), "[Global] alice: free tacos downtown")
}

func TestDispatchShoutNoMessage(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "shout"))
	assert.Equal(t, "Shout what?", out.last())
}

func TestDispatchMove(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "move south"))
	assert.Contains(t, out.last(), "The River Walk")

	// Short alias moves back.
	assert.True(t, f.dispatcher.Dispatch(req, "n"))
	assert.Contains(t, out.last(), "The Alamo Plaza")
}

func TestDispatchMoveFailureReportedInline(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "move west"))
	assert.Equal(t, "No exit west.", out.last())

	assert.True(t, f.dispatcher.Dispatch(req, "e"))
	assert.Equal(t, "No exit east.", out.last())
}

func TestDispatchMoveNoDirection(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "move"))
	assert.Equal(t, "Move which direction?", out.last())
}

func TestDispatchWho(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "zed", 1)
	f.join(t, 2, "alice", 2)

	assert.True(t, f.dispatcher.Dispatch(req, "who"))
	assert.Equal(t, "Online players:\n  alice\n  zed", out.last())
}

func TestDispatchWhoNobodyOnline(t *testing.T) {
	f := newFixture(t)
	out := &recorder{name: "ghost"}
	req := &Request{
		Ctx:      context.Background(),
		World:    f.world,
		UserID:   99,
		Username: "ghost",
		Out:      out,
	}

	assert.True(t, f.dispatcher.Dispatch(req, "who"))
	assert.Equal(t, "No players are currently online.", out.last())
}

func TestDispatchWhere(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 2)

	assert.True(t, f.dispatcher.Dispatch(req, "where"))
	assert.Equal(t, "You are in: The River Walk", out.last())
}

func TestDispatchHelp(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)

	assert.True(t, f.dispatcher.Dispatch(req, "help"))
	assert.Contains(t, out.last(), "Available commands:")
	assert.Contains(t, out.last(), "say <message>")
	assert.Contains(t, out.last(), "Welcome to San Antonio!")
}

func TestDispatchQuit(t *testing.T) {
	f := newFixture(t)
	req, out := f.join(t, 1, "alice", 1)
	_, bobOut := f.join(t, 2, "bob", 1)

	assert.False(t, f.dispatcher.Dispatch(req, "quit"))
	assert.Equal(t, "Goodbye! Your progress has been saved.", out.last())
	assert.Contains(t, bobOut.received(), "alice disappears.")
	assert.False(t, f.world.IsOnline(1))
}

func TestDispatchNotInWorld(t *testing.T) {
	f := newFixture(t)
	out := &recorder{name: "ghost"}
	req := &Request{
		Ctx:      context.Background(),
		World:    f.world,
		UserID:   99,
		Username: "ghost",
		Out:      out,
	}

	for _, line := range []string{"look", "say hi", "where", "move north"} {
		assert.True(t, f.dispatcher.Dispatch(req, line))
		assert.Equal(t, "You are not in the world.", out.last(), "input %q", line)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	registry, err := NewRegistry([]Command{
		{
			Name: "explode",
			Run: func(*Request, ParseResult) error {
				panic("boom")
			},
		},
	})
	require.NoError(t, err)
	d := NewDispatcher(registry, zaptest.NewLogger(t))

	out := &recorder{name: "alice"}
	req := &Request{Ctx: context.Background(), Username: "alice", Out: out}

	assert.True(t, d.Dispatch(req, "explode"))
	assert.Equal(t, "Error executing command: boom", out.last())
}

func TestDispatchReportsCommandError(t *testing.T) {
	registry, err := NewRegistry([]Command{
		{
			Name: "fail",
			Run: func(*Request, ParseResult) error {
				return errors.New("database unavailable")
			},
		},
	})
	require.NoError(t, err)
	d := NewDispatcher(registry, zaptest.NewLogger(t))

	out := &recorder{name: "alice"}
	req := &Request{Ctx: context.Background(), Username: "alice", Out: out}

	assert.True(t, d.Dispatch(req, "fail"))
	assert.Equal(t, "Error executing command: database unavailable", out.last())
}
