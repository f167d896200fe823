package engine

import (
	"errors"
	"io"
	"testing"
	"time"

	"go-grandwager/internal/config"
	"go-grandwager/internal/event"
	"go-grandwager/internal/model"
	"go-grandwager/internal/storage"
	"golang.org/x/exp/slog"
)

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		CommissionPercent:        5,
		MinBet:                   1,
		MaxBet:                   10000,
		RoundDurationMs:          10000,
		RoundDelayMs:             10,
		MaxPrivateRoomsPerPlayer: 2,
		StartingBalance:          1000,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryLedger) {
	return newTestRegistryWithSink(t, event.NopSink{})
}

func newTestRegistryWithSink(t *testing.T, sink event.Sink) (*Registry, *storage.MemoryLedger) {
	t.Helper()

	players := storage.NewMemoryLedger()

	reg := NewRegistry(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		testGameConfig(),
		players,
		storage.NewMemoryRoomStore(),
		storage.NewMemoryRoundStore(),
		sink,
		2,
	)
	t.Cleanup(reg.Stop)

	return reg, players
}

func mustCreatePlayer(t *testing.T, reg *Registry, username string) *model.Player {
	t.Helper()

	player, err := reg.CreatePlayer(username)
	if err != nil {
		t.Fatalf("failed to create player %s: %v", username, err)
	}

	return player
}

func mustCreateRoom(t *testing.T, reg *Registry, in CreateRoomInput) *model.Room {
	t.Helper()

	room, err := reg.CreateRoom(in)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	return room
}

func publicRoomInput(creatorID string) CreateRoomInput {
	return CreateRoomInput{
		Name:            "Test Stakes",
		Type:            model.RoomPublic,
		MinBet:          10,
		MaxBet:          100,
		MaxBetters:      3,
		RoundDurationMs: 10000,
		CreatorID:       creatorID,
	}
}

func TestCreatePlayer(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)

	player := mustCreatePlayer(t, reg, "alice")
	if player.Balance != 1000 {
		t.Errorf("unexpected starting balance, want: 1000, got: %f", player.Balance)
	}

	if _, err := reg.CreatePlayer("alice"); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("unexpected error for duplicate username, want: %v, got: %v", ErrDuplicateUsername, err)
	}

	if _, err := reg.CreatePlayer("   "); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("unexpected error for blank username, want: %v, got: %v", ErrInvalidUsername, err)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(in *CreateRoomInput)
		wantErr error
	}{
		{
			name:    "MissingName",
			mutate:  func(in *CreateRoomInput) { in.Name = "" },
			wantErr: ErrInvalidRoomSpec,
		},
		{
			name:    "MinAboveMax",
			mutate:  func(in *CreateRoomInput) { in.MinBet = 200 },
			wantErr: ErrInvalidRoomSpec,
		},
		{
			name:    "TooManyBetters",
			mutate:  func(in *CreateRoomInput) { in.MaxBetters = 101 },
			wantErr: ErrInvalidRoomSpec,
		},
		{
			name:    "DurationTooShort",
			mutate:  func(in *CreateRoomInput) { in.RoundDurationMs = 500 },
			wantErr: ErrInvalidRoomSpec,
		},
		{
			name:    "UnknownType",
			mutate:  func(in *CreateRoomInput) { in.Type = "club" },
			wantErr: ErrInvalidRoomSpec,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reg, _ := newTestRegistry(t)
			creator := mustCreatePlayer(t, reg, "creator")

			in := publicRoomInput(creator.ID)
			tc.mutate(&in)

			_, err := reg.CreateRoom(in)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("unexpected error, want: %v, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateRoomOpensWaitingRound(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")

	room := mustCreateRoom(t, reg, publicRoomInput(creator.ID))

	if room.Status != model.RoomWaiting {
		t.Errorf("unexpected room status, want: %s, got: %s", model.RoomWaiting, room.Status)
	}
	if !room.HasMember(creator.ID) {
		t.Error("expected creator to be in the audience")
	}

	round, err := reg.CurrentRound(room.ID)
	if err != nil {
		t.Fatalf("failed to read current round: %v", err)
	}
	if round == nil {
		t.Fatal("expected a waiting round immediately after creation")
	}
	if round.Status != model.RoundWaiting {
		t.Errorf("unexpected round status, want: %s, got: %s", model.RoundWaiting, round.Status)
	}
	if room.CurrentRoundID != round.ID {
		t.Errorf("room does not point at its round: %s != %s", room.CurrentRoundID, round.ID)
	}
}

func TestCreatePrivateRoom(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")

	in := publicRoomInput(creator.ID)
	in.Type = model.RoomPrivate
	in.MaxBetters = 10

	room := mustCreateRoom(t, reg, in)

	if room.MaxBetters != 2 {
		t.Errorf("private rooms are head-to-head, want maxBetters 2, got: %d", room.MaxBetters)
	}
	if len(room.InviteCode) != 6 {
		t.Errorf("unexpected invite code %q", room.InviteCode)
	}

	found, err := reg.RoomByInviteCode(room.InviteCode)
	if err != nil {
		t.Fatalf("failed to look up by invite code: %v", err)
	}
	if found.ID != room.ID {
		t.Errorf("invite code resolved to wrong room: %s != %s", found.ID, room.ID)
	}

	if _, err = reg.RoomByInviteCode("NOPE42"); !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("unexpected error for bad invite code, want: %v, got: %v", ErrInvalidInvite, err)
	}
}

func TestPrivateRoomQuota(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")

	in := publicRoomInput(creator.ID)
	in.Type = model.RoomPrivate

	first := mustCreateRoom(t, reg, in)
	mustCreateRoom(t, reg, in)

	if _, err := reg.CreateRoom(in); !errors.Is(err, ErrPrivateRoomQuota) {
		t.Fatalf("unexpected error at quota, want: %v, got: %v", ErrPrivateRoomQuota, err)
	}

	// Closing one frees a slot.
	if err := reg.CloseRoom(first.ID, creator.ID); err != nil {
		t.Fatalf("failed to close room: %v", err)
	}
	if _, err := reg.CreateRoom(in); err != nil {
		t.Fatalf("expected creation to succeed after closing a room: %v", err)
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")
	guest := mustCreatePlayer(t, reg, "guest")

	room := mustCreateRoom(t, reg, publicRoomInput(creator.ID))

	for i := 0; i < 2; i++ {
		joined, err := reg.JoinRoom(room.ID, guest.ID)
		if err != nil {
			t.Fatalf("join %d failed: %v", i+1, err)
		}
		if len(joined.Audience) != 2 {
			t.Fatalf("unexpected audience size after join %d, want: 2, got: %d", i+1, len(joined.Audience))
		}
	}
}

func TestJoinRoomByInviteCode(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")
	guest := mustCreatePlayer(t, reg, "guest")

	in := publicRoomInput(creator.ID)
	in.Type = model.RoomPrivate
	room := mustCreateRoom(t, reg, in)

	joined, err := reg.JoinRoomByInviteCode(room.InviteCode, guest.ID)
	if err != nil {
		t.Fatalf("failed to join by invite code: %v", err)
	}
	if !joined.HasMember(guest.ID) {
		t.Error("expected guest in audience after invite join")
	}

	if _, err = reg.JoinRoomByInviteCode("ZZZZZZ", guest.ID); !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("unexpected error, want: %v, got: %v", ErrInvalidInvite, err)
	}
}

func TestLeaveLastPlayerClosesPrivateRoom(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")

	in := publicRoomInput(creator.ID)
	in.Type = model.RoomPrivate
	room := mustCreateRoom(t, reg, in)

	if err := reg.LeaveRoom(room.ID, creator.ID); err != nil {
		t.Fatalf("failed to leave room: %v", err)
	}

	if _, err := reg.Room(room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected empty private room to be gone, got: %v", err)
	}
}

func TestCloseRoomPolicy(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")
	stranger := mustCreatePlayer(t, reg, "stranger")

	room := mustCreateRoom(t, reg, publicRoomInput(creator.ID))

	if err := reg.CloseRoom(room.ID, stranger.ID); !errors.Is(err, ErrNotCreator) {
		t.Errorf("unexpected error for non-creator, want: %v, got: %v", ErrNotCreator, err)
	}

	// A pending bet blocks closing.
	if _, err := reg.JoinRoom(room.ID, stranger.ID); err != nil {
		t.Fatalf("failed to join: %v", err)
	}
	if _, err := reg.PlaceBet(room.ID, stranger.ID, 10); err != nil {
		t.Fatalf("failed to place bet: %v", err)
	}
	if err := reg.CloseRoom(room.ID, creator.ID); !errors.Is(err, ErrRoundHasBets) {
		t.Errorf("unexpected error with bets pending, want: %v, got: %v", ErrRoundHasBets, err)
	}

	// Seeded rooms can never be closed, not even by the system creator.
	if err := reg.EnsureDefaultRooms([]DefaultRoomSpec{
		{Name: "House Room", MinBet: 1, MaxBet: 100, MaxBetters: 20, RoundDurationMs: 10000},
	}); err != nil {
		t.Fatalf("failed to seed default room: %v", err)
	}

	seeded := reg.runtimeByName("House Room")
	if seeded == nil {
		t.Fatal("seeded room runtime missing")
	}
	if err := reg.CloseRoom(seeded.room.ID, SystemCreatorID); !errors.Is(err, ErrSeededRoom) {
		t.Errorf("unexpected error for seeded room, want: %v, got: %v", ErrSeededRoom, err)
	}
}

func TestEnsureDefaultRoomsIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)

	specs := []DefaultRoomSpec{
		{Name: "Low Stake", MinBet: 1, MaxBet: 100, MaxBetters: 20, RoundDurationMs: 10000},
		{Name: "High Stake", MinBet: 100, MaxBet: 1000, MaxBetters: 20, RoundDurationMs: 10000},
	}

	for i := 0; i < 2; i++ {
		if err := reg.EnsureDefaultRooms(specs); err != nil {
			t.Fatalf("seeding pass %d failed: %v", i+1, err)
		}
	}

	rooms := reg.PublicRooms()
	if len(rooms) != 2 {
		t.Fatalf("unexpected public room count, want: 2, got: %d", len(rooms))
	}
	for _, room := range rooms {
		if !room.Seeded {
			t.Errorf("room %s should be seeded", room.Name)
		}
		if room.CurrentRoundID == "" {
			t.Errorf("room %s has no waiting round", room.Name)
		}
	}
}

func TestRoomListings(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	creator := mustCreatePlayer(t, reg, "creator")

	pub := publicRoomInput(creator.ID)
	mustCreateRoom(t, reg, pub)

	// Creation timestamps order the listing; keep them distinct.
	time.Sleep(5 * time.Millisecond)

	priv := publicRoomInput(creator.ID)
	priv.Type = model.RoomPrivate
	mustCreateRoom(t, reg, priv)

	if got := len(reg.PublicRooms()); got != 1 {
		t.Errorf("unexpected public room count, want: 1, got: %d", got)
	}

	all := reg.ActiveRooms()
	if len(all) != 2 {
		t.Fatalf("unexpected active room count, want: 2, got: %d", len(all))
	}
	if all[0].Type != model.RoomPrivate {
		t.Errorf("expected newest room first, got type %s", all[0].Type)
	}
}

func TestBetOnUnknownRoom(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	player := mustCreatePlayer(t, reg, "drifter")

	if _, err := reg.PlaceBet("no-such-room", player.ID, 10); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unexpected error, want: %v, got: %v", ErrRoomNotFound, err)
	}
}
