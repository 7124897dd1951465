package gateway

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"

	"rolewarden/internal/audit"
	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/roles"
	"rolewarden/internal/storage"
)

// stubPlatform satisfies roles.Platform for handler tests that never reach
// the session.
type stubPlatform struct{}

func (stubPlatform) MemberRoles(context.Context, string) ([]string, error) { return nil, nil }
func (stubPlatform) AddRole(context.Context, string, string, string) error { return nil }
func (stubPlatform) RemoveRole(context.Context, string, string, string) error { return nil }
func (stubPlatform) ApplyRoles(context.Context, string, []string, string) error { return nil }
func (stubPlatform) RoleExists(string) bool { return true }
func (stubPlatform) RoleManaged(string) bool { return false }
func (stubPlatform) RoleAssignable(string) bool { return true }

type stubRoleStore struct {
	snapshots map[string][]string
	history   []storage.RoleHistoryEntry
}

func (s *stubRoleStore) RoleSnapshot(_ context.Context, userID string) ([]string, error) {
	roleIDs, ok := s.snapshots[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return roleIDs, nil
}

func (s *stubRoleStore) SetRoleSnapshot(_ context.Context, userID string, roleIDs []string) error {
	s.snapshots[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (s *stubRoleStore) AppendRoleHistory(_ context.Context, entry storage.RoleHistoryEntry) error {
	s.history = append(s.history, entry)
	return nil
}

func (s *stubRoleStore) ListRoleHistory(context.Context, string, int) ([]storage.RoleHistoryEntry, error) {
	return nil, nil
}

func newHandlerGateway(t *testing.T, store *stubRoleStore) *Gateway {
	t.Helper()
	toggles, err := roles.NewToggleGroups(nil)
	if err != nil {
		t.Fatalf("NewToggleGroups: %v", err)
	}
	coordinator, err := roles.NewCoordinator(stubPlatform{}, store, toggles, audit.LogSink{})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	reconciler, err := roles.NewReconciler(stubPlatform{}, store, coordinator, audit.LogSink{}, "")
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return &Gateway{guildID: "g1", reconciler: reconciler}
}

func TestMemberUpdateCacheMissRefreshesSnapshotWithoutHistory(t *testing.T) {
	store := &stubRoleStore{snapshots: make(map[string][]string)}
	g := newHandlerGateway(t, store)

	g.onGuildMemberUpdate(nil, &discordgo.GuildMemberUpdate{
		Member: &discordgo.Member{
			GuildID: "g1",
			User:    &discordgo.User{ID: "u1"},
			Roles:   []string{"r1", "r2"},
		},
	})

	if got := store.snapshots["u1"]; len(got) != 2 {
		t.Fatalf("snapshot = %v, want the current role set saved", got)
	}
	// No cached before set means no observable delta.
	if len(store.history) != 0 {
		t.Fatalf("history entries = %d, want 0 on a cache miss", len(store.history))
	}
}

func TestVoiceStateDeltas(t *testing.T) {
	tests := []struct {
		name   string
		before *discordgo.VoiceState
		after  *discordgo.VoiceState
		want   []string
	}{
		{
			"mute on",
			&discordgo.VoiceState{},
			&discordgo.VoiceState{SelfMute: true},
			[]string{"muted"},
		},
		{
			"mute off",
			&discordgo.VoiceState{SelfMute: true},
			&discordgo.VoiceState{},
			[]string{"unmuted"},
		},
		{
			"deafen and stream together",
			&discordgo.VoiceState{},
			&discordgo.VoiceState{SelfDeaf: true, SelfStream: true},
			[]string{"deafened", "stream_started"},
		},
		{
			"stream stopped",
			&discordgo.VoiceState{SelfStream: true},
			&discordgo.VoiceState{},
			[]string{"stream_stopped"},
		},
		{
			"no change",
			&discordgo.VoiceState{SelfMute: true},
			&discordgo.VoiceState{SelfMute: true},
			nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deltas := voiceStateDeltas(tc.before, tc.after)
			if len(deltas) != len(tc.want) {
				t.Fatalf("deltas = %v, want %v", deltas, tc.want)
			}
			for i, state := range deltas {
				if string(state) != tc.want[i] {
					t.Fatalf("delta[%d] = %s, want %s", i, state, tc.want[i])
				}
			}
		})
	}
}

func TestRolesEqualIgnoresOrder(t *testing.T) {
	if !rolesEqual([]string{"a", "b"}, []string{"b", "a"}) {
		t.Fatal("order-only difference reported as change")
	}
	if rolesEqual([]string{"a", "b"}, []string{"a", "c"}) {
		t.Fatal("different sets reported equal")
	}
	if rolesEqual([]string{"a"}, []string{"a", "b"}) {
		t.Fatal("different lengths reported equal")
	}
	if !rolesEqual(nil, nil) {
		t.Fatal("two empty sets reported unequal")
	}
}

func TestCommandFailureMessageIsSpecific(t *testing.T) {
	hierarchy := commandFailureMessage(rwerrors.New(rwerrors.CodeRoleHierarchy, "too high"), "r1")
	permission := commandFailureMessage(rwerrors.New(rwerrors.CodePermissionDenied, "refused"), "r1")
	notFound := commandFailureMessage(rwerrors.New(rwerrors.CodeNotFound, "gone"), "r1")

	if hierarchy == permission || permission == notFound || hierarchy == notFound {
		t.Fatal("failure messages are not distinguishable by cause")
	}
}

func TestButtonStyle(t *testing.T) {
	if got := buttonStyle("primary"); got != discordgo.PrimaryButton {
		t.Fatalf("primary = %v", got)
	}
	if got := buttonStyle("DANGER"); got != discordgo.DangerButton {
		t.Fatalf("danger = %v", got)
	}
	if got := buttonStyle(""); got != discordgo.SuccessButton {
		t.Fatalf("default = %v", got)
	}
}
