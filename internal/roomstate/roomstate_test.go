package roomstate

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/voxchat/server/internal/domain"
	"github.com/voxchat/server/internal/store"
)

func newTestState() (*State, *store.Memory) {
	st := store.NewMemory()
	ttls := TTLs{ChatLog: 40 * time.Minute, Members: 180 * time.Minute, Peers: 240 * time.Minute}
	return New(st, ttls), st
}

func TestAppendMemberKeepsOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	for _, name := range []string{"alice", "bob", "alice"} {
		if _, err := s.AppendMember(ctx, "lobby", name, nil); err != nil {
			t.Fatalf("AppendMember: %v", err)
		}
	}

	members, err := s.MembersSnapshot(ctx, "lobby")
	if err != nil {
		t.Fatalf("MembersSnapshot: %v", err)
	}
	want := []string{"alice", "bob", "alice"}
	if !reflect.DeepEqual(members, want) {
		t.Errorf("got %v, want %v", members, want)
	}
}

func TestRemoveMemberDropsFirstMatchOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	for _, name := range []string{"alice", "bob", "alice"} {
		if _, err := s.AppendMember(ctx, "lobby", name, nil); err != nil {
			t.Fatalf("AppendMember: %v", err)
		}
	}

	members, err := s.RemoveMember(ctx, "lobby", "alice", nil)
	if err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	want := []string{"bob", "alice"}
	if !reflect.DeepEqual(members, want) {
		t.Errorf("got %v, want %v", members, want)
	}
}

func TestRemoveMissingItemIsNoOp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	if _, err := s.AppendPeer(ctx, "lobby", "p1", nil); err != nil {
		t.Fatalf("AppendPeer: %v", err)
	}
	peers, err := s.RemovePeer(ctx, "lobby", "p9", nil)
	if err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	if !reflect.DeepEqual(peers, []string{"p1"}) {
		t.Errorf("got %v, want [p1]", peers)
	}
}

func TestRemoveFromAbsentListMaterializesEmpty(t *testing.T) {
	ctx := context.Background()
	s, st := newTestState()

	peers, err := s.RemovePeer(ctx, "ghost", "p1", nil)
	if err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	if len(peers) != 0 {
		t.Errorf("got %v, want empty", peers)
	}
	raw, err := st.GetString(ctx, "ghost-peers")
	if err != nil {
		t.Fatalf("list not materialized: %v", err)
	}
	if raw != "[]" {
		t.Errorf("got %q, want %q", raw, "[]")
	}
}

func TestSnapshotMaterializesEmptyList(t *testing.T) {
	ctx := context.Background()
	s, st := newTestState()

	members, err := s.MembersSnapshot(ctx, "idle")
	if err != nil {
		t.Fatalf("MembersSnapshot: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("got %v, want empty", members)
	}
	raw, err := st.GetString(ctx, "idle-chatmembers")
	if err != nil {
		t.Fatalf("empty list not persisted: %v", err)
	}
	if raw != "[]" {
		t.Errorf("got %q, want %q", raw, "[]")
	}
}

func TestChatLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	msgs := []domain.ChatMessage{
		{Username: "alice", Content: "hi"},
		{Username: "bob", Content: "hello"},
	}
	for _, m := range msgs {
		if _, err := s.AppendMessage(ctx, "lobby", m, nil); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.ChatLogSnapshot(ctx, "lobby")
	if err != nil {
		t.Fatalf("ChatLogSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Errorf("got %v, want %v", got, msgs)
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AppendMember(ctx, "busy", "user", nil); err != nil {
				t.Errorf("AppendMember: %v", err)
			}
		}()
	}
	wg.Wait()

	members, err := s.MembersSnapshot(ctx, "busy")
	if err != nil {
		t.Fatalf("MembersSnapshot: %v", err)
	}
	if len(members) != n {
		t.Errorf("got %d members, want %d (lost updates)", len(members), n)
	}
}

func TestPublishRunsInMutationOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	const n = 32
	var mu sync.Mutex
	var observed []int

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.AppendPeer(ctx, "busy", "p", func(peers []string) {
				mu.Lock()
				observed = append(observed, len(peers))
				mu.Unlock()
			})
			if err != nil {
				t.Errorf("AppendPeer: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(observed) != n {
		t.Fatalf("got %d publishes, want %d", len(observed), n)
	}
	for i, l := range observed {
		if l != i+1 {
			t.Fatalf("publish %d saw list of %d elements, want %d", i, l, i+1)
		}
	}
}

func TestDifferentKindsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState()

	if _, err := s.AppendMember(ctx, "lobby", "alice", nil); err != nil {
		t.Fatalf("AppendMember: %v", err)
	}
	if _, err := s.AppendPeer(ctx, "lobby", "p1", nil); err != nil {
		t.Fatalf("AppendPeer: %v", err)
	}

	members, _ := s.MembersSnapshot(ctx, "lobby")
	peers, _ := s.PeersSnapshot(ctx, "lobby")
	if !reflect.DeepEqual(members, []string{"alice"}) || !reflect.DeepEqual(peers, []string{"p1"}) {
		t.Errorf("members=%v peers=%v", members, peers)
	}
}
