package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pawvox/internal/convo"
	"pawvox/internal/kv"
	"pawvox/pkg/protocol"
	"pawvox/pkg/voice"
)

type countingKV struct {
	*kv.Memory
	mu   sync.Mutex
	sets map[string]int
}

func newCountingKV() *countingKV {
	return &countingKV{Memory: kv.NewMemory(), sets: make(map[string]int)}
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.sets[key]++
	c.mu.Unlock()
	return c.Memory.Set(ctx, key, value)
}

func TestHandleNavigation(t *testing.T) {
	store := convo.NewStore(nil)
	m := NewManager(store, nil)

	var got []DashboardEvent
	m.OnDashboardEvent(func(e DashboardEvent) { got = append(got, e) })

	if err := m.HandleNavigation("/appointments"); err != nil {
		t.Fatal(err)
	}
	snap := store.Snapshot()
	if snap.CurrentPage != "/appointments" {
		t.Errorf("CurrentPage = %q", snap.CurrentPage)
	}
	if len(snap.PreviousIntents) != 1 {
		t.Fatalf("PreviousIntents = %d, want 1", len(snap.PreviousIntents))
	}
	in := snap.PreviousIntents[0]
	if in.Action != voice.ActionNavigate || in.Param("source") != "dashboard" || in.Confidence != 1 {
		t.Errorf("synthetic intent = %+v", in)
	}
	if len(got) != 1 || got[0].Kind != EventNavigation || got[0].Page != "/appointments" || got[0].At.IsZero() {
		t.Errorf("events = %+v", got)
	}
}

func TestPetSelectionWritesActivePetOnce(t *testing.T) {
	persist := newCountingKV()
	store := convo.NewStore(persist)
	m := NewManager(store, nil)

	if err := m.HandlePetSelection("Bella"); err != nil {
		t.Fatal(err)
	}
	if store.ActivePet() != "Bella" {
		t.Errorf("ActivePet() = %q", store.ActivePet())
	}
	if n := persist.sets["active_pet"]; n != 1 {
		t.Errorf("active_pet written %d times, want 1", n)
	}
	e, ok := store.Snapshot().PreviousIntents[0].Last(voice.EntityPetName)
	if !ok || e.Value != "Bella" {
		t.Errorf("synthetic intent lacks the pet_name entity")
	}
}

func TestDataEntryAndModification(t *testing.T) {
	store := convo.NewStore(nil)
	m := NewManager(store, nil)

	if err := m.HandleDataEntry("feeding", "Max", map[string]string{"amount": "2"}); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleDataModification("appointment", "appt-3", "Luna"); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleViewChange("calendar"); err != nil {
		t.Fatal(err)
	}

	snap := store.Snapshot()
	if len(snap.PreviousIntents) != 3 {
		t.Fatalf("PreviousIntents = %d, want 3", len(snap.PreviousIntents))
	}
	entry, mod := snap.PreviousIntents[0], snap.PreviousIntents[1]
	if entry.Action != voice.ActionLogData || entry.Target != "feeding" || entry.Param("amount") != "2" || entry.Param("pet") != "Max" {
		t.Errorf("data entry intent = %+v", entry)
	}
	if mod.Action != voice.ActionUpdate || mod.Param("id") != "appt-3" {
		t.Errorf("modification intent = %+v", mod)
	}
	if snap.ActivePet != "Luna" {
		t.Errorf("ActivePet = %q, want the last mentioned pet", snap.ActivePet)
	}
}

func TestClosedSessionStillPublishes(t *testing.T) {
	store := convo.NewStore(nil)
	store.Clear()
	m := NewManager(store, nil)

	fired := 0
	m.OnDashboardEvent(func(DashboardEvent) { fired++ })
	if err := m.HandleNavigation("/pets"); !errors.Is(err, convo.ErrSessionClosed) {
		t.Errorf("HandleNavigation() error = %v, want ErrSessionClosed", err)
	}
	if fired != 1 {
		t.Errorf("listener fired %d times, want 1", fired)
	}
}

func TestListenersAreIsolated(t *testing.T) {
	m := NewManager(convo.NewStore(nil), nil)

	var order []string
	m.OnDataChange(func(voice.DataChange) { order = append(order, "first") })
	m.OnDataChange(func(voice.DataChange) { panic("listener bug") })
	off := m.OnDataChange(func(voice.DataChange) { order = append(order, "third") })

	m.NotifyDataChange(voice.DataChange{Type: "feeding", Action: "create"})
	if strings.Join(order, ",") != "first,third" {
		t.Errorf("order = %v, want first,third", order)
	}

	off()
	off()
	order = nil
	m.NotifyDataChange(voice.DataChange{Type: "feeding", Action: "create"})
	if strings.Join(order, ",") != "first" {
		t.Errorf("after unsubscribe order = %v", order)
	}
}

func TestListenerCanUnsubscribeItself(t *testing.T) {
	m := NewManager(convo.NewStore(nil), nil)
	calls := 0
	var off func()
	off = m.OnDashboardEvent(func(DashboardEvent) {
		calls++
		off()
	})
	m.HandleViewChange("list")
	m.HandleViewChange("grid")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	msg, err := protocol.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestHubReplicates(t *testing.T) {
	store := convo.NewStore(nil)
	m := NewManager(store, nil)
	hub := NewHub(store)
	defer hub.Attach(m)()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	a, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	waitFor(t, "two clients", func() bool { return hub.Clients() == 2 })

	m.NotifyDataChange(voice.DataChange{Type: "weight", Action: "create", ID: "log-1", Pet: "Max"})
	for _, c := range []*websocket.Conn{a, b} {
		if msg := readFrame(t, c); msg.Kind != protocol.KindDataChange || msg.Change.ID != "log-1" {
			t.Errorf("frame = %+v", msg)
		}
	}

	raw, _ := protocol.ActivePet("tab-a", "Luna").Bytes()
	if err := a.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}
	if msg := readFrame(t, b); msg.Kind != protocol.KindActivePet || msg.Pet != "Luna" || msg.Origin != "tab-a" {
		t.Errorf("relayed frame = %+v", msg)
	}
	waitFor(t, "store update", func() bool { return store.ActivePet() == "Luna" })

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, raw, err := a.ReadMessage(); err == nil {
		t.Errorf("sender got its own frame back: %s", raw)
	}
}

func TestFollowerAppliesWithoutEcho(t *testing.T) {
	leaderStore := convo.NewStore(nil)
	hub := NewHub(leaderStore)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localStore := convo.NewStore(nil)
	local := NewManager(localStore, nil)
	var changes []voice.DataChange
	var mu sync.Mutex
	local.OnDataChange(func(c voice.DataChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	f, err := NewFollower(ctx, wsURL(srv), localStore, local, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	go f.Run(ctx)
	waitFor(t, "follower connection", func() bool { return hub.Clients() == 1 })

	hub.Broadcast(protocol.ActivePet(hub.Origin(), "Luna"))
	waitFor(t, "remote pet applied", func() bool { return localStore.ActivePet() == "Luna" })

	hub.Broadcast(protocol.DataChange(hub.Origin(), voice.DataChange{Type: "feeding", ID: "log-9"}))
	waitFor(t, "remote change relayed", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 1 && changes[0].ID == "log-9"
	})

	time.Sleep(50 * time.Millisecond)
	if got := leaderStore.ActivePet(); got != "" {
		t.Errorf("follower echoed the remote pet: leader ActivePet = %q", got)
	}

	if err := local.HandlePetSelection("Max"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "local selection upstream", func() bool { return leaderStore.ActivePet() == "Max" })
}

func TestFollowerFansOutRemotePet(t *testing.T) {
	leaderStore := convo.NewStore(nil)
	leader := NewHub(leaderStore)
	leaderSrv := httptest.NewServer(leader)
	defer leaderSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localStore := convo.NewStore(nil)
	local := NewManager(localStore, nil)
	localHub := NewHub(localStore)
	defer localHub.Attach(local)()
	localSrv := httptest.NewServer(localHub)
	defer localSrv.Close()

	tab, _, err := websocket.DefaultDialer.Dial(wsURL(localSrv), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tab.Close()
	waitFor(t, "local tab", func() bool { return localHub.Clients() == 1 })

	f, err := NewFollower(ctx, wsURL(leaderSrv), localStore, local, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	go f.Run(ctx)
	waitFor(t, "follower connection", func() bool { return leader.Clients() == 1 })

	leader.Broadcast(protocol.ActivePet(leader.Origin(), "Luna"))
	if msg := readFrame(t, tab); msg.Kind != protocol.KindActivePet || msg.Pet != "Luna" {
		t.Errorf("local tab frame = %+v", msg)
	}

	time.Sleep(50 * time.Millisecond)
	if got := leaderStore.ActivePet(); got != "" {
		t.Errorf("remote pet was sent back upstream: leader ActivePet = %q", got)
	}
}
