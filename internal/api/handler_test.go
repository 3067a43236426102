package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"

	"github.com/ibsar/voicedialog/internal/connectutil"
	"github.com/ibsar/voicedialog/internal/sessions"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/urlvalidation"
)

type recordingDriver struct {
	mu          sync.Mutex
	transcripts []string
	finals      []bool
	keys        []string
	locations   []string
}

func (d *recordingDriver) PushTranscript(text string, final bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transcripts = append(d.transcripts, text)
	d.finals = append(d.finals, final)
}

func (d *recordingDriver) PushKey(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
}

func (d *recordingDriver) NotifyLocation(loc string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locations = append(d.locations, loc)
}

func (d *recordingDriver) Snapshot() dialog.Snapshot {
	return dialog.Snapshot{SessionID: "sess-1", Location: "/bank", State: dialog.MenuAwaitChoice}
}

type testEnv struct {
	client    *Client
	driver    *recordingDriver
	journal   transcript.Store
	stats     *events.Stats
	endpoints *notify.MemoryStore
}

func setupTestServer(t *testing.T) testEnv {
	t.Helper()

	reg, err := menu.Default()
	if err != nil {
		t.Fatalf("menu.Default: %v", err)
	}
	store := sessions.NewStore(0)
	driver := &recordingDriver{}
	store.Add("conn-1", driver, nil)

	journal := transcript.NewMemoryStore(0)
	stats := events.NewStats()

	mux := http.NewServeMux()
	endpoints := notify.NewMemoryStore()
	NewHandler(store, dialog.StaticMenus(reg),
		WithJournal(journal),
		WithStats(stats),
		WithEndpoints(endpoints, urlvalidation.AllowPrivateIPs()),
	).Mount(mux, connectutil.DefaultOptions()...)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return testEnv{
		client:    NewClient(srv.Client(), srv.URL),
		driver:    driver,
		journal:   journal,
		stats:     stats,
		endpoints: endpoints,
	}
}

func TestListAndGetSession(t *testing.T) {
	env := setupTestServer(t)

	list, err := env.client.ListSessions(t.Context())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 || list[0].ConnectionID != "conn-1" {
		t.Fatalf("ListSessions = %+v", list)
	}

	info, err := env.client.GetSession(t.Context(), "conn-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if info.Session.Location != "/bank" || info.Session.State != dialog.MenuAwaitChoice {
		t.Errorf("session = %+v", info.Session)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.client.GetSession(t.Context(), "nope")
	if code := connect.CodeOf(err); code != connect.CodeNotFound {
		t.Errorf("code = %v, want %v", code, connect.CodeNotFound)
	}
}

func TestInputsReachDriver(t *testing.T) {
	env := setupTestServer(t)
	ctx := t.Context()

	if err := env.client.SendUtterance(ctx, "conn-1", "اثنين"); err != nil {
		t.Fatalf("SendUtterance: %v", err)
	}
	if err := env.client.PressKey(ctx, "conn-1", "h"); err != nil {
		t.Fatalf("PressKey: %v", err)
	}
	if err := env.client.NotifyLocation(ctx, "conn-1", "/products"); err != nil {
		t.Fatalf("NotifyLocation: %v", err)
	}

	d := env.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transcripts) != 1 || d.transcripts[0] != "اثنين" || !d.finals[0] {
		t.Errorf("transcripts = %q finals = %v", d.transcripts, d.finals)
	}
	if len(d.keys) != 1 || d.keys[0] != "h" {
		t.Errorf("keys = %q", d.keys)
	}
	if len(d.locations) != 1 || d.locations[0] != "/products" {
		t.Errorf("locations = %q", d.locations)
	}
}

func TestInvalidRequestsRejected(t *testing.T) {
	env := setupTestServer(t)
	ctx := t.Context()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty utterance", func() error { return env.client.SendUtterance(ctx, "conn-1", "") }},
		{"missing connection", func() error { return env.client.PressKey(ctx, "", "h") }},
		{"relative location", func() error { return env.client.NotifyLocation(ctx, "conn-1", "bank") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := connect.CodeOf(tt.call()); code != connect.CodeInvalidArgument {
				t.Errorf("code = %v, want %v", code, connect.CodeInvalidArgument)
			}
		})
	}
}

func TestGetTranscript(t *testing.T) {
	env := setupTestServer(t)
	ctx := t.Context()
	for _, text := range []string{"مرحبا", "3", "اخترت البنك"} {
		role := transcript.RoleAssistant
		if text == "3" {
			role = transcript.RoleUser
		}
		if err := env.journal.Append(ctx, transcript.Turn{SessionID: "sess-1", Role: role, Text: text}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	resp, err := env.client.GetTranscript(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Text != "3" || resp.Turns[1].Role != transcript.RoleAssistant {
		t.Errorf("turns = %+v", resp.Turns)
	}
}

func TestGetMenu(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.client.GetMenu(t.Context(), "/bank/")
	if err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	if resp.Location != "/bank" || resp.Menu == nil || resp.Prompt == "" {
		t.Errorf("GetMenu(/bank/) = %+v", resp)
	}

	login, err := env.client.GetMenu(t.Context(), "/login")
	if err != nil {
		t.Fatalf("GetMenu(/login): %v", err)
	}
	if login.Flow != "auth.login" {
		t.Errorf("Flow = %q, want %q", login.Flow, "auth.login")
	}

	_, err = env.client.GetMenu(t.Context(), "/nowhere")
	if code := connect.CodeOf(err); code != connect.CodeNotFound {
		t.Errorf("code = %v, want %v", code, connect.CodeNotFound)
	}
}

func TestGetStats(t *testing.T) {
	env := setupTestServer(t)
	if err := env.stats.Observe(events.Envelope{Type: events.PromptSpoken}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	resp, err := env.client.GetStats(t.Context())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if got := resp.Stats.Events[events.PromptSpoken]; got != 1 {
		t.Errorf("prompt events = %d, want 1", got)
	}
}

func TestEndpointLifecycle(t *testing.T) {
	env := setupTestServer(t)
	ctx := t.Context()

	created, err := env.client.CreateEndpoint(ctx, &CreateEndpointRequest{
		Name:       "caregiver",
		URL:        "http://127.0.0.1:9/hook",
		EventTypes: []events.EventType{events.SilenceTimeout},
	})
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if created.Secret == "" || created.Endpoint.ID == "" || !created.Endpoint.Active {
		t.Fatalf("CreateEndpoint = %+v", created)
	}

	list, err := env.client.ListEndpoints(ctx)
	if err != nil {
		t.Fatalf("ListEndpoints: %v", err)
	}
	if len(list) != 1 || list[0].Name != "caregiver" {
		t.Errorf("ListEndpoints = %+v", list)
	}

	rec := &notify.Delivery{EndpointID: created.Endpoint.ID, EventID: "e1", EventType: string(events.SilenceTimeout), Status: notify.StatusDelivered}
	if err := env.endpoints.RecordDelivery(ctx, rec); err != nil {
		t.Fatal(err)
	}
	deliveries, err := env.client.ListDeliveries(ctx, created.Endpoint.ID, 0)
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].Status != notify.StatusDelivered {
		t.Errorf("ListDeliveries = %+v", deliveries)
	}

	if err := env.client.DeleteEndpoint(ctx, created.Endpoint.ID); err != nil {
		t.Fatalf("DeleteEndpoint: %v", err)
	}
	err = env.client.DeleteEndpoint(ctx, created.Endpoint.ID)
	if code := connect.CodeOf(err); code != connect.CodeNotFound {
		t.Errorf("second delete code = %v, want %v", code, connect.CodeNotFound)
	}
}

func TestCreateEndpointRejectsBadURL(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.client.CreateEndpoint(t.Context(), &CreateEndpointRequest{Name: "x", URL: "ftp://example.com/x"})
	if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want %v", code, connect.CodeInvalidArgument)
	}
}
