package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/central"
	"github.com/beblucech/entry/pipeline"
	"github.com/beblucech/entry/room"
	"github.com/beblucech/entry/store"
)

type fakeStatus struct{}

func (fakeStatus) Status() central.Status {
	return central.Status{State: central.Ready, StateName: "ready", ID: "aa:bb", Connected: true, Bonded: true}
}

type fakeScan struct{}

func (fakeScan) Status() pipeline.State { return pipeline.Idle }

type fakeNetwork bool

func (n fakeNetwork) Online() bool { return bool(n) }

func newTestSource(t *testing.T) *statusSource {
	r := room.New(store.NewMemory())
	if err := r.Settings.SetRoomName("Lobby"); err != nil {
		t.Fatal(err)
	}
	if err := r.Roster.Add(entry.Member{ID: 7, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}

	base := time.Unix(1700000000, 0)
	r.Log.Append(entry.NewEntryLogRecord(7, "Alice", base))
	r.Log.Append(entry.NewEntryLogRecord(entry.GuestID, "", base.Add(time.Minute)))

	return &statusSource{link: fakeStatus{}, pipeline: fakeScan{}, network: fakeNetwork(true), room: r}
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	h := newRouter(newTestSource(t))

	rec := get(t, h, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp struct {
		Room string `json:"room"`
		Link struct {
			State     string `json:"state"`
			Connected bool   `json:"connected"`
		} `json:"link"`
		Scan    string `json:"scan"`
		Online  bool   `json:"online"`
		Members int    `json:"members"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Room != "Lobby" || resp.Link.State != "ready" || !resp.Link.Connected || resp.Scan != "idle" || !resp.Online || resp.Members != 1 {
		t.Fatalf("unexpected status %s", rec.Body.String())
	}
}

func TestLogsEndpoint(t *testing.T) {
	h := newRouter(newTestSource(t))

	rec := get(t, h, "/logs?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var logs []logResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Name != "Guest" || logs[0].ID != "#" {
		t.Fatalf("unexpected logs %s", rec.Body.String())
	}

	if rec := get(t, h, "/logs?limit=x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rec.Code)
	}
	if rec := get(t, h, "/logs"); !strings.Contains(rec.Body.String(), "Alice") {
		t.Fatalf("unexpected logs %s", rec.Body.String())
	}
}

func TestStatusEndpointMethods(t *testing.T) {
	h := newRouter(newTestSource(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
