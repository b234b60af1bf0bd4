package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/beblucech/entry/central"
	"github.com/beblucech/entry/pipeline"
	"github.com/beblucech/entry/room"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type linkStatus interface {
	Status() central.Status
}

type scanStatus interface {
	Status() pipeline.State
}

type networkStatus interface {
	Online() bool
}

// statusSource is what the status endpoint reports on.
type statusSource struct {
	link     linkStatus
	pipeline scanStatus
	network  networkStatus
	room     *room.Room
}

type statusResponse struct {
	Room    string         `json:"room"`
	Link    central.Status `json:"link"`
	Scan    string         `json:"scan"`
	Online  bool           `json:"online"`
	Members int            `json:"members"`
}

type logResponse struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

func newRouter(s *statusSource) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/logs", s.handleLogs).Methods("GET")
	return r
}

func (s *statusSource) handleStatus(w http.ResponseWriter, r *http.Request) {
	name, err := s.room.Settings.RoomName()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	members, err := s.room.Roster.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, statusResponse{
		Room:    name,
		Link:    s.link.Status(),
		Scan:    s.pipeline.Status().String(),
		Online:  s.network.Online(),
		Members: len(members),
	})
}

func (s *statusSource) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.room.Log.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]logResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, logResponse{
			ID:   rec.DisplayID(),
			Name: rec.DisplayName(),
			Time: rec.Time().UTC(),
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
