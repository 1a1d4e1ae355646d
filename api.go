package roomroster

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/matrix-org/room-roster/internal"
	"github.com/matrix-org/room-roster/roster"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

type server struct {
	chain []func(next http.Handler) http.Handler
	final http.Handler
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := s.final
	for i := range s.chain {
		h = s.chain[len(s.chain)-1-i](h)
	}
	h.ServeHTTP(w, req)
}

func allowCORS(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		if req.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, req)
	}
}

type roomJSON struct {
	RoomID      string `json:"room_id"`
	Name        string `json:"name,omitempty"`
	IsInvite    bool   `json:"is_invite,omitempty"`
	UnreadCount int    `json:"unread_count,omitempty"`
	Read        bool   `json:"read,omitempty"`
	Visible     bool   `json:"visible"`
	HasAvatar   bool   `json:"has_avatar,omitempty"`
	LastMessage *struct {
		Sender    string `json:"sender"`
		Body      string `json:"body"`
		Timestamp uint64 `json:"ts"`
	} `json:"last_message,omitempty"`
}

type roomsResponse struct {
	Rooms          []roomJSON `json:"rooms"`
	SelectedRoomID string     `json:"selected_room_id,omitempty"`
	TotalUnread    int        `json:"total_unread"`
}

// NewRouter exposes the roster as a small read/control plane: the ordered
// room list, filter application and selection. Rendering stays client-side.
func NewRouter(rst *roster.Roster) http.Handler {
	r := mux.NewRouter()

	r.Handle("/rooms", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rooms := rst.Rooms()
		resp := roomsResponse{
			Rooms:          make([]roomJSON, 0, len(rooms)),
			SelectedRoomID: rst.SelectedRoomID(),
			TotalUnread:    rst.TotalUnread(),
		}
		for i := range rooms {
			rj := roomJSON{
				RoomID:      rooms[i].ID,
				Name:        rooms[i].Name,
				IsInvite:    rooms[i].IsInvite,
				UnreadCount: rooms[i].UnreadCount,
				Read:        rooms[i].Read,
				Visible:     rooms[i].Visible,
				HasAvatar:   len(rooms[i].Avatar) > 0,
			}
			if !rooms[i].LastMessage.IsZero() {
				rj.LastMessage = &struct {
					Sender    string `json:"sender"`
					Body      string `json:"body"`
					Timestamp uint64 `json:"ts"`
				}{rooms[i].LastMessage.SenderID, rooms[i].LastMessage.Body, rooms[i].LastMessage.Timestamp}
			}
			resp.Rooms = append(resp.Rooms, rj)
		}
		respondJSON(w, 200, resp)
	}))).Methods("GET", "OPTIONS")

	r.Handle("/rooms/{roomID}/select", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		roomID := mux.Vars(req)["roomID"]
		if err := rst.Select(roomID); err != nil {
			respondError(w, 404, err)
			return
		}
		w.WriteHeader(200)
	}))).Methods("POST", "OPTIONS")

	r.Handle("/filter", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "PUT":
			var roomIDs []string
			if err := json.NewDecoder(req.Body).Decode(&roomIDs); err != nil {
				respondError(w, 400, err)
				return
			}
			allow := make(map[string]bool, len(roomIDs))
			for _, roomID := range roomIDs {
				allow[roomID] = true
			}
			rst.ApplyFilter(allow)
		case "DELETE":
			rst.RemoveFilter()
		}
		w.WriteHeader(200)
	}))).Methods("PUT", "DELETE", "OPTIONS")

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	herr := &internal.HandlerError{StatusCode: status, Err: err}
	var existing *internal.HandlerError
	if errors.As(err, &existing) {
		herr = existing
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(herr.StatusCode)
	w.Write(herr.JSON())
}

// RunRosterServer is the main entry point to the server
func RunRosterServer(rst *roster.Roster, bindAddr string) {
	srv := &server{
		chain: []func(next http.Handler) http.Handler{
			hlog.NewHandler(logger),
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				if r.URL.Path == "/metrics" {
					return
				}
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Int("status", status).
					Int("size", size).
					Dur("duration", duration).
					Str("path", r.URL.Path).
					Msg("")
			}),
			hlog.RemoteAddrHandler("ip"),
		},
		final: otelhttp.NewHandler(NewRouter(rst), "roster"),
	}

	// Block forever
	logger.Info().Msgf("listening on %s", bindAddr)
	if err := http.ListenAndServe(bindAddr, srv); err != nil {
		logger.Fatal().Err(err).Msg("failed to listen and serve")
	}
}
