package main

import (
	"encoding/json"
	"flag"
	"hash/fnv"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type checkpoint struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Status      string    `json:"status"`
	Substatus   string    `json:"substatus,omitempty"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

type tracking struct {
	ID                   string       `json:"id"`
	TrackingNumber       string       `json:"tracking_number"`
	Carrier              string       `json:"carrier"`
	Status               string       `json:"status"`
	LatestCheckpointTime *time.Time   `json:"latest_checkpoint_time,omitempty"`
	LatestEvent          string       `json:"latest_event,omitempty"`
	Checkpoints          []checkpoint `json:"checkpoints"`
}

// scenarios are picked deterministically from the tracking number so repeated runs agree.
var scenarios = []func(created time.Time) []checkpoint{
	func(created time.Time) []checkpoint {
		return []checkpoint{
			{OccurredAt: created, Status: "InfoReceived", Description: "Shipping label created", Location: "Austin, TX"},
			{OccurredAt: created.Add(20 * time.Hour), Status: "InTransit", Description: "Departed sort facility", Location: "Dallas, TX"},
		}
	},
	func(created time.Time) []checkpoint {
		return []checkpoint{
			{OccurredAt: created, Status: "InfoReceived", Description: "Shipping label created", Location: "Reno, NV"},
			{OccurredAt: created.Add(30 * time.Hour), Status: "InTransit", Description: "Arrived at hub", Location: "Salt Lake City, UT"},
			{OccurredAt: created.Add(50 * time.Hour), Status: "Exception", Description: "Shipment delayed in transit", Location: "Denver, CO"},
		}
	},
	func(created time.Time) []checkpoint {
		return []checkpoint{
			{OccurredAt: created, Status: "InfoReceived", Description: "Shipping label created", Location: "Newark, NJ"},
			{OccurredAt: created.Add(26 * time.Hour), Status: "InTransit", Description: "Processed at regional facility", Location: "Philadelphia, PA"},
			{OccurredAt: created.Add(7 * 24 * time.Hour), Status: "Exception", Description: "Carrier unable to locate package", Location: "Philadelphia, PA"},
		}
	},
	func(created time.Time) []checkpoint {
		return []checkpoint{
			{OccurredAt: created, Status: "InfoReceived", Description: "Shipping label created", Location: "Portland, OR"},
			{OccurredAt: time.Now().Add(-3 * time.Hour), Status: "Delivered", Description: "Delivered, left at front door", Location: "Seattle, WA"},
		}
	},
}

type server struct {
	mu        sync.Mutex
	trackings map[string]*tracking
	emails    int
}

func newServer() *server {
	return &server{trackings: make(map[string]*tracking)}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/v1/trackings", s.createTracking)
	r.Get("/v1/trackings/{id}", s.getTracking)
	r.Post("/v1/assessments", s.assess)
	r.Post("/emails", s.sendEmail)
	return r
}

func (s *server) createTracking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackingNumber string `json:"tracking_number"`
		Carrier        string `json:"carrier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TrackingNumber) == "" {
		writeError(w, http.StatusBadRequest, "tracking_number is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trackings {
		if t.TrackingNumber == req.TrackingNumber && strings.EqualFold(t.Carrier, req.Carrier) {
			writeJSON(w, http.StatusOK, map[string]any{"tracking": t})
			return
		}
	}

	h := fnv.New32a()
	h.Write([]byte(req.TrackingNumber))
	sum := h.Sum32()
	created := time.Now().Add(-time.Duration(10+sum%15) * 24 * time.Hour).Truncate(time.Minute)
	cps := scenarios[int(sum)%len(scenarios)](created)

	t := &tracking{
		ID:             "trk_" + uuid.NewString(),
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Checkpoints:    cps,
	}
	latest := cps[len(cps)-1]
	t.Status = latest.Status
	t.LatestEvent = latest.Description
	t.LatestCheckpointTime = &latest.OccurredAt
	s.trackings[t.ID] = t
	log.Printf("created tracking %s for %s", t.ID, req.TrackingNumber)
	writeJSON(w, http.StatusCreated, map[string]any{"tracking": t})
}

func (s *server) getTracking(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	t, ok := s.trackings[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "tracking not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracking": t})
}

// assess echoes the caller's heuristic with a canned narrative, nudging urgency for long silences.
func (s *server) assess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShipmentID          string `json:"shipment_id"`
		DaysSinceLastUpdate int    `json:"days_since_last_update"`
		Heuristic           struct {
			StatusBadge string  `json:"status_badge"`
			RiskLevel   string  `json:"risk_level"`
			Urgency     float64 `json:"urgency"`
			Confidence  float64 `json:"confidence"`
		} `json:"heuristic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	urgency := req.Heuristic.Urgency
	if req.DaysSinceLastUpdate >= 10 && urgency < 9 {
		urgency++
	}
	sentiment := "neutral"
	if req.Heuristic.RiskLevel == "high" || req.Heuristic.RiskLevel == "critical" {
		sentiment = "frustrated"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status_badge":       req.Heuristic.StatusBadge,
		"risk_level":         req.Heuristic.RiskLevel,
		"customer_sentiment": sentiment,
		"urgency":            urgency,
		"key_insight":        "No carrier scan for " + strconv.Itoa(req.DaysSinceLastUpdate) + " days; contact the carrier before offering a reshipment.",
		"next_milestone":     "Carrier trace response",
		"confidence":         0.7,
	})
}

func (s *server) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.To) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "to is required")
		return
	}
	s.mu.Lock()
	s.emails++
	s.mu.Unlock()
	log.Printf("email %q from %s to %s", req.Subject, req.From, strings.Join(req.To, ", "))
	writeJSON(w, http.StatusOK, map[string]string{"id": uuid.NewString()})
}

func main() {
	addr := flag.String("addr", ":18080", "listen address")
	flag.Parse()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newServer().routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("mock providers listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
