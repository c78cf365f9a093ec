package events

import (
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	BackupStarted     = "backup.started"
	BackupProgress    = "backup.progress"
	BackupFinished    = "backup.finished"
	BackupRejected    = "backup.rejected"
	ScheduleChanged   = "schedule.changed"
	ScheduleTriggered = "schedule.triggered"
)

// replayed are the types whose latest event describes current state. A new
// subscriber receives them first so it does not start blank.
var replayed = map[string]bool{
	BackupStarted:   true,
	BackupProgress:  true,
	BackupFinished:  true,
	ScheduleChanged: true,
}

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Hub fans backup and schedule events out to dashboard subscribers. Publish
// never blocks the backup: a subscriber whose buffer is full misses events.
type Hub struct {
	buffer int

	mu     sync.Mutex
	lastID int64
	latest map[string]Event
	subs   map[int]chan Event
	nextID int
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		buffer: buffer,
		latest: make(map[string]Event),
		subs:   make(map[int]chan Event),
	}
}

func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Type: eventType, At: time.Now(), Data: payload}

	// A finished run makes the previous run's progress stale.
	if eventType == BackupFinished {
		delete(h.latest, BackupStarted)
		delete(h.latest, BackupProgress)
	}
	if replayed[eventType] {
		h.latest[eventType] = ev
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel primed with the latest state events, oldest
// first, followed by every future event. cancel closes the channel and may
// be called more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer+len(replayed))
	for _, ev := range h.replayLocked() {
		ch <- ev
	}
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (h *Hub) replayLocked() []Event {
	out := make([]Event, 0, len(h.latest))
	for _, ev := range h.latest {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
