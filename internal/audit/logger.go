package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes one key or signature operation. Message bytes and key
// material never go in here.
type Event struct {
	Operation string
	KeyID     string
	Status    string
	Algorithm string
	Verdict   string
	Peer      string
	Metadata  map[string]string
}

// Entry represents an audit log entry.
type Entry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Operation   string            `json:"operation"`
	KeyID       string            `json:"key_id,omitempty"`
	Status      string            `json:"status"`
	Algorithm   string            `json:"algorithm,omitempty"`
	Verdict     string            `json:"verdict,omitempty"`
	PeerAddress string            `json:"peer_address,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Filter selects entries in Query. Zero fields match everything.
type Filter struct {
	KeyID     string
	Operation string
	Start     time.Time
	End       time.Time
	Limit     int
}

func (f Filter) match(e Entry) bool {
	if f.KeyID != "" && e.KeyID != f.KeyID {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Subscriber receives audit entries via a channel.
type Subscriber struct {
	C  chan Entry
	id string
}

// Logger is an async audit logger that decouples the critical path from log writes.
type Logger struct {
	entries chan Entry
	out     io.Writer

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	store       []Entry
	maxStored   int

	done chan struct{}
}

// NewLogger creates a logger with the given buffer size and output writer.
// At most 64 times bufferSize entries are retained for Query.
func NewLogger(bufferSize int, out io.Writer) *Logger {
	l := &Logger{
		entries:     make(chan Entry, bufferSize),
		out:         out,
		subscribers: make(map[string]*Subscriber),
		maxStored:   bufferSize * 64,
		done:        make(chan struct{}),
	}
	go l.processLoop()
	return l
}

// Log sends an event to the async pipeline. It never blocks; when the
// buffer is full the event is dropped with a warning.
func (l *Logger) Log(ev Event) {
	entry := Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Operation:   ev.Operation,
		KeyID:       ev.KeyID,
		Status:      ev.Status,
		Algorithm:   ev.Algorithm,
		Verdict:     ev.Verdict,
		PeerAddress: ev.Peer,
		Metadata:    ev.Metadata,
	}

	select {
	case l.entries <- entry:
	default:
		slog.Warn("audit log buffer full, dropping entry", "operation", ev.Operation)
	}
}

// Subscribe creates a new subscriber that receives entries via a buffered channel.
func (l *Logger) Subscribe() *Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub := &Subscriber{
		C:  make(chan Entry, 64),
		id: uuid.NewString(),
	}
	l.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber.
func (l *Logger) Unsubscribe(sub *Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.subscribers[sub.id]; !ok {
		return
	}
	delete(l.subscribers, sub.id)
	close(sub.C)
}

// Query returns stored entries matching f, newest first.
func (l *Logger) Query(f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []Entry
	for i := len(l.store) - 1; i >= 0; i-- {
		if !f.match(l.store[i]) {
			continue
		}
		results = append(results, l.store[i])
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results
}

// Close stops the processing loop and waits for it to finish.
func (l *Logger) Close() {
	close(l.entries)
	<-l.done
}

func (l *Logger) processLoop() {
	defer close(l.done)

	for entry := range l.entries {
		l.mu.Lock()
		l.store = append(l.store, entry)
		if l.maxStored > 0 && len(l.store) > l.maxStored {
			l.store = l.store[len(l.store)-l.maxStored:]
		}
		l.mu.Unlock()

		if l.out != nil {
			data, err := json.Marshal(entry)
			if err != nil {
				slog.Error("audit marshal", "error", err)
				continue
			}
			fmt.Fprintf(l.out, "%s\n", data)
		}

		// Fan-out to subscribers (non-blocking)
		l.mu.RLock()
		for _, sub := range l.subscribers {
			select {
			case sub.C <- entry:
			default:
				// subscriber too slow, drop
			}
		}
		l.mu.RUnlock()
	}
}
