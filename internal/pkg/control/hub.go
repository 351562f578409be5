// Package control is the in-process boundary of the remote control server:
// clients patch the live configuration and receive state broadcasts.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gethiox/strummer/internal/pkg/config"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/pipeline"
	"github.com/gethiox/strummer/internal/pkg/theory"
	"github.com/gethiox/strummer/internal/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var ErrInvalidMessage = errors.New("invalid message")

// ActionKey is a reserved top-level key, its value is executed as a button action.
const ActionKey = "action"

const (
	TypeNotes   = "notes"
	TypeWarning = "warning"
	TypeConfig  = "config"
)

// Message is broadcast to subscribers as a JSON object.
type Message struct {
	Type        string                  `json:"type"`
	Notes       []theory.Note           `json:"notes,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Config      map[string]interface{}  `json:"config,omitempty"`
	Progression *theory.ProgressionInfo `json:"progression,omitempty"`
	Timestamp   float64                 `json:"timestamp"`
}

func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// Target receives what clients ask for.
type Target interface {
	Execute(raw interface{}, source string) error
	ConfigChanged()
	Notes() []theory.Note
	Progression() theory.ProgressionInfo
}

type Subscription struct {
	ID uuid.UUID
	// Initial holds current config and notes, to be sent before any update.
	Initial []Message
	Updates <-chan Message
}

type Hub struct {
	store  *config.Store
	target Target
	fan    *utils.DynamicFanOut[Message]

	mu      sync.Mutex
	clients map[uuid.UUID]string
}

// NewHub starts forwarding states to subscribers until states channel closes.
func NewHub(store *config.Store, target Target, states <-chan pipeline.State, bufferSize int) *Hub {
	messages := make(chan Message, bufferSize)
	h := &Hub{
		store:   store,
		target:  target,
		fan:     utils.NewDynamicFanOut[Message](messages, bufferSize),
		clients: make(map[uuid.UUID]string),
	}
	go func() {
		defer close(messages)
		for s := range states {
			messages <- h.fromState(s)
		}
	}()
	return h
}

func timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func (h *Hub) configMessage(t time.Time) Message {
	info := h.target.Progression()
	m := Message{Type: TypeConfig, Config: h.store.Snapshot(), Timestamp: timestamp(t)}
	if info.Name != "" {
		m.Progression = &info
	}
	return m
}

func (h *Hub) fromState(s pipeline.State) Message {
	switch s.Type {
	case pipeline.NotesState:
		return Message{Type: TypeNotes, Notes: s.Notes, Timestamp: timestamp(s.Timestamp)}
	case pipeline.WarningState:
		return Message{Type: TypeWarning, Message: s.Message, Timestamp: timestamp(s.Timestamp)}
	default:
		return h.configMessage(s.Timestamp)
	}
}

// Subscribe registers a client, name is only used in logs.
func (h *Hub) Subscribe(name string) (Subscription, error) {
	id, updates, err := h.fan.SpawnOutput()
	if err != nil {
		return Subscription{}, fmt.Errorf("subscribing %s failed: %w", name, err)
	}
	h.mu.Lock()
	h.clients[id] = name
	h.mu.Unlock()
	log.Info(fmt.Sprintf("client connected: %s", name), logger.Info, zap.String("client", id.String()))

	now := time.Now()
	return Subscription{
		ID: id,
		Initial: []Message{
			h.configMessage(now),
			{Type: TypeNotes, Notes: h.target.Notes(), Timestamp: timestamp(now)},
		},
		Updates: updates,
	}, nil
}

func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	name, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := h.fan.DespawnOutput(id); err != nil {
		log.Info(fmt.Sprintf("unsubscribing %s: %v", name, err), logger.Debug)
	}
	log.Info(fmt.Sprintf("client disconnected: %s", name), logger.Info, zap.String("client", id.String()))
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle applies JSON object sent by client: every key except ActionKey is a dotted config path.
// It returns applied config keys.
func (h *Hub) Handle(id uuid.UUID, data []byte) ([]string, error) {
	var updates map[string]interface{}
	err := json.Unmarshal(data, &updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	source := "client " + id.String()
	h.mu.Lock()
	if name, ok := h.clients[id]; ok {
		source = "client " + name
	}
	h.mu.Unlock()

	var actionErr error
	if raw, ok := updates[ActionKey]; ok {
		delete(updates, ActionKey)
		actionErr = h.target.Execute(raw, source)
	}

	if len(updates) == 0 {
		return nil, actionErr
	}

	applied := h.store.Patch(updates)
	if len(applied) > 0 {
		log.Info(fmt.Sprintf("%s updated config: %s", source, strings.Join(applied, ", ")), logger.Action)
		h.target.ConfigChanged()
	}
	if len(applied) < len(updates) {
		err = fmt.Errorf("%w: %d of %d keys rejected", ErrInvalidMessage, len(updates)-len(applied), len(updates))
		return applied, errors.Join(actionErr, err)
	}
	return applied, actionErr
}

// Done is closed after states channel is exhausted and subscribers are released.
func (h *Hub) Done() <-chan struct{} {
	return h.fan.Done()
}
