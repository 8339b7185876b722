package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/talekeeper/storysync/internal/remote"
	syncer "github.com/talekeeper/storysync/internal/sync"
)

// StatusData describes a remote status change
type StatusData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Cause string `json:"cause,omitempty"`
}

// TypeCounts contains one entity type's sync counters
type TypeCounts struct {
	Pushed    int `json:"pushed"`
	Pulled    int `json:"pulled"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// SyncData contains the outcome of a full sync
type SyncData struct {
	RunID     string        `json:"run_id"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Stories   TypeCounts    `json:"stories"`
	Profiles  TypeCounts    `json:"profiles"`
	Error     string        `json:"error,omitempty"`
}

// SnapshotData is sent to each client when it connects
type SnapshotData struct {
	Status   string    `json:"status"`
	LastSync *SyncData `json:"last_sync,omitempty"`
}

// Handler turns status changes and sync results into dashboard messages.
// Its OnStatusChanged method is a status observer and it implements
// sync.Reporter.
type Handler struct {
	server *Server
	logger *log.Logger

	mu       sync.Mutex
	status   remote.Status
	lastSync *SyncData
}

var _ syncer.Reporter = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
// and installs its snapshot on the server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
		status: remote.Unavailable,
	}
	server.SetSnapshot(h.Snapshot)
	return h
}

// OnStatusChanged handles remote status transitions
func (h *Handler) OnStatusChanged(from, to remote.Status) {
	h.mu.Lock()
	h.status = to
	h.mu.Unlock()

	data := StatusData{From: from.String(), To: string(to.State)}
	if to.Cause != nil {
		data.Cause = to.Cause.Error()
	}
	if to.State == "" {
		data.To = string(remote.StateUnavailable)
	}
	h.send(MessageTypeStatusChanged, data)
}

// SyncFinished handles the end of a full sync
func (h *Handler) SyncFinished(ctx context.Context, res syncer.Result, err error) {
	data := syncData(res, err)

	h.mu.Lock()
	h.lastSync = &data
	h.mu.Unlock()

	if err != nil {
		h.send(MessageTypeSyncFailed, data)
		return
	}
	h.send(MessageTypeSyncComplete, data)
}

// Snapshot returns the current state as a snapshot message
func (h *Handler) Snapshot() Message {
	h.mu.Lock()
	snap := SnapshotData{Status: h.status.String(), LastSync: h.lastSync}
	h.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		h.logger.Printf("Failed to marshal snapshot: %v", err)
	}
	return Message{Type: MessageTypeSnapshot, Timestamp: time.Now(), Data: raw}
}

func (h *Handler) send(typ MessageType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      raw,
	})
}

func syncData(res syncer.Result, err error) SyncData {
	data := SyncData{
		RunID:     res.RunID,
		Trigger:   string(res.Trigger),
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Stories:   counts(res.Stories),
		Profiles:  counts(res.Profiles),
	}
	if err != nil {
		data.Error = err.Error()
	}
	return data
}

func counts(r syncer.TypeResult) TypeCounts {
	return TypeCounts{
		Pushed:    r.Pushed,
		Pulled:    r.Pulled,
		Unchanged: r.Unchanged,
		Failed:    r.Failed,
	}
}
