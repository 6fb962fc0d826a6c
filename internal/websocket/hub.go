// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package websocket fans out task, restore and export notifications to
// connected browser clients.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/metrics"
	"github.com/tomtom215/notevault/internal/models"
)

// Message types
const (
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeBackupTask      = "backup_task"
	MessageTypeRestoreProgress = "restore_progress"
	MessageTypeExportCompleted = "export_completed"
)

// Message is the envelope written to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// RestoreProgressData wraps one restore event with the run it belongs to.
type RestoreProgressData struct {
	RunID string      `json:"runId"`
	Event interface{} `json:"event"`
}

// ExportCompletedData announces a finished export.
type ExportCompletedData struct {
	AccountID int64       `json:"accountId"`
	Format    string      `json:"format"`
	Result    interface{} `json:"result"`
	Timestamp string      `json:"timestamp"`
}

// Hub tracks connected clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. RunWithContext must be running for registrations
// and broadcasts to be processed.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext processes registrations and broadcasts until ctx is done,
// then closes every client. Lifecycle events are handled before pending
// broadcasts so a new client sees messages sent after it registered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	n := h.GetClientCount()
	h.closeAllClients()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", n).
		Msg("websocket hub stopped")
}

// sortedClients returns clients in connection order. Caller holds mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients drops clients whose send buffer is full.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for every client. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BackupTaskChanged announces a backup task state change.
func (h *Hub) BackupTaskChanged(status models.TaskStatus) {
	h.BroadcastJSON(MessageTypeBackupTask, status)
}

// BroadcastRestoreProgress announces one restore event.
func (h *Hub) BroadcastRestoreProgress(runID string, event interface{}) {
	h.BroadcastJSON(MessageTypeRestoreProgress, RestoreProgressData{RunID: runID, Event: event})
}

// BroadcastExportCompleted announces a finished export.
func (h *Hub) BroadcastExportCompleted(accountID int64, format string, result interface{}) {
	h.BroadcastJSON(MessageTypeExportCompleted, ExportCompletedData{
		AccountID: accountID,
		Format:    format,
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// MarshalMessage encodes a message as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
