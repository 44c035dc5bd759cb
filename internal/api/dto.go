package api

import (
	"time"

	"github.com/shaiso/Conveyor/internal/coordinator"
	"github.com/shaiso/Conveyor/internal/state"
)

// TriggerResponse — ответ fire-and-forget trigger.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Link    string `json:"link"`

	RunID     string `json:"run_id,omitempty"`
	Coalesced bool   `json:"coalesced,omitempty"`
}

// TriggerFromTicket формирует ответ на trigger.
func TriggerFromTicket(t coordinator.Ticket, link string) TriggerResponse {
	return TriggerResponse{
		Status:    "success",
		Message:   "Script task started",
		Link:      link,
		RunID:     t.RunID,
		Coalesced: t.Coalesced,
	}
}

// StatusResponse — ответ статуса; Status — литерал маркера как есть.
type StatusResponse struct {
	Status     string     `json:"status"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StatusFromSnapshot конвертирует state.Snapshot в StatusResponse.
func StatusFromSnapshot(s state.Snapshot) StatusResponse {
	return StatusResponse{
		Status:     s.State.String(),
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
