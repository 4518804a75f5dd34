package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deskhive/deskhive/services/reservation-service/internal/cleaning"
	"github.com/deskhive/deskhive/services/reservation-service/internal/directory"
	"github.com/deskhive/deskhive/services/reservation-service/internal/outbox"
	"github.com/deskhive/deskhive/services/reservation-service/internal/storage"
)

type CleaningHandler struct {
	repo       *storage.ReservationRepository
	settings   *storage.SettingsRepository
	outboxRepo *outbox.Repository
	directory  directory.Provider
	logger     *slog.Logger
}

func NewCleaningHandler(repo *storage.ReservationRepository, settings *storage.SettingsRepository, outboxRepo *outbox.Repository, directoryProvider directory.Provider, logger *slog.Logger) *CleaningHandler {
	return &CleaningHandler{
		repo:       repo,
		settings:   settings,
		outboxRepo: outboxRepo,
		directory:  directoryProvider,
		logger:     logger,
	}
}

type setCleaningRequest struct {
	Enabled bool `json:"enabled"`
}

type setCleaningResponse struct {
	Enabled        bool `json:"enabled"`
	ConflictsFound int  `json:"conflicts_found"`
}

// SetPolicy flips the per-organization cleaning buffer. Turning it on runs a
// one-time scan for zero-gap adjacencies booked before the flip. The toggle
// and the scan commit separately so a scan failure never leaves the policy
// half-applied; at worst the conflict events are missing and the flip is
// logged for a manual re-run.
func (h *CleaningHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	if orgID == "" {
		http.Error(w, "missing organization id", http.StatusBadRequest)
		return
	}
	var req setCleaningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, err := h.settings.SetCleaning(ctx, tx, orgID, req.Enabled)
	if err != nil {
		http.Error(w, "failed to update cleaning policy", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	resp := setCleaningResponse{Enabled: req.Enabled}
	if changed && req.Enabled {
		// The row update above is the exactly-once gate: a repeated
		// enabled=true request reports changed=false and skips the scan.
		n, err := h.scanGrandfathered(ctx, orgID)
		if err != nil {
			h.logger.Error("retroactive cleaning scan failed; policy stays enabled",
				"org_id", orgID, "err", err)
		} else {
			resp.ConflictsFound = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// scanGrandfathered loads the organization's upcoming reservations, runs the
// zero-gap scan, and writes one outbox event per adjacent pair in its own
// transaction.
func (h *CleaningHandler) scanGrandfathered(ctx context.Context, orgID string) (int, error) {
	now := time.Now().UTC()
	reservations, err := h.repo.ListUpcoming(ctx, orgID, now)
	if err != nil {
		return 0, err
	}
	events := cleaning.ScanZeroGap(reservations, now)
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, evt := range events {
		payload, err := json.Marshal(map[string]any{
			"org_id":         orgID,
			"boundary":       evt.Boundary.UTC().Format(time.RFC3339),
			"reservation_a":  evt.ReservationA,
			"user_a":         evt.UserA,
			"user_a_contact": h.lookupContact(ctx, orgID, evt.UserA),
			"interval_a": intervalItem{
				StartTime: evt.IntervalA.Start.UTC().Format(time.RFC3339),
				EndTime:   evt.IntervalA.End.UTC().Format(time.RFC3339),
			},
			"reservation_b":  evt.ReservationB,
			"user_b":         evt.UserB,
			"user_b_contact": h.lookupContact(ctx, orgID, evt.UserB),
			"interval_b": intervalItem{
				StartTime: evt.IntervalB.Start.UTC().Format(time.RFC3339),
				EndTime:   evt.IntervalB.End.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			return 0, err
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "organization",
			AggregateID:   orgID,
			EventType:     outbox.TopicCleaningConflict,
			Payload:       payload,
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(events), nil
}

// lookupContact asks the directory service for the member's email so the
// notifier can address them. Best effort: a missing provider or a lookup
// error just leaves the field empty.
func (h *CleaningHandler) lookupContact(ctx context.Context, orgID, userID string) string {
	if h.directory == nil {
		return ""
	}
	member, err := h.directory.Member(ctx, orgID, userID)
	if err != nil {
		h.logger.Warn("directory lookup failed", "user_id", userID, "err", err)
		return ""
	}
	return member.Email
}

func (h *CleaningHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	if orgID == "" {
		http.Error(w, "missing organization id", http.StatusBadRequest)
		return
	}
	policy, err := h.settings.GetCleaningPolicy(r.Context(), orgID)
	if err != nil {
		http.Error(w, "failed to load cleaning policy", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":               policy.Enabled,
		"buffer_minutes":        int(policy.Buffer().Minutes()),
		"notice_window_minutes": int(cleaning.Window.Minutes()),
	})
}
