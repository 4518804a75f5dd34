package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/services/reservation-service/internal/cleaning"
	"github.com/deskhive/deskhive/services/reservation-service/internal/model"
	"github.com/deskhive/deskhive/services/reservation-service/internal/outbox"
	"github.com/deskhive/deskhive/services/reservation-service/internal/schedule"
	"github.com/deskhive/deskhive/services/reservation-service/internal/storage"
)

type ReservationHandler struct {
	repo       *storage.ReservationRepository
	idem       *storage.IdempotencyRepository
	settings   *storage.SettingsRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewReservationHandler(repo *storage.ReservationRepository, idem *storage.IdempotencyRepository, settings *storage.SettingsRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		repo:       repo,
		idem:       idem,
		settings:   settings,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type createReservationRequest struct {
	UserID    string   `json:"user_id"`
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

type createReservationResponse struct {
	ReservationID string `json:"reservation_id"`
}

type intervalItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type listReservationItem struct {
	ReservationID string         `json:"reservation_id"`
	DeskID        string         `json:"desk_id"`
	UserID        string         `json:"user_id"`
	Intervals     []intervalItem `json:"intervals"`
	CreatedAt     string         `json:"created_at"`
}

// parseBookingRange turns the wire shape (calendar days plus RFC 3339 start
// and end instants, of which only the clock component applies to each day)
// into the expander's input. Windows spanning midnight are rejected here.
func parseBookingRange(days []string, startStr, endStr string) (schedule.BookingRange, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return schedule.BookingRange{}, errors.New("invalid start_time")
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return schedule.BookingRange{}, errors.New("invalid end_time")
	}

	r := schedule.BookingRange{
		DailyStart: clockOffset(start.UTC()),
		DailyEnd:   clockOffset(end.UTC()),
	}
	if r.DailyStart >= r.DailyEnd {
		return schedule.BookingRange{}, errors.New("end_time must be after start_time within one day")
	}

	for _, raw := range days {
		day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
		if err != nil {
			return schedule.BookingRange{}, errors.New("invalid day (want YYYY-MM-DD)")
		}
		r.Days = append(r.Days, day)
	}
	if len(r.Days) == 0 {
		return schedule.BookingRange{}, errors.New("days must not be empty")
	}
	return r, nil
}

func clockOffset(t time.Time) time.Duration {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	spaceID := strings.TrimSpace(r.PathValue("spaceID"))
	deskID := strings.TrimSpace(r.PathValue("deskID"))
	if orgID == "" || spaceID == "" || deskID == "" {
		http.Error(w, "missing path identifiers", http.StatusBadRequest)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	bookingRange, err := parseBookingRange(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	candidates, err := schedule.Expand(bookingRange)
	if err != nil {
		http.Error(w, "invalid booking range", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.idem.Lock(ctx, tx, orgID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	policy, err := h.settings.GetCleaningPolicy(ctx, orgID)
	if err != nil {
		http.Error(w, "failed to load cleaning policy", http.StatusInternalServerError)
		return
	}

	conflicts, err := h.conflictMap(ctx, orgID, spaceID, candidates, policy)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	conflicted, known := conflicts[deskID]
	if !known {
		http.Error(w, "desk not found in space", http.StatusNotFound)
		return
	}
	if conflicted {
		// Validation outcome, not a server fault: the desk is taken for part
		// of the requested range.
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, orgID, idempotencyKey, http.StatusUnauthorized, "desk not available for the requested range") {
			_ = tx.Commit(ctx)
		}
		http.Error(w, "desk not available for the requested range", http.StatusUnauthorized)
		return
	}

	res := &model.Reservation{
		OrgID:     orgID,
		DeskID:    deskID,
		UserID:    req.UserID,
		Intervals: candidates,
	}
	id, err := h.repo.Create(ctx, tx, res)
	if err == nil {
		err = h.repo.VerifyBufferClear(ctx, tx, deskID, id, candidates, policy.Buffer())
	}
	if err != nil {
		if storage.IsDoubleBooking(err) {
			// Commit-time recheck lost the race; reject, never silently retry.
			http.Error(w, "desk was booked concurrently", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create reservation", http.StatusInternalServerError)
		return
	}

	if err := h.emitBookedEvents(ctx, tx, id, res, policy); err != nil {
		http.Error(w, "failed to write outbox events", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createReservationResponse{ReservationID: id})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.idem.Finalize(ctx, tx, orgID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// conflictMap loads the space's desks and their reserved intervals around the
// candidate range and runs the pure conflict check over the in-memory
// snapshot. The map covers every desk of the space.
func (h *ReservationHandler) conflictMap(ctx context.Context, orgID, spaceID string, candidates []schedule.Interval, policy cleaning.Policy) (map[string]bool, error) {
	desks, err := h.repo.ListDesksBySpace(ctx, orgID, spaceID)
	if err != nil {
		return nil, err
	}
	deskIDs := make([]string, 0, len(desks))
	for _, d := range desks {
		deskIDs = append(deskIDs, d.ID)
	}

	buffer := policy.Buffer()
	from := candidates[0].Start.Add(-buffer)
	to := candidates[len(candidates)-1].End.Add(buffer)
	reservedByDesk, err := h.repo.ListIntervalsByDesks(ctx, deskIDs, from, to)
	if err != nil {
		return nil, err
	}
	return schedule.BuildConflictMap(candidates, reservedByDesk, buffer), nil
}

func (h *ReservationHandler) emitBookedEvents(ctx context.Context, tx pgx.Tx, id string, res *model.Reservation, policy cleaning.Policy) error {
	payload, err := json.Marshal(map[string]any{
		"reservation_id": id,
		"org_id":         res.OrgID,
		"desk_id":        res.DeskID,
		"user_id":        res.UserID,
		"intervals":      intervalItems(res.Intervals),
	})
	if err != nil {
		return err
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   id,
		EventType:     outbox.TopicReservationBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if !policy.Enabled {
		return nil
	}

	// Each interval end is a cleaning slot for the crew scheduler.
	for _, iv := range res.Intervals {
		taskPayload, err := json.Marshal(map[string]any{
			"reservation_id": id,
			"org_id":         res.OrgID,
			"desk_id":        res.DeskID,
			"start_time":     iv.Start.UTC().Format(time.RFC3339),
			"end_time":       iv.End.UTC().Format(time.RFC3339),
			"clean_at":       iv.End.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "reservation",
			AggregateID:   id,
			EventType:     outbox.TopicCleaningTaskRequest,
			Payload:       taskPayload,
		}); err != nil {
			return err
		}
	}

	// The half-hourly sweep cannot reach a reservation ending this close to
	// its next run; notify the crew right away.
	now := time.Now().UTC()
	first := res.Intervals[0]
	if cleaning.NeedsImmediateNotice(now, first.End) {
		noticePayload, err := json.Marshal(map[string]any{
			"reservation_id": id,
			"org_id":         res.OrgID,
			"desk_id":        res.DeskID,
			"end_time":       first.End.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "reservation",
			AggregateID:   id,
			EventType:     outbox.TopicCleaningNoticeNow,
			Payload:       noticePayload,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	spaceID := strings.TrimSpace(r.PathValue("spaceID"))
	daysParam := strings.TrimSpace(r.URL.Query().Get("days"))
	startClock := strings.TrimSpace(r.URL.Query().Get("start"))
	endClock := strings.TrimSpace(r.URL.Query().Get("end"))
	if orgID == "" || spaceID == "" || daysParam == "" || startClock == "" || endClock == "" {
		http.Error(w, "days, start, and end are required", http.StatusBadRequest)
		return
	}

	bookingRange, err := parseClockRange(strings.Split(daysParam, ","), startClock, endClock)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	candidates, err := schedule.Expand(bookingRange)
	if err != nil {
		http.Error(w, "invalid booking range", http.StatusBadRequest)
		return
	}

	policy, err := h.settings.GetCleaningPolicy(r.Context(), orgID)
	if err != nil {
		http.Error(w, "failed to load cleaning policy", http.StatusInternalServerError)
		return
	}
	conflicts, err := h.conflictMap(r.Context(), orgID, spaceID, candidates, policy)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

// parseClockRange is the query-parameter flavor of parseBookingRange: bare
// HH:MM clocks instead of full instants.
func parseClockRange(days []string, startClock, endClock string) (schedule.BookingRange, error) {
	start, err := time.Parse("15:04", startClock)
	if err != nil {
		return schedule.BookingRange{}, errors.New("invalid start (want HH:MM)")
	}
	end, err := time.Parse("15:04", endClock)
	if err != nil {
		return schedule.BookingRange{}, errors.New("invalid end (want HH:MM)")
	}

	r := schedule.BookingRange{
		DailyStart: time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute,
		DailyEnd:   time.Duration(end.Hour())*time.Hour + time.Duration(end.Minute())*time.Minute,
	}
	if r.DailyStart >= r.DailyEnd {
		return schedule.BookingRange{}, errors.New("end must be after start")
	}
	for _, raw := range days {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return schedule.BookingRange{}, errors.New("invalid day (want YYYY-MM-DD)")
		}
		r.Days = append(r.Days, day)
	}
	if len(r.Days) == 0 {
		return schedule.BookingRange{}, errors.New("days must not be empty")
	}
	return r, nil
}

type cancelIntervalRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CancelInterval removes one booked day from a reservation. The cleaning
// service voids the matching crew task off the cancellation event.
func (h *ReservationHandler) CancelInterval(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	reservationID := strings.TrimSpace(r.PathValue("reservationID"))
	if orgID == "" || reservationID == "" {
		http.Error(w, "missing path identifiers", http.StatusBadRequest)
		return
	}

	var req cancelIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := h.repo.GetForUpdate(ctx, tx, orgID, reservationID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load reservation", http.StatusInternalServerError)
		return
	}

	iv := schedule.Interval{Start: start, End: end}
	remaining, err := h.repo.DeleteInterval(ctx, tx, res.ID, iv)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "interval not found on reservation", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to cancel interval", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"reservation_id": res.ID,
		"org_id":         res.OrgID,
		"desk_id":        res.DeskID,
		"user_id":        res.UserID,
		"start_time":     iv.Start.UTC().Format(time.RFC3339),
		"end_time":       iv.End.UTC().Format(time.RFC3339),
		"remaining":      remaining,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     outbox.TopicIntervalCancelled,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reservation_id":      res.ID,
		"remaining_intervals": remaining,
	})
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.PathValue("orgID"))
	if orgID == "" {
		http.Error(w, "missing organization id", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	reservations, err := h.repo.ListByOrganization(r.Context(), orgID, userID, limit)
	if err != nil {
		http.Error(w, "failed to list reservations", http.StatusInternalServerError)
		return
	}

	items := make([]listReservationItem, 0, len(reservations))
	for _, res := range reservations {
		items = append(items, listReservationItem{
			ReservationID: res.ID,
			DeskID:        res.DeskID,
			UserID:        res.UserID,
			Intervals:     intervalItems(res.Intervals),
			CreatedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ReservationHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, orgID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.idem.Finalize(ctx, tx, orgID, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func intervalItems(intervals []schedule.Interval) []intervalItem {
	items := make([]intervalItem, 0, len(intervals))
	for _, iv := range intervals {
		items = append(items, intervalItem{
			StartTime: iv.Start.UTC().Format(time.RFC3339),
			EndTime:   iv.End.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime < items[j].StartTime })
	return items
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
