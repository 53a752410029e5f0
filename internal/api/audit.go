package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ashara-studio/ashara-core/internal/audit"
)

// auditChanSize is the buffer size for the async audit log channel.
// Entries beyond this are dropped so that auditing never blocks a request.
const auditChanSize = 256

// auditSource marks entries written by the HTTP layer.
const auditSource = "api"

// recordSession counts a successful session operation and queues its
// audit entry. The entry is dropped with a warning if the queue is full.
func (s *Server) recordSession(r *http.Request, action audit.Action, userID string) {
	sessionEvents.WithLabelValues(string(action)).Inc()

	if s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		Action:     action,
		EntityType: audit.EntityTypeSession,
		EntityID:   userID,
		UserID:     userID,
		Source:     auditSource,
		Details: map[string]any{
			"request_id": requestIDFrom(r.Context()),
			"remote":     r.RemoteAddr,
		},
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit log channel full, dropping entry",
			"action", action,
			"user_id", userID,
		)
	}
}

// drainAuditLog writes queued entries one at a time until ctx is done,
// then flushes whatever is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAuditEntry(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAuditEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAuditEntry(entry *audit.Entry) {
	// Detached from the request and server contexts so shutdown still flushes.
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"user_id", entry.UserID,
			"error", err,
		)
	}
}

// handleListAuditLogs returns paginated session audit entries.
//
// Query parameters:
//   - action: register, login, refresh or logout
//   - user_id: entries for one account
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     audit.Action(q.Get("action")),
		EntityType: audit.EntityTypeSession,
		UserID:     q.Get("user_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	page, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, page)
}
