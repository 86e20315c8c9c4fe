package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tally/internal/core"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "method", r.Method, "url", r.URL.Path)
		resp.Write(w)
		return
	}

	desc := sanitizeInput(r.Form.Get("description"))
	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	kindStr := r.Form.Get("kind")

	kind, err := core.ParseKind(kindStr)
	if err != nil {
		UnprocessableEntityError("Unknown transaction kind").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(amountStr)
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}

	tx := core.Transaction{
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
	}
	// Date is optional; the ledger defaults an unset date to today.
	if HasAnyDateParam(r.Form) {
		d := ParseDateParams(r.Form)
		tx.Date = core.NewDate(d.Year, d.Month, d.Day)
	}

	stored, err := s.writer.Add(r.Context(), tx)
	if err != nil {
		if isValidationError(err) {
			UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to record transaction",
			"error", err,
			"description", tx.Description,
			"amount_cents", tx.Amount.Cents,
			"kind", tx.Kind,
			"operation", "add")
		InternalServerError("Error recording transaction").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction recorded",
		"id", stored.ID,
		"description", stored.Description,
		"amount_cents", stored.Amount.Cents,
		"kind", stored.Kind,
		"date", fmt.Sprintf("%04d-%02d-%02d", stored.Date.Year(), stored.Date.Month(), stored.Date.Day()))

	s.invalidateOverview()

	successMsg := fmt.Sprintf("Recorded #%d: %s — %s (%s)",
		stored.ID,
		template.HTMLEscapeString(stored.Description),
		stored.Amount.String(),
		stored.Kind)

	NewHTMXResponse().
		TriggerTransactionCreated(stored.ID).
		TriggerOverviewRefresh().
		TriggerFormReset().
		TriggerSuccessNotification(successMsg).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		slog.ErrorContext(r.Context(), "Parse body error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	rawID := parser.Get("id")
	if rawID == "" {
		BadRequestError("Missing transaction id").Write(w)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}

	if !s.remover.Remove(r.Context(), id) {
		// Unknown id is a ledger no-op; report it to the user without
		// treating it as a server fault.
		slog.WarnContext(r.Context(), "Transaction not found for deletion", "id", id)
		NotFoundError("Transaction not found").
			TriggerErrorNotification(fmt.Sprintf("Transaction #%d not found", id)).
			Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted", "id", id)

	s.invalidateOverview()

	NewHTMXResponse().
		TriggerTransactionDeleted(id).
		TriggerOverviewRefresh().
		TriggerSuccessNotification(fmt.Sprintf("Transaction #%d deleted", id)).
		Write(w)
}

// isValidationError reports whether err is one of the domain validation
// sentinels (any of which means 422, not 500).
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidKind) ||
		strings.Contains(err.Error(), "description too long")
}
