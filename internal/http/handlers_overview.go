package http

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

// handleOverview renders the dashboard partial: totals, balance, expense
// category bars and the transactions table. The rendered bytes are cached
// until the next mutation invalidates them.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if body, found := s.overviewCache.Get(overviewCacheKey); found {
		slog.DebugContext(r.Context(), "Overview cache hit")
		_, _ = w.Write(body)
		return
	}

	ov := s.overview.Build(r.Context())

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Balance: ` + ov.Balance.String() + `</div></section>`))
		return
	}

	// Scale category bars against the largest category.
	var maxCents int64
	for _, c := range ov.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}

	type categoryRow struct {
		Name, Amount string
		Width        int
	}
	type transactionRow struct {
		ID          int64
		Date        string
		Description string
		Amount      string
		Kind        string
	}
	data := struct {
		Income       string
		Expense      string
		Balance      string
		BalanceClass string
		Rows         []categoryRow
		Items        []transactionRow
	}{
		Income:  ov.Income.String(),
		Expense: ov.Expense.String(),
		Balance: ov.Balance.String(),
	}
	if ov.Balance.Cents > 0 {
		data.BalanceClass = "overview__balance--positive"
	} else if ov.Balance.Cents < 0 {
		data.BalanceClass = "overview__balance--negative"
	}

	for _, c := range ov.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width > 0 && width < 2 {                               // ensure visibility for very small values
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, categoryRow{Name: c.Name, Amount: c.Amount.String(), Width: width})
	}

	for _, tx := range ov.Transactions {
		data.Items = append(data.Items, transactionRow{
			ID:          tx.ID,
			Date:        formatDate(tx.Date.Year(), tx.Date.Month(), tx.Date.Day()),
			Description: template.HTMLEscapeString(tx.Description),
			Amount:      tx.Amount.String(),
			Kind:        string(tx.Kind),
		})
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Overview template execution failed", "error", err, "template", "overview.html")
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Error rendering overview</div></section>`))
		return
	}

	body := buf.Bytes()
	s.overviewCache.Set(overviewCacheKey, body)
	slog.DebugContext(r.Context(), "Overview cached",
		"balance_cents", ov.Balance.Cents,
		"categories", len(ov.ByCategory),
		"transactions", len(ov.Transactions))
	_, _ = w.Write(body)
}

func formatDate(year, month, day int) string {
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}
