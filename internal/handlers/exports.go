package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/pkg/exporter"
)

// ExportsHandler serves workbook downloads of the assignment register
type ExportsHandler struct {
	DB *pgxpool.Pool
}

// NewExportsHandler creates a new exports handler
func NewExportsHandler(db *pgxpool.Pool) *ExportsHandler {
	return &ExportsHandler{DB: db}
}

// AssignmentRegister streams the caller's org assignment register as
// an .xlsx attachment. active=true limits it to open assignments.
func (h *ExportsHandler) AssignmentRegister(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	opts := exporter.ExportOptions{
		OrgID:      claims.OrgID,
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	filename := fmt.Sprintf("assignments-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	if _, err := exporter.ExportAssignments(r.Context(), h.DB, w, opts); err != nil {
		// Headers may already be out; log-style error is all we can do
		http.Error(w, "export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
}
