package api

import (
	"net/http"

	"github.com/adpulse/adpulse/internal/tracker"
)

// HandleActivityReport returns a handler for GET /api/v1/reports/activity.
// The days query parameter bounds the trailing window; default 7.
func HandleActivityReport(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := ParseIntQuery(r, "days", 7)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}

		report, err := t.ActivityReport(r.Context(), days)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}
