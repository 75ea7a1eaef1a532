package handlers

import (
	"net/http"
	"strconv"

	"visuallab/internal/notice"
)

type noticesResponse struct {
	Notices []notice.Notice `json:"notices"`
}

func (a *App) ListNotices(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	a.json(w, http.StatusOK, noticesResponse{Notices: a.Notices.Recent(limit)})
}
