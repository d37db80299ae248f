package httpapi

import (
	"net/http"
	"strings"

	"github.com/jeogo/casnos-sub000/internal/reset"
)

func (h *Handler) handleResetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status, err := h.reset.Status(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

func (h *Handler) handleResetForce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.reset.Force(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeMessage(w, http.StatusOK, nil, "reset completed")
}

type resetConfigRequest struct {
	Enabled        *bool    `json:"enabled"`
	ResetTime      *string  `json:"reset_time"`
	TicketsEnabled *bool    `json:"tickets_enabled"`
	FilesEnabled   *bool    `json:"files_enabled"`
	CacheEnabled   *bool    `json:"cache_enabled"`
	ArtifactDirs   []string `json:"artifact_dirs"`
	RetentionDays  *int     `json:"retention_days"`
}

func (h *Handler) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req resetConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ResetTime != nil && !validResetTime(*req.ResetTime) {
		writeError(w, http.StatusBadRequest, "reset_time must be HH:MM")
		return
	}
	if req.RetentionDays != nil && *req.RetentionDays <= 0 {
		writeError(w, http.StatusBadRequest, "retention_days must be positive")
		return
	}

	cfg := h.reset.UpdateConfig(func(cfg *reset.Config) {
		if req.Enabled != nil {
			cfg.Enabled = *req.Enabled
		}
		if req.ResetTime != nil {
			cfg.ResetTime = strings.TrimSpace(*req.ResetTime)
		}
		if req.TicketsEnabled != nil {
			cfg.TicketsEnabled = *req.TicketsEnabled
		}
		if req.FilesEnabled != nil {
			cfg.FilesEnabled = *req.FilesEnabled
		}
		if req.CacheEnabled != nil {
			cfg.CacheEnabled = *req.CacheEnabled
		}
		if req.ArtifactDirs != nil {
			cfg.ArtifactDirs = req.ArtifactDirs
		}
		if req.RetentionDays != nil {
			cfg.RetentionDays = *req.RetentionDays
		}
	})
	writeData(w, http.StatusOK, cfg)
}

func validResetTime(value string) bool {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return false
	}
	hour, minute := -1, -1
	for i, part := range parts {
		if part == "" || len(part) > 2 {
			return false
		}
		n := 0
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
			n = n*10 + int(r-'0')
		}
		if i == 0 {
			hour = n
		} else {
			minute = n
		}
	}
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}
