package api

import (
	"net/http"

	"github.com/seenimoa/hemicycle/internal/config"
)

// ConfigResponse is the body of GET /api/v1/config.
type ConfigResponse struct {
	Config  config.Config         `json:"config"`
	Secrets []config.SecretStatus `json:"secrets"`
}

// handleGetConfig returns the running configuration with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	secrets := config.CheckSecrets(s.cfg)

	view := *s.cfg
	for _, sec := range secrets {
		if sec.Name == config.SecretDatabaseURL {
			view.Database.URL = sec.Masked
		}
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Config: view, Secrets: secrets},
	})
}
