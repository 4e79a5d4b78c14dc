package handlers

import (
	"net/http"

	"github.com/sv4u/playlistroulette/game/history"
	"github.com/sv4u/playlistroulette/game/settings"
)

type settingsResponse struct {
	APIURL     string                    `json:"api_url"`
	HasToken   bool                      `json:"has_token"`
	Connection settings.ConnectionStatus `json:"connection"`
	RemoteAPI  interface{}               `json:"remote_api,omitempty"`
}

type connectRequest struct {
	URL string `json:"url"`
}

// GetSettings handles GET /api/settings. The token itself is never returned.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsView())
}

// Connect handles POST /api/settings/connect - saves the API URL and token
// extracted from a pasted callback URL.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.deps.Settings.Connect(req.URL)
	if err != nil {
		h.deps.History.AddActivity(history.ActivityConnectFailed, err.Error(), nil)
		status := http.StatusInternalServerError
		if isConfigError(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]interface{}{
			"error":    err.Error(),
			"settings": h.settingsView(),
		})
		return
	}

	// New credentials: reload on next fetch and give the API a fresh chance.
	h.deps.Source.Invalidate()
	if h.deps.Remote != nil {
		h.deps.Remote.ResetBreaker()
	}
	h.deps.History.AddActivity(history.ActivityConnected, "Connected to "+res.BaseURL, map[string]interface{}{
		"api_url": res.BaseURL,
	})
	writeJSON(w, http.StatusOK, h.settingsView())
}

func (h *Handlers) settingsView() settingsResponse {
	resp := settingsResponse{
		APIURL:     h.deps.Settings.APIURL(),
		HasToken:   h.deps.Settings.Token() != "",
		Connection: h.deps.Settings.Status(),
	}
	if h.deps.Remote != nil {
		resp.RemoteAPI = h.deps.Remote.BreakerStatus()
	}
	return resp
}
