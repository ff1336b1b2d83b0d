package gateway

import (
	"net/http"
	"strings"
	"time"

	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/stream"
)

// healthResponse is the JSON structure used by healthHandler
type healthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		StartedAt: g.startedAt,
		Uptime:    time.Since(g.startedAt).String(),
	})
}

type deviceResponse struct {
	registry.PeerRecord
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (g *Gateway) devicesHandler(w http.ResponseWriter, r *http.Request) {
	peers := g.ctl.Devices()
	out := make([]deviceResponse, 0, len(peers))
	for _, p := range peers {
		out = append(out, deviceResponse{PeerRecord: p, Name: p.DisplayName(), Description: p.Description()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

func (g *Gateway) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.ctl.Status())
}

func (g *Gateway) discoveryStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := g.ctl.StartDiscovery(); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"discovery": "started"})
}

func (g *Gateway) discoveryStopHandler(w http.ResponseWriter, r *http.Request) {
	g.ctl.StopDiscovery()
	writeJSON(w, http.StatusOK, map[string]any{"discovery": "stopped"})
}

type connectRequest struct {
	ID string `json:"id"`
}

func (g *Gateway) connectHandler(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		g.writeError(w, r, serrors.NewValidationError("id", "device id is required", req.ID))
		return
	}
	if err := g.ctl.Connect(r.Context(), req.ID); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g.ctl.Status())
}

func (g *Gateway) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	g.ctl.Disconnect()
	writeJSON(w, http.StatusOK, g.ctl.Status())
}

func (g *Gateway) streamStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := g.ctl.StartStreaming(); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, g.ctl.Status())
}

func (g *Gateway) streamStopHandler(w http.ResponseWriter, r *http.Request) {
	g.ctl.StopStreaming()
	writeJSON(w, http.StatusOK, g.ctl.Status())
}

// settingsBody is the wire form of stream.Settings. Durations travel as
// seconds; absent fields keep their current value on PUT.
type settingsBody struct {
	TargetFPS            *int     `json:"target_fps,omitempty"`
	StreamOnlyWhenActive *bool    `json:"stream_only_when_active,omitempty"`
	InactivityThreshold  *float64 `json:"inactivity_threshold_seconds,omitempty"`
}

func toSettingsBody(s stream.Settings) settingsBody {
	fps := s.TargetFPS
	active := s.StreamOnlyWhenActive
	secs := s.InactivityThreshold.Seconds()
	return settingsBody{TargetFPS: &fps, StreamOnlyWhenActive: &active, InactivityThreshold: &secs}
}

func (b settingsBody) apply(s stream.Settings) stream.Settings {
	if b.TargetFPS != nil {
		s.TargetFPS = *b.TargetFPS
	}
	if b.StreamOnlyWhenActive != nil {
		s.StreamOnlyWhenActive = *b.StreamOnlyWhenActive
	}
	if b.InactivityThreshold != nil {
		// Clamp in seconds first; huge values would overflow the Duration.
		secs := min(max(*b.InactivityThreshold, stream.MinThreshold.Seconds()), stream.MaxThreshold.Seconds())
		s.InactivityThreshold = time.Duration(secs * float64(time.Second))
	}
	return s
}

func (g *Gateway) settingsGetHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsBody(g.ctl.Settings()))
}

func (g *Gateway) settingsPutHandler(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := decodeJSON(w, r, &body); err != nil {
		g.writeError(w, r, err)
		return
	}
	if body.InactivityThreshold != nil && *body.InactivityThreshold < 0 {
		g.writeError(w, r, serrors.NewValidationError("inactivity_threshold_seconds", "must not be negative", *body.InactivityThreshold))
		return
	}
	applied := g.ctl.UpdateSettings(body.apply(g.ctl.Settings()))
	writeJSON(w, http.StatusOK, toSettingsBody(applied))
}

func (g *Gateway) activityHandler(w http.ResponseWriter, r *http.Request) {
	g.ctl.RecordChange()
	w.WriteHeader(http.StatusNoContent)
}
