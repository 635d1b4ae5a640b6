package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mmolhoek/papertrail-sub003/internal/services/pubsub"
	"github.com/mmolhoek/papertrail-sub003/internal/services/wifi"
)

// api exposes the WiFi core over HTTP and a websocket event feed. The
// websocket client count doubles as the state machine's "UI client
// attached" signal.
type api struct {
	wifi     *wifi.StateMachine
	pubsub   *pubsub.PubSub
	upgrader websocket.Upgrader

	// Socket count owned here rather than derived from subscriber counts,
	// so concurrent closes cannot report a stale total.
	clientMu    sync.Mutex
	clientCount int
}

func newAPI(sm *wifi.StateMachine, ps *pubsub.PubSub) *api {
	return &api{
		wifi:   sm,
		pubsub: ps,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (a *api) routes(router chi.Router) {
	router.Get("/health", healthCheckHandler)
	router.Get("/ws", a.handleWebSocket)

	router.Route("/api/wifi", func(r chi.Router) {
		r.Get("/state", a.handleGetState)
		r.Get("/connection", a.handleGetConnection)
		r.Get("/networks", a.handleScanNetworks)
		r.Post("/connect", a.handleConnect)
		r.Post("/disconnect", a.handleDisconnect)
		r.Get("/saved", a.handleGetSavedNetworks)
		r.Post("/saved", a.handleSaveNetwork)
		r.Delete("/saved/{ssid}", a.handleRemoveNetwork)
		r.Get("/hotspot", a.handleGetHotspotConfig)
		r.Post("/hotspot", a.handleSetHotspotConfig)
		r.Post("/hotspot/attempt", a.handleAttemptHotspot)
		r.Post("/screen-displayed", a.handleScreenDisplayed)
	})
}

type stateEvent struct {
	State wifi.State `json:"state"`
}

type connectionEvent struct {
	Connected bool `json:"connected"`
}

type wsEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// handleWebSocket streams state and connection events. Each open socket
// counts as one attached UI client.
func (a *api) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	stateSub := a.pubsub.Subscribe(pubsub.TopicWiFiState, 16)
	connSub := a.pubsub.Subscribe(pubsub.TopicWiFiConnection, 16)
	defer a.pubsub.Unsubscribe(stateSub)
	defer a.pubsub.Unsubscribe(connSub)

	a.changeClientCount(1)
	defer a.changeClientCount(-1)

	// Send the current state immediately so a fresh client needs no poll
	if err := conn.WriteJSON(wsEvent{Type: "state", Payload: stateEvent{State: a.wifi.GetState()}}); err != nil {
		return
	}

	// Drain the read side to notice the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-stateSub.Channel:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsEvent{Type: "state", Payload: msg}); err != nil {
				return
			}
		case msg, ok := <-connSub.Channel:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsEvent{Type: "connection", Payload: msg}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// changeClientCount adjusts the socket count and pushes the new total to the
// state machine while still holding the lock, so updates reach it in order.
func (a *api) changeClientCount(delta int) {
	a.clientMu.Lock()
	defer a.clientMu.Unlock()
	a.clientCount += delta
	a.wifi.SetWebSocketClientCount(a.clientCount)
}

func (a *api) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": a.wifi.GetState(),
		"mode":  a.wifi.GetMode(),
	})
}

func (a *api) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := a.wifi.GetCurrentConnection()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected":  conn != nil,
		"connection": conn,
		"hotspot":    a.wifi.IsConnectedToMobileHotspot(r.Context()),
	})
}

func (a *api) handleScanNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := a.wifi.ScanNetworks()
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"networks": networks})
}

type connectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (a *api) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.wifi.Connect(req.SSID, req.Password); err != nil {
		writeError(w, connectStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connected": true})
}

func (a *api) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := a.wifi.Disconnect(); err != nil {
		if errors.Is(err, wifi.ErrNotConnected) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
}

type saveNetworkRequest struct {
	SSID        string `json:"ssid"`
	Password    string `json:"password"`
	Priority    int    `json:"priority"`
	AutoConnect bool   `json:"autoConnect"`
}

func (a *api) handleSaveNetwork(w http.ResponseWriter, r *http.Request) {
	var req saveNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := a.wifi.SaveNetwork(wifi.NetworkConfig{
		SSID:        req.SSID,
		Password:    req.Password,
		Priority:    req.Priority,
		AutoConnect: req.AutoConnect,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"saved": true})
}

func (a *api) handleGetSavedNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := a.wifi.GetSavedNetworks()
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"networks": networks})
}

func (a *api) handleRemoveNetwork(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	if err := a.wifi.RemoveNetwork(ssid); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": true})
}

func (a *api) handleGetHotspotConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.wifi.GetHotspotConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := map[string]interface{}{
		"ssid":     a.wifi.GetMobileHotspotSSID(r.Context()),
		"override": cfg != nil,
	}
	if cfg != nil {
		resp["updatedAt"] = cfg.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type hotspotConfigRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (a *api) handleSetHotspotConfig(w http.ResponseWriter, r *http.Request) {
	var req hotspotConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := a.wifi.SetHotspotConfig(r.Context(), req.SSID, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ssid":      cfg.SSID,
		"updatedAt": cfg.UpdatedAt,
	})
}

func (a *api) handleAttemptHotspot(w http.ResponseWriter, r *http.Request) {
	// The attempt can take the better part of a minute; run it in the
	// background and let the websocket feed report progress.
	go func() {
		if err := a.wifi.AttemptMobileHotspotConnection(context.Background()); err != nil {
			log.Printf("Hotspot connection attempt failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"started": true})
}

func (a *api) handleScreenDisplayed(w http.ResponseWriter, r *http.Request) {
	a.wifi.NotifyConnectedScreenDisplayed()
	writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true})
}

func connectStatus(err error) int {
	switch {
	case errors.Is(err, wifi.ErrAuthFailed):
		return http.StatusUnauthorized
	case wifi.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
