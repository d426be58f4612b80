package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/command"
	"github.com/tinyland-inc/homeclaw/pkg/dispatch"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// webhookPayload is the generic update shape accepted on the webhook
// route for platforms without an SDK-provided parser. It mirrors the
// Telegram update layout.
type webhookPayload struct {
	Message struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		Chat      struct {
			ID json.Number `json:"id"`
		} `json:"chat"`
		From struct {
			ID       json.Number `json:"id"`
			Username string      `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

// handleWebhook ingests one platform update. Channels that parse and
// verify their own webhook format (LINE) are mounted by name; everything
// else goes through the generic payload. The response is always an ack:
// processing outcomes travel back over the chat channel, and a non-2xx
// here would only make the platform redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(chi.URLParam(r, "platform"))

	if h, ok := s.manager.WebhookHandlers()[platform]; ok {
		h.ServeHTTP(w, r)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnCF("api", "Unparseable webhook payload", map[string]any{
			"platform": platform,
			"error":    err.Error(),
		})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if payload.Message.Text != "" && payload.Message.Chat.ID.String() != "" {
		senderID := payload.Message.From.ID.String()
		if payload.Message.From.Username != "" {
			senderID += "|" + payload.Message.From.Username
		}
		msg := bus.InboundMessage{
			Channel:   platform,
			SenderID:  senderID,
			ChatID:    payload.Message.Chat.ID.String(),
			Content:   payload.Message.Text,
			MessageID: uuid.New().String(),
		}
		if err := s.bus.PublishInbound(r.Context(), msg); err != nil {
			logger.WarnCF("api", "Webhook message not queued", map[string]any{
				"platform": platform,
				"error":    err.Error(),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSendMsg(w http.ResponseWriter, r *http.Request) {
	platform := param(r, "platform")
	chatID := param(r, "chat_id")
	text := param(r, "text")

	if token := param(r, "bot_token"); token != "" && token != s.credentialFor(platform) {
		writeResponse(w, dispatch.Response{
			Class:   dispatch.ClassValidationError,
			Message: "bot_token does not match the configured credential",
		})
		return
	}

	writeResponse(w, s.engine.SendDirect(r.Context(), platform, chatID, text))
}

// handleSendGroupMsg delivers one message to one group chat id. To reach
// every recipient bound to a device, use /sendAllMsg?device_id=... instead.
func (s *Server) handleSendGroupMsg(w http.ResponseWriter, r *http.Request) {
	platform := param(r, "platform")
	groupID := param(r, "group_id")
	text := param(r, "text")
	writeResponse(w, s.engine.SendDirect(r.Context(), platform, groupID, text))
}

// handleSendAllMsg broadcasts to every bound recipient, or to a single
// device's recipients when device_id is given.
func (s *Server) handleSendAllMsg(w http.ResponseWriter, r *http.Request) {
	text := param(r, "text")
	if deviceID := param(r, "device_id"); deviceID != "" {
		writeResponse(w, s.engine.BroadcastDevice(r.Context(), deviceID, text))
		return
	}
	writeResponse(w, s.engine.BroadcastAll(r.Context(), text))
}

// handleControl runs a device action without a chat context; no binding
// is recorded for API-originated commands.
func (s *Server) handleControl(action command.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := param(r, "device_id")
		if deviceID == "" {
			writeResponse(w, dispatch.Response{
				Class:   dispatch.ClassValidationError,
				Message: "device_id is required",
			})
			return
		}
		writeResponse(w, s.engine.Control(r.Context(), action, deviceID, "", ""))
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.registry.List()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 503 until at least one platform channel is running.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	running := []string{}
	for _, name := range s.manager.Enabled() {
		if ch, ok := s.manager.GetChannel(name); ok && ch.IsRunning() {
			running = append(running, name)
		}
	}
	status := http.StatusOK
	if len(running) == 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"channels": running})
}

// credentialFor maps a platform name to its configured send credential.
func (s *Server) credentialFor(platform string) string {
	switch strings.ToLower(platform) {
	case "telegram":
		return s.cfg.Channels.Telegram.Token
	case "line":
		return s.cfg.Channels.LINE.ChannelAccessToken
	case "discord":
		return s.cfg.Channels.Discord.Token
	case "slack":
		return s.cfg.Channels.Slack.BotToken
	}
	return ""
}

// param reads a value from the query string or, for form posts, the body.
func param(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.Method == http.MethodPost {
		return r.PostFormValue(name)
	}
	return ""
}

func writeResponse(w http.ResponseWriter, resp dispatch.Response) {
	writeJSON(w, resp.HTTPStatus(), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnCF("api", "Response encoding failed", map[string]any{"error": err.Error()})
	}
}
