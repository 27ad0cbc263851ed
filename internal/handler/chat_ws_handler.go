package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"therapist-bot-be/internal/dto"
	"therapist-bot-be/internal/pkg/logger"
	"therapist-bot-be/internal/service"
	internalWS "therapist-bot-be/internal/websocket"
	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const defaultFrameConfidence = 0.5

// ChatWsHandler speaks the chat websocket protocol: init, emotion,
// video_scores, message and voice_message frames in; session,
// emotion_state, emotion_summary, response, voice_response and error
// frames out.
type ChatWsHandler struct {
	sessions service.ISessionService
	emotions service.IEmotionService
	chat     service.IChatService
	voice    service.IVoiceService
	hub      *internalWS.Hub
	logger   logger.ILogger
}

func NewChatWsHandler(
	sessions service.ISessionService,
	emotions service.IEmotionService,
	chat service.IChatService,
	voice service.IVoiceService,
	hub *internalWS.Hub,
	log logger.ILogger,
) *ChatWsHandler {
	h := &ChatWsHandler{
		sessions: sessions,
		emotions: emotions,
		chat:     chat,
		voice:    voice,
		hub:      hub,
		logger:   log,
	}
	hub.OnSessionEmpty(h.endSession)
	return h
}

// endSession destroys a session once its last connection is gone.
func (h *ChatWsHandler) endSession(sessionID string) {
	if err := h.sessions.End(context.Background(), sessionID); err != nil {
		h.logger.Debug("ChatWsHandler", "Session already ended", map[string]interface{}{"session_id": sessionID})
		return
	}
	h.logger.Info("ChatWsHandler", "Session ended on disconnect", map[string]interface{}{"session_id": sessionID})
}

func (h *ChatWsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/chat", h.ServeWs)
}

func (h *ChatWsHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatWsHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn, h)
		h.logger.Info("ChatWsHandler", "WebSocket session ended", map[string]interface{}{"remote": conn.RemoteAddr().String()})
	})(c)
}

// HandleFrame implements internalWS.FrameHandler.
func (h *ChatWsHandler) HandleFrame(ctx context.Context, c *internalWS.Client, data []byte) {
	var frame dto.WsInbound
	if err := json.Unmarshal(data, &frame); err != nil {
		h.sendError(c, "invalid frame: "+err.Error())
		return
	}
	if frame.Type == "" {
		frame.Type = dto.WsTypeMessage
	}

	switch frame.Type {
	case dto.WsTypeInit:
		h.handleInit(ctx, c, frame)
	case dto.WsTypeEmotion:
		h.handleEmotion(ctx, c, frame)
	case dto.WsTypeVideoScores:
		h.handleVideoScores(ctx, c, frame)
	case dto.WsTypeMessage:
		h.handleMessage(ctx, c, frame)
	case dto.WsTypeVoice:
		h.handleVoice(ctx, c, frame)
	default:
		h.sendError(c, "unknown frame type: "+frame.Type)
	}
}

// session resolves the client's session, creating and binding one when the
// client skipped init.
func (h *ChatWsHandler) session(ctx context.Context, c *internalWS.Client, requested string) *store.Session {
	id := c.SessionID()
	if id == "" {
		id = requested
	}
	session, created := h.sessions.GetOrCreate(ctx, id)
	if session.ID != c.SessionID() {
		c.Bind(session.ID)
	}
	if created || id != session.ID {
		_ = c.SendJSON(dto.WsSessionFrame{Type: dto.WsTypeSession, SessionID: session.ID})
	}
	return session
}

func (h *ChatWsHandler) handleInit(ctx context.Context, c *internalWS.Client, frame dto.WsInbound) {
	session, _ := h.sessions.GetOrCreate(ctx, frame.SessionID)
	c.Bind(session.ID)

	_ = c.SendJSON(dto.WsSessionFrame{Type: dto.WsTypeSession, SessionID: session.ID})
	_ = c.SendJSON(dto.WsEmotionFrame{Type: dto.WsTypeEmotionState, Emotions: session.Engine.CurrentState()})
}

func (h *ChatWsHandler) handleEmotion(ctx context.Context, c *internalWS.Client, frame dto.WsInbound) {
	session := h.session(ctx, c, frame.SessionID)

	confidence := defaultFrameConfidence
	if frame.Confidence != nil {
		confidence = *frame.Confidence
	}

	var err error
	if strings.EqualFold(frame.Modality, emotion.Audio.String()) {
		_, err = h.emotions.RecordAudio(ctx, session, frame.Emotion, confidence, frame.Scores)
	} else {
		_, err = h.emotions.RecordVideo(ctx, session, frame.Emotion, confidence)
	}
	if err != nil {
		h.sendError(c, err.Error())
	}
}

func (h *ChatWsHandler) handleVideoScores(ctx context.Context, c *internalWS.Client, frame dto.WsInbound) {
	session := h.session(ctx, c, frame.SessionID)
	if _, err := h.emotions.RecordVideoScores(ctx, session, frame.Scores); err != nil {
		h.sendError(c, err.Error())
	}
}

func (h *ChatWsHandler) handleMessage(ctx context.Context, c *internalWS.Client, frame dto.WsInbound) {
	if strings.TrimSpace(frame.Content) == "" {
		h.sendError(c, "message content is empty")
		return
	}
	session := h.session(ctx, c, frame.SessionID)

	in := service.ChatInput{
		Content:      frame.Content,
		AudioEmotion: frame.AudioEmotion,
		VideoEmotion: frame.VideoEmotion,
		TaggedText:   frame.TaggedText,
	}

	// The turn runs off the read loop so pings and emotion frames keep flowing.
	ok := c.Enqueue(func() {
		_, err := h.chat.ChatStream(ctx, session, in,
			func(state emotion.FusedState) error {
				return c.SendJSON(dto.WsEmotionFrame{Type: dto.WsTypeEmotionSummary, Emotions: state})
			},
			func(token string) error {
				return c.SendJSON(dto.WsResponseFrame{Type: dto.WsTypeResponse, Content: token})
			},
		)
		if err != nil {
			if ctx.Err() == nil {
				h.sendError(c, err.Error())
			}
			return
		}
		_ = c.SendJSON(dto.WsResponseFrame{Type: dto.WsTypeResponse, Content: "", Done: true})
	})
	if !ok {
		h.sendError(c, "too many pending messages, wait for the current reply")
	}
}

func (h *ChatWsHandler) handleVoice(ctx context.Context, c *internalWS.Client, frame dto.WsInbound) {
	if frame.Audio == "" {
		h.sendError(c, "no audio data")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		h.sendError(c, "audio is not valid base64")
		return
	}

	requested := c.SessionID()
	if requested == "" {
		requested = frame.SessionID
	}

	ok := c.Enqueue(func() {
		res, err := h.voice.Run(ctx, requested, frame.Filename, bytes.NewReader(audio))
		if err != nil {
			if ctx.Err() == nil {
				h.sendError(c, err.Error())
			}
			return
		}
		if res.SessionID != c.SessionID() {
			c.Bind(res.SessionID)
			_ = c.SendJSON(dto.WsSessionFrame{Type: dto.WsTypeSession, SessionID: res.SessionID})
		}
		_ = c.SendJSON(dto.WsVoiceResponseFrame{
			Type:              dto.WsTypeVoiceResponse,
			VoiceChatResponse: res.Response(),
			Done:              true,
		})
	})
	if !ok {
		h.sendError(c, "too many pending messages, wait for the current reply")
	}
}

func (h *ChatWsHandler) sendError(c *internalWS.Client, message string) {
	if err := c.SendJSON(dto.WsErrorFrame{Type: dto.WsTypeError, Message: message}); err != nil {
		h.logger.Debug("ChatWsHandler", "Could not deliver error frame", map[string]interface{}{"session_id": c.SessionID(), "message": message})
	}
}
