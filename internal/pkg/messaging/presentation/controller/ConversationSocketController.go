package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	"github.com/paulostering/burpp25-sub000/internal/infrastructure/realtime"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/session"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/middleware"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// ConversationSocketController handles the websocket endpoint over which a
// viewer opens conversations. One conversation session exists per socket at
// a time; opening another conversation tears the previous session (and its
// channel subscription) down first.
type ConversationSocketController struct {
	repo            repository.MessageRepository
	broker          pubsubport.Broker
	queue           qport.Client
	inflightTimeout time.Duration
}

func NewConversationSocketController(repo repository.MessageRepository, broker pubsubport.Broker, queue qport.Client) *ConversationSocketController {
	return &ConversationSocketController{
		repo:            repo,
		broker:          broker,
		queue:           queue,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The auth proxy in front of this service is the origin gate.
		return true
	},
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Body           string `json:"body,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type snapshotFrame struct {
	Type           string              `json:"type"`
	State          string              `json:"state"`
	Loading        bool                `json:"loading"`
	ConversationID string              `json:"conversation_id"`
	OtherParty     messaging.Profile   `json:"other_party"`
	Messages       []messaging.Message `json:"messages"`
}

type sentFrame struct {
	Type    string            `json:"type"`
	Message messaging.Message `json:"message"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades the connection and processes frames until the client
// disconnects. Whatever the exit path, the open session is closed on the way
// out, which is what guarantees the channel subscription is released.
func (ctl *ConversationSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewerID, ok := middleware.ViewerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(viewerID, ws)
		conn.Start()

		var current *session.Session
		defer func() {
			if current != nil {
				current.Close()
			}
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		if payload, err := json.Marshal(ackFrame{Type: "connected"}); err == nil {
			_ = conn.Send(payload)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "open":
				current = ctl.handleOpen(c, conn, viewerID, current, frame)
			case "send":
				ctl.handleSend(c, conn, current, frame)
			case "close":
				if current != nil {
					current.Close()
					current = nil
				}
				if payload, err := json.Marshal(ackFrame{Type: "closed"}); err == nil {
					_ = conn.Send(payload)
				}
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

// handleOpen switches the socket to a new conversation. The previous
// session is always closed before the new one subscribes, so a stale
// channel can never feed the new view.
func (ctl *ConversationSocketController) handleOpen(c *gin.Context, conn *realtime.Connection, viewerID string, previous *session.Session, frame inboundFrame) *session.Session {
	if frame.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return previous
	}
	if previous != nil {
		previous.Close()
	}

	sess := session.New(session.Config{
		ViewerID: viewerID,
		Repo:     ctl.repo,
		Broker:   ctl.broker,
		Queue:    ctl.queue,
		OnChange: func(snap session.Snapshot) {
			ctl.pushSnapshot(conn, snap)
		},
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if err := sess.Open(ctx, frame.ConversationID); err != nil {
		sess.Close()
		switch {
		case errors.Is(err, messaging.ErrNotFound), errors.Is(err, messaging.ErrNotParticipant):
			ctl.replyError(conn, "not_found", "conversation not found")
		default:
			ctl.replyError(conn, "internal_error", "failed to open conversation")
		}
		return nil
	}
	return sess
}

func (ctl *ConversationSocketController) handleSend(c *gin.Context, conn *realtime.Connection, current *session.Session, frame inboundFrame) {
	if current == nil {
		ctl.replyError(conn, "no_conversation", "open a conversation first")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := current.Send(ctx, frame.Body)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrEmptyMessage):
			ctl.replyError(conn, "bad_request", "message body is empty")
		case errors.Is(err, session.ErrSendInFlight):
			ctl.replyError(conn, "send_in_flight", "a send is already in flight")
		case errors.Is(err, usecase.ErrPersistence):
			ctl.replyError(conn, "send_failed", "failed to send message")
		default:
			ctl.replyError(conn, "bad_request", err.Error())
		}
		return
	}

	if payload, err := json.Marshal(sentFrame{Type: "sent", Message: msg}); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ConversationSocketController) pushSnapshot(conn *realtime.Connection, snap session.Snapshot) {
	msgs := snap.Messages
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	frame := snapshotFrame{
		Type:           "snapshot",
		State:          snap.State.String(),
		Loading:        snap.Loading,
		ConversationID: snap.ConversationID,
		OtherParty:     snap.OtherParty,
		Messages:       msgs,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ConversationSocketController) replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{Type: "error", Code: code, Error: message}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
