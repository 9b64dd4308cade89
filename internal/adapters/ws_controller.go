package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"callbridge/internal/app"
	"callbridge/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SignalController terminates websocket connections and dispatches
// their command frames at the coordinator.
type SignalController struct {
	Reg   *app.Registry
	Coord *app.Coordinator
	Limit *ConnRateLimiter
}

func NewSignalController(reg *app.Registry, coord *app.Coordinator, limit *ConnRateLimiter) *SignalController {
	return &SignalController{Reg: reg, Coord: coord, Limit: limit}
}

// HandleLive upgrades the request and runs the connection until the
// client goes away.
func (ctl *SignalController) HandleLive(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	id := domain.ConnID(uuid.NewString())
	conn := newWSConn(ws)

	ctl.Reg.Bind(id, conn)
	ctl.Coord.Connected(id)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, id, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}

func (ctl *SignalController) writePump(ctx context.Context, id domain.ConnID, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("conn", string(id)).Msg("connection closing")
		ctl.Reg.Unbind(id)
		ctl.Coord.Disconnected(id)
		ctl.Limit.Forget(id)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			if !ctl.Limit.Allow(id) {
				log.Warn().Str("module", "adapters.ws").Str("conn", string(id)).Msg("rate limit exceeded, frame dropped")
				continue
			}
			ctl.handleFrame(ctx, id, c, data)
		}
	}
}

func (ctl *SignalController) handleFrame(ctx context.Context, id domain.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(id, c, env.Data)
	case "isOnline":
		ctl.handleIsOnline(id, c, env.Data)
	case "initiateCall":
		ctl.handleInitiateCall(ctx, id, c, env.Data)
	case "answerCall":
		ctl.handleAnswerCall(ctx, id, c)
	case "endCall":
		ctl.handleEndCall(ctx, id, c)
	case "callMessage":
		ctl.Coord.RelayMessage(id, env.Data)
	default:
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown command")
	}
}

func (ctl *SignalController) sendAck(c *wsConn, cmd string, ack domain.Ack) {
	if ack.IsVoid() {
		return
	}
	b, err := json.Marshal(ackFrame{Type: "ack", Cmd: cmd, Data: ack})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("sendAck marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalController) handleJoin(id domain.ConnID, c *wsConn, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		log.Warn().Str("module", "adapters.ws").Str("conn", string(id)).Msg("bad join payload")
		return
	}
	if len(userID) > domain.MaxUserIDLen {
		userID = userID[:domain.MaxUserIDLen]
	}
	sess, ok := ctl.Reg.SetUser(id, userID)
	if !ok {
		return
	}
	ctl.Coord.Join(sess, c)
}

func (ctl *SignalController) handleIsOnline(id domain.ConnID, c *wsConn, data json.RawMessage) {
	var userIDs []string
	if err := json.Unmarshal(data, &userIDs); err != nil {
		log.Warn().Str("module", "adapters.ws").Str("conn", string(id)).Msg("bad isOnline payload")
		return
	}
	ctl.Coord.WatchOnline(id, userIDs, c)
}

func (ctl *SignalController) handleInitiateCall(ctx context.Context, id domain.ConnID, c *wsConn, data json.RawMessage) {
	var targetUserID string
	if err := json.Unmarshal(data, &targetUserID); err != nil || targetUserID == "" {
		log.Warn().Str("module", "adapters.ws").Str("conn", string(id)).Msg("bad initiateCall payload")
		return
	}
	ack, err := ctl.Coord.InitiateCall(ctx, id, targetUserID)
	if err != nil {
		return
	}
	ctl.sendAck(c, "initiateCall", ack)
}

func (ctl *SignalController) handleAnswerCall(ctx context.Context, id domain.ConnID, c *wsConn) {
	ack, err := ctl.Coord.AnswerCall(ctx, id)
	if err != nil {
		return
	}
	ctl.sendAck(c, "answerCall", ack)
}

func (ctl *SignalController) handleEndCall(ctx context.Context, id domain.ConnID, c *wsConn) {
	ack, err := ctl.Coord.EndCall(ctx, id)
	if err != nil {
		return
	}
	ctl.sendAck(c, "endCall", ack)
}
