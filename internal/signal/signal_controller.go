package signal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/timbre-app/timbre/internal/push"
	"github.com/timbre-app/timbre/pkg/protocol"
	"github.com/timbre-app/timbre/pkg/wsutils"
	"go.uber.org/fx"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Enough for WebRTC SDP payloads.
	maxMessageSize = 64 * 1024
)

type signalController struct {
	logger   *slog.Logger
	signals  *Service
	notifier *push.Service
	upgrader websocket.Upgrader
}

func (ctrl *signalController) SignalControllerSocket(ctx echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(ctx.Response().Writer, ctx.Request(), nil)
	if err != nil {
		ctrl.logger.Error(fmt.Sprintf("Unable upgrade request %+v", ctx.Request()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	sess := ctrl.signals.Connect(w)
	defer ctrl.signals.Disconnect(sess)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go ctrl.keepAlive(w, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				ctrl.logger.Debug("socket read failed", slog.String("err", err.Error()))
			}
			return nil
		}

		env, err := ParseEnvelope(raw)
		if err != nil {
			// malformed body, drop it and keep the connection
			continue
		}

		switch env.Kind {
		case KindJoin:
			ctrl.signals.Join(sess, env.Room, env.Role)

		case KindOffer:
			// The offer starts a call: wake the owner's device through the
			// push provider without gating the forward on its outcome.
			if roomID := ctrl.signals.RoomOf(sess); roomID != "" {
				go ctrl.notifier.Notify(context.Background(), roomID)
			}
			ctrl.signals.Relay(sess, env)

		case KindRing, KindAnswer, KindCandidate, KindHangup:
			ctrl.signals.Relay(sess, env)

		default:
			// unrecognized kinds are discarded without an error envelope
		}
	}
}

func (ctrl *signalController) keepAlive(w *wsutils.ThreadSafeWriter, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := w.Ping(); err != nil {
				return
			}
		}
	}
}

type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

func (ctrl *signalController) SignalControllerRoomList(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, RoomListResponse{
		Rooms: ctrl.signals.Rooms(),
	})
}

func (ctrl *signalController) Resolve(router protocol.HttpRouter) error {
	router.GET("/ws", ctrl.SignalControllerSocket)
	router.GET("/api/rooms", ctrl.SignalControllerRoomList)
	return nil
}

var _ protocol.HttpResolvable = (*signalController)(nil)

type newSignalController_Params struct {
	fx.In

	Logger  *slog.Logger
	Signals *Service
	Push    *push.Service
}

func NewSignalController(params newSignalController_Params) *signalController {
	return &signalController{
		logger:   params.Logger,
		signals:  params.Signals,
		notifier: params.Push,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
