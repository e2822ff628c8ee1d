package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/timbre-app/timbre/pkg/protocol"
	"go.uber.org/fx"
)

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type subscribeRequest struct {
	RoomID       string          `json:"roomId"`
	Subscription json.RawMessage `json:"subscription"`
}

type subscribeResponse struct {
	Ok bool `json:"ok"`
}

type pushController struct {
	logger *slog.Logger
	push   *Service
}

// PushControllerPublicKey hands the application server key to the client.
// An unconfigured deployment answers with an empty key so the page can skip
// push setup without a distinct error path.
func (ctrl *pushController) PushControllerPublicKey(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, publicKeyResponse{
		PublicKey: ctrl.push.PublicKey(),
	})
}

func (ctrl *pushController) PushControllerSubscribe(ctx echo.Context) error {
	var request subscribeRequest
	if err := json.NewDecoder(ctx.Request().Body).Decode(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, subscribeResponse{Ok: false})
	}

	roomID := strings.TrimSpace(request.RoomID)
	if roomID == "" || emptyJSON(request.Subscription) {
		return ctx.JSON(http.StatusBadRequest, subscribeResponse{Ok: false})
	}

	ctrl.push.Subscribe(roomID, request.Subscription)
	return ctx.JSON(http.StatusOK, subscribeResponse{Ok: true})
}

func emptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (ctrl *pushController) Resolve(router protocol.HttpRouter) error {
	router.GET("/api/push/public-key", ctrl.PushControllerPublicKey)
	router.POST("/api/push/subscribe", ctrl.PushControllerSubscribe)
	return nil
}

var _ protocol.HttpResolvable = (*pushController)(nil)

type newPushController_Params struct {
	fx.In

	Logger *slog.Logger
	Push   *Service
}

func NewPushController(params newPushController_Params) *pushController {
	return &pushController{
		logger: params.Logger,
		push:   params.Push,
	}
}
