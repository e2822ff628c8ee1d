package main

import (
	"github.com/timbre-app/timbre/internal/push"
	"github.com/timbre-app/timbre/internal/signal"
	"github.com/timbre-app/timbre/pkg/protocol"
	"github.com/timbre-app/timbre/pkg/service"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.Provide(
			push.NewConfig,
			push.NewWebpushSender,
			push.NewService,
			signal.NewService,

			protocol.AsHttpController(signal.NewSignalController),
			protocol.AsHttpController(push.NewPushController),
		),

		service.LoggerModule,
		service.HttpModule,
	).Run()
}
