package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vtlabs/tallysync/modules/tally"
	"github.com/vtlabs/tallysync/pkg/application"
	"github.com/vtlabs/tallysync/pkg/configuration"
	"github.com/vtlabs/tallysync/pkg/eventbus"
	"github.com/vtlabs/tallysync/pkg/metrics"
	"github.com/vtlabs/tallysync/pkg/middleware"
	"github.com/vtlabs/tallysync/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := application.Load(app, tally.NewModule()); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	app.RegisterMiddleware(
		middleware.ProvidePool(pool),
		middleware.WithLogger(logger),
	)
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance := server.NewHTTPServer(app)
	logger.Infof("listening on: %s", conf.SocketAddress)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
