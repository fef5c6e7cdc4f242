package trip_service

import (
	"context"
	"fmt"
	"net/http"

	"trip-hail-system/internal/common/config"
	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/gateway"
	"trip-hail-system/internal/trip/handler"
	"trip-hail-system/internal/trip/notify"
	"trip-hail-system/internal/trip/repository"
	"trip-hail-system/internal/trip/rmq"
	"trip-hail-system/internal/trip/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run assembles the trip service and serves HTTP. mq may be nil when the
// broker is down; the service then runs without broker fan-out and without
// expiry signals, which only degrades matching cleanup.
func Run(cfg *config.Config, pool *pgxpool.Pool, mq *rmq.Client) error {
	logger.SetServiceName("trip-service")

	repo := repository.NewTripRepository(pool)
	users := gateway.NewUserDirectoryClient(cfg.Gateways.UserDirectoryURL, cfg.Gateways.Timeout)
	drivers := gateway.NewDriverMatcherClient(cfg.Gateways.DriverMatcherURL, cfg.Gateways.Timeout)
	bus := notify.NewBus()

	var events service.EventPublisher
	if mq != nil {
		events = mq
	}

	svc := service.NewTripService(repo, users, drivers, bus, events)

	if mq != nil {
		err := mq.ConsumeExpirySignals("trip_service.expiry", func(msg rmq.ExpiryMessage) {
			ctx := context.Background()
			switch msg.Kind {
			case rmq.ExpiryKindSearch:
				if err := svc.ExpireSearch(ctx, msg.TripID); err != nil {
					logger.Warn("expire_search_failed", "search expiry signal not applied", "", msg.TripID, err.Error())
				}
			default:
				if err := svc.ExpireAssignments(ctx, msg.TripID); err != nil {
					logger.Warn("expire_assignments_failed", "assignment expiry signal not applied", "", msg.TripID, err.Error())
				}
			}
		})
		if err != nil {
			logger.Warn("consume_expiry_failed", "expiry signals unavailable", "", "", err.Error())
		}
	}

	h := handler.NewTripHandler(svc, pool)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux, h, bus)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	logger.Info("http_listen", fmt.Sprintf("Trip Service listening on %s", addr), "", "")
	return http.ListenAndServe(addr, mux)
}
