package utils

import (
	"fmt"

	"auction-marketplace/internal/config"
	"auction-marketplace/internal/domain"
	natsevents "auction-marketplace/internal/infrastructure/nats"
	redisevents "auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// InitializeEvents builds the change transport named by relay.transport. The returned
// close func releases whatever connection the transport opened.
func InitializeEvents(cfg *config.Config, rdb *redis.Client, log logger.Logger) (domain.EventPublisher, domain.EventSubscriber, func(), error) {
	switch cfg.Relay.Transport {
	case config.TransportRedis:
		return redisevents.NewEventPublisher(rdb, cfg.Relay.Channel),
			redisevents.NewRedisEventSubscriber(rdb, cfg.Relay.Channel, log),
			func() {},
			nil

	case config.TransportNATS:
		conn, err := natsevents.Connect(cfg.NATS.URL, log)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := conn.Drain(); err != nil {
				log.Error("Failed to drain NATS connection", "error", err)
			}
		}
		return natsevents.NewEventPublisher(conn, cfg.Relay.SubjectPrefix),
			natsevents.NewEventSubscriber(conn, cfg.Relay.SubjectPrefix, log),
			closeFn,
			nil
	}
	return nil, nil, nil, fmt.Errorf("unknown relay transport %q", cfg.Relay.Transport)
}
