package main

import (
	"fmt"
	"log"

	tripservice "trip-hail-system/cmd/trip-service"
	"trip-hail-system/internal/common/auth"
	"trip-hail-system/internal/common/config"
	"trip-hail-system/internal/common/db"
	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/rmq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.Print()

	auth.SetSecret(cfg.JWT.Secret)

	pg, err := db.NewPostgres(
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pg.Close()

	if err := pg.RunMigrations("migrations"); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	rmqURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	mq, err := rmq.NewClient(rmqURL)
	if err != nil {
		logger.Warn("rmq_unavailable", "starting without broker, event fan-out disabled", "", "", err.Error())
		mq = nil
	} else {
		defer mq.Close()
	}

	if err := tripservice.Run(cfg, pg.Pool, mq); err != nil {
		log.Fatalf("trip service error: %v", err)
	}
}
