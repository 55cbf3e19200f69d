// cmd/worker/main.go
package main

import (
	"encoding/json"
	"log"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/channel"
	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// ChannelEvent is the payload channel webhooks publish when they see a
// reply or connection acceptance before our polling loop does.
type ChannelEvent struct {
	LeadID   int    `json:"lead_id"`
	Accepted bool   `json:"accepted"`
	Replied  bool   `json:"replied"`
	Detail   string `json:"detail,omitempty"`
}

func main() {
	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer logger.Sync()

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	leadRepo := &repository.LeadRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	reconciler := &service.LeadReconciler{
		LeadRepo: leadRepo,
		Logger:   logger.Named("reconciler"),
	}
	stateMachine := &service.CampaignStateMachine{
		CampaignRepo: campaignRepo,
		LeadRepo:     leadRepo,
		CursorRepo:   &repository.CursorRepository{DB: conn},
		PollInterval: cfg.PollInterval,
		Logger:       logger.Named("statemachine"),
	}

	mq, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mq.Close()

	ch, err := mq.Channel()
	if err != nil {
		logger.Fatal("failed to open a channel", zap.Error(err))
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"channel_events", // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		logger.Fatal("failed to declare queue", zap.Error(err))
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Fatal("failed to register consumer", zap.Error(err))
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var event ChannelEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				logger.Warn("invalid event payload", zap.Error(err))
				d.Ack(false)
				continue
			}

			if err := processEvent(event, reconciler, stateMachine, leadRepo); err != nil {
				logger.Warn("event processing failed",
					zap.Int("lead_id", event.LeadID), zap.Error(err))
				var retryCount int32
				if d.Headers["x-retry-count"] != nil {
					retryCount, _ = d.Headers["x-retry-count"].(int32)
				}
				if retryCount < 3 {
					d.Nack(false, true) // requeue
					continue
				}
			}

			d.Ack(false)
		}
	}()

	logger.Info("worker running, waiting for channel events")
	<-forever
}

func processEvent(event ChannelEvent, reconciler *service.LeadReconciler, stateMachine *service.CampaignStateMachine, leadRepo repository.LeadRepositoryInterface) error {
	changed, err := reconciler.Apply(event.LeadID, channel.StateSnapshot{
		Accepted: event.Accepted,
		Replied:  event.Replied,
		Detail:   event.Detail,
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	lead, err := leadRepo.GetByID(event.LeadID)
	if err != nil {
		return err
	}
	// A reply may have been the campaign's last outstanding lead.
	if lead.Status.Terminal() {
		if _, err := stateMachine.CompleteIfFinished(lead.CampaignID); err != nil {
			return err
		}
	}
	return nil
}
