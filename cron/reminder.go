package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"handyhub/config"
	"handyhub/models"
	"handyhub/services/notification"

	"github.com/hibiken/asynq"
)

const TypeBookingReminder = "booking:reminder"

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderDB,
	}
}

// InitReminderWorker runs the async reminder worker in the background.
func InitReminderWorker(push notification.Pusher) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingReminder, handleReminderTask(push))

	go func() {
		log.Println("[ReminderWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ReminderWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ReminderWorker] max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

// EnqueueReminder schedules a reminder push shortly before the booking's slot.
func EnqueueReminder(payload models.ReminderPayload, fireAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder payload: %w", err)
	}

	client := asynq.NewClient(redisOpts())
	defer client.Close()

	task := asynq.NewTask(TypeBookingReminder, data)
	if _, err := client.Enqueue(task, asynq.ProcessAt(fireAt)); err != nil {
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	return nil
}

// Scheduler adapts the asynq queue to the booking service's reminder port.
type Scheduler struct{}

func (Scheduler) Schedule(payload models.ReminderPayload, fireAt time.Time) error {
	return EnqueueReminder(payload, fireAt)
}

func handleReminderTask(push notification.Pusher) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ReminderHandler] invalid payload: %v", err)
			return err
		}

		data := map[string]string{
			"booking_id": p.BookingID,
			"type":       "booking_reminder",
		}
		body := fmt.Sprintf("Your %s booking is coming up on %s at %s.", p.Service, p.Date, p.Time)

		if err := push.SendToUser(ctx, p.CustomerID, "Upcoming booking", body, data); err != nil {
			log.Printf("[ReminderHandler] customer push failed: %v", err)
		}
		if p.WorkerID != "" {
			if err := push.SendToUser(ctx, p.WorkerID, "Upcoming job", body, data); err != nil {
				log.Printf("[ReminderHandler] worker push failed: %v", err)
			}
		}
		return nil
	}
}
