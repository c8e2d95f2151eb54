// Package events publishes domain events over NATS JetStream and consumes
// the cross-service users.deleted subject to purge a removed user's data.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Abdirazakf/file-uploader/internal/blob"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

const streamName = "urfiles-events"

// Service wraps a JetStream connection. A nil *Service is a valid no-op
// publisher, so callers never need to branch on whether NATS is configured.
type Service struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Connect dials NATS, initializes JetStream and ensures the event stream.
func Connect(url string) (*Service, error) {
	opts := []nats.Option{
		nats.Name("urfiles"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	s := &Service{nc: nc, js: js}
	if err := s.ensureStream(); err != nil {
		log.Printf("[NATS] warning: failed to ensure stream: %v", err)
	}

	log.Println("[NATS] connected and JetStream initialized")
	return s, nil
}

func (s *Service) ensureStream() error {
	if _, err := s.js.StreamInfo(streamName); err == nil {
		return nil
	}
	_, err := s.js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"files.*", "folders.*", "users.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

// Publish sends an event with a fresh MsgId for idempotent consumers.
// Failures are logged, never surfaced — events are advisory here.
func (s *Service) Publish(subject string, payload any) {
	if s == nil || s.js == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[NATS] marshal failed subject=%s err=%v", subject, err)
		return
	}
	if _, err := s.js.Publish(subject, data, nats.MsgId(uuid.New().String())); err != nil {
		log.Printf("[NATS] publish failed subject=%s err=%v", subject, err)
	}
}

// Close drains the connection.
func (s *Service) Close() {
	if s == nil || s.nc == nil {
		return
	}
	s.nc.Close()
}

type userDeletedPayload struct {
	UserID string `json:"user_id"`
}

// ConsumeUserDeleted subscribes durably to users.deleted and removes the
// user's rows and blobs when an account service announces a deletion.
func (s *Service) ConsumeUserDeleted(store storage.Store, blobs blob.ObjectStore) (*nats.Subscription, error) {
	if s == nil || s.js == nil {
		return nil, nil
	}
	return s.js.Subscribe("users.deleted", func(msg *nats.Msg) {
		var payload userDeletedPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.UserID == "" {
			log.Printf("[NATS] users.deleted: bad payload: %v", err)
			nak(msg)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		folders, fileRows, err := store.DeleteUserData(ctx, payload.UserID)
		if err != nil {
			log.Printf("[NATS] users.deleted: purge rows for %s: %v", payload.UserID, err)
			nak(msg)
			return
		}
		log.Printf("[NATS] purged %d folders and %d files for user %s", folders, fileRows, payload.UserID)

		if blobs != nil {
			if err := blobs.DeleteByPrefix(ctx, payload.UserID+"/"); err != nil {
				log.Printf("[NATS] users.deleted: purge blobs for %s: %v", payload.UserID, err)
				nak(msg)
				return
			}
		}
		ack(msg)
	}, nats.Durable("urfiles-user-deleted"), nats.ManualAck())
}

func ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		log.Printf("[NATS] failed to ack message: %v", err)
	}
}

func nak(msg *nats.Msg) {
	if err := msg.Nak(); err != nil {
		log.Printf("[NATS] failed to nak message: %v", err)
	}
}
