package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ventiahq/ventia-backend/pkg/db/models"
	"github.com/ventiahq/ventia-backend/pkg/enums"
	"github.com/ventiahq/ventia-backend/pkg/logger"
)

// Publisher is the narrow slice of a Pub/Sub topic the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// TopicPublisher adapts a Pub/Sub v2 publisher to the Publisher interface.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

// NewTopicPublisher wraps a Pub/Sub publisher handle.
func NewTopicPublisher(publisher *pubsub.Publisher) *TopicPublisher {
	return &TopicPublisher{publisher: publisher}
}

func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	if p == nil || p.publisher == nil {
		return fmt.Errorf("publisher not configured")
	}
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	_, err := result.Get(ctx)
	return err
}

// Service fans order and stock events out to the workspace. Dispatch is best
// effort: the triggering operation has already committed, so failures are
// logged and swallowed.
type Service interface {
	Dispatch(ctx context.Context, input DispatchInput)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Notification, error)
}

// DispatchInput describes one event to persist and publish.
type DispatchInput struct {
	WorkspaceID uuid.UUID
	Type        enums.NotificationType
	Title       string
	Message     string
	RefType     *enums.ReferenceType
	RefID       *uuid.UUID
	Payload     map[string]any
}

type service struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
}

// NewService wires the dispatcher. The publisher may be nil; events are then
// persisted without being published.
func NewService(repo Repository, publisher Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, publisher: publisher, logg: logg}, nil
}

func (s *service) Dispatch(ctx context.Context, input DispatchInput) {
	if input.WorkspaceID == uuid.Nil || !input.Type.IsValid() {
		s.logg.Warn(ctx, fmt.Sprintf("dropping malformed notification type=%q", input.Type))
		return
	}

	notification := &models.Notification{
		WorkspaceID:   input.WorkspaceID,
		Type:          input.Type,
		Title:         input.Title,
		Message:       input.Message,
		ReferenceType: input.RefType,
		ReferenceID:   input.RefID,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logg.Error(ctx, "persisting notification failed", err)
		return
	}

	if s.publisher == nil {
		return
	}

	envelope := map[string]any{
		"id":           notification.ID,
		"workspace_id": input.WorkspaceID,
		"type":         input.Type,
		"title":        input.Title,
		"message":      input.Message,
		"payload":      input.Payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		s.logg.Error(ctx, "encoding notification event failed", err)
		return
	}

	attrs := map[string]string{
		"type":         string(input.Type),
		"workspace_id": input.WorkspaceID.String(),
	}
	if err := s.publisher.Publish(ctx, data, attrs); err != nil {
		s.logg.Error(ctx, "publishing notification event failed", err)
	}
}

func (s *service) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Notification, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID, limit)
}
