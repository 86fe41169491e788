package generation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/metrics"
	"github.com/draftwise/draftwise/internal/nats"
	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/quota"
	"github.com/draftwise/draftwise/internal/resolver"
	"github.com/draftwise/draftwise/internal/users"
)

// CredentialResolver decides which credential serves a request.
type CredentialResolver interface {
	Resolve(ctx context.Context, user *users.User, requestedModel string) (*resolver.Resolution, error)
}

// QuotaEngine covers the checks and tracking the generation path needs.
type QuotaEngine interface {
	CheckGeneration(ctx context.Context, user *users.User, followup bool) (*quota.CheckResult, error)
	TrackGeneration(ctx context.Context, userID uuid.UUID, followup, usedSharedKey bool) error
	CanCreateActivity(ctx context.Context, user *users.User) (*quota.CheckResult, error)
	TrackActivity(ctx context.Context, user *users.User, followup bool) error
}

// HistoryTrail appends audit events without ever failing the request.
type HistoryTrail interface {
	TryPublish(ctx context.Context, evt *nats.HistoryEvent)
}

// Service orchestrates one generation request: resolve the credential,
// check quota when the pooled path is taken, call the provider, and only
// then count the generation. A failed provider call leaves counters
// untouched but still leaves an unsuccessful history event.
type Service struct {
	resolver  CredentialResolver
	quota     QuotaEngine
	generator providers.Generator
	history   HistoryTrail
}

func NewService(res CredentialResolver, engine QuotaEngine, generator providers.Generator, history HistoryTrail) *Service {
	return &Service{resolver: res, quota: engine, generator: generator, history: history}
}

func (s *Service) Generate(ctx context.Context, user *users.User, req *GenerateRequest) (*GenerateResponse, error) {
	res, err := s.resolver.Resolve(ctx, user, req.Model)
	if err != nil {
		return nil, err
	}

	// Only the pooled path is metered: generation quota controls the cost
	// of platform credentials, not the product.
	if res.IsShared {
		check, err := s.quota.CheckGeneration(ctx, user, req.Followup)
		if err != nil {
			return nil, err
		}
		if !check.Allowed {
			return nil, check.Err(generationCounter(req.Followup))
		}
	}

	content, err := s.generator.Generate(ctx, res.Provider, res.Credential, res.ActualModel, req.Prompt)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(pathLabel(res.IsShared), string(res.Provider), "error").Inc()
		s.history.TryPublish(ctx, &nats.HistoryEvent{
			UserID:        user.ID,
			Kind:          nats.KindGeneration,
			Model:         res.ActualModel,
			Provider:      string(res.Provider),
			UsedSharedKey: res.IsShared,
			Followup:      req.Followup,
			Success:       false,
			Detail:        err.Error(),
		})
		slog.Error("generation failed", "user_id", user.ID, "model", res.ActualModel,
			"shared", res.IsShared, "error", err)
		return nil, err
	}

	if err := s.quota.TrackGeneration(ctx, user.ID, req.Followup, res.IsShared); err != nil {
		// The content was produced; losing one count is better than failing
		// the request after the provider call succeeded.
		slog.Error("tracking generation", "user_id", user.ID, "error", err)
	}

	metrics.GenerationsTotal.WithLabelValues(pathLabel(res.IsShared), string(res.Provider), "success").Inc()
	s.history.TryPublish(ctx, &nats.HistoryEvent{
		UserID:        user.ID,
		Kind:          nats.KindGeneration,
		Model:         res.ActualModel,
		Provider:      string(res.Provider),
		UsedSharedKey: res.IsShared,
		Followup:      req.Followup,
		Success:       true,
	})

	return &GenerateResponse{
		Content:       content,
		Model:         res.ActualModel,
		UsedSharedKey: res.IsShared,
	}, nil
}

// RecordActivity enforces the activity quota and counts the save.
func (s *Service) RecordActivity(ctx context.Context, user *users.User, req *CreateActivityRequest) error {
	check, err := s.quota.CanCreateActivity(ctx, user)
	if err != nil {
		return err
	}
	if !check.Allowed {
		return check.Err("activities")
	}

	if err := s.quota.TrackActivity(ctx, user, req.Followup); err != nil {
		return err
	}

	s.history.TryPublish(ctx, &nats.HistoryEvent{
		UserID:   user.ID,
		Kind:     nats.KindActivity,
		Model:    req.Model,
		Followup: req.Followup,
		Success:  true,
	})
	return nil
}

func generationCounter(followup bool) string {
	if followup {
		return "followup_generations"
	}
	return "generations"
}

func pathLabel(shared bool) string {
	if shared {
		return "shared"
	}
	return "own"
}
