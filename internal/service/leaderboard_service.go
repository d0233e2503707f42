package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/models"
	"github.com/noah-isme/hackathon-judge/internal/observability"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

const (
	leaderboardKeyJSON       = "judge:leaderboard:json"
	leaderboardKeyText       = "judge:leaderboard:text"
	leaderboardKeySummary    = "judge:leaderboard:summary"
	leaderboardKeyGeneration = "judge:leaderboard:generation"
)

// LeaderboardService ranks stored evaluations. Rendered boards are cached in
// Redis under the current cache generation; appending an evaluation bumps the
// generation, so a board rendered from an older listing is never served.
type LeaderboardService interface {
	Leaderboard(ctx context.Context) (dto.LeaderboardResponse, error)
	Text(ctx context.Context) (string, error)
	Summary(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

type leaderboardService struct {
	repo     repository.EvaluationRepository
	cache    *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewLeaderboardService constructs the service. cache may be nil.
func NewLeaderboardService(repo repository.EvaluationRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &leaderboardService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		now:      time.Now,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
	}
}

func (s *leaderboardService) Leaderboard(ctx context.Context) (dto.LeaderboardResponse, error) {
	var response dto.LeaderboardResponse
	key, cacheable := s.cacheKey(ctx, leaderboardKeyJSON)
	if cached, ok := s.cached(ctx, key, cacheable); ok {
		if err := json.Unmarshal([]byte(cached), &response); err == nil {
			return response, nil
		}
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	response = dto.NewLeaderboardResponse(items)
	if payload, err := json.Marshal(response); err == nil {
		s.store(ctx, key, cacheable, string(payload))
	}
	return response, nil
}

func (s *leaderboardService) Text(ctx context.Context) (string, error) {
	return s.render(ctx, leaderboardKeyText, report.Leaderboard)
}

func (s *leaderboardService) Summary(ctx context.Context) (string, error) {
	return s.render(ctx, leaderboardKeySummary, func(results []scoring.Result) string {
		return report.Summary(results, s.now().UTC())
	})
}

func (s *leaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, leaderboardKeyGeneration).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *leaderboardService) render(ctx context.Context, base string, fn func([]scoring.Result) string) (string, error) {
	key, cacheable := s.cacheKey(ctx, base)
	if cached, ok := s.cached(ctx, key, cacheable); ok {
		return cached, nil
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return "", err
	}

	out := fn(resultsOf(items))
	s.store(ctx, key, cacheable, out)
	return out, nil
}

// cacheKey suffixes base with the generation read before the repository is
// listed. It reports false when the cache is unusable.
func (s *leaderboardService) cacheKey(ctx context.Context, base string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	generation, err := s.cache.Get(ctx, leaderboardKeyGeneration).Result()
	switch {
	case errors.Is(err, redis.Nil):
		generation = "0"
	case err != nil:
		s.logger.Warn().Err(err).Msg("failed to read leaderboard cache generation")
		return "", false
	}
	return base + ":" + generation, true
}

func (s *leaderboardService) cached(ctx context.Context, key string, cacheable bool) (string, bool) {
	if !cacheable {
		return "", false
	}

	value, err := s.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		observability.LeaderboardCache().WithLabelValues("hit").Inc()
		return value, true
	case errors.Is(err, redis.Nil):
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
	default:
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read leaderboard cache")
	}
	return "", false
}

func (s *leaderboardService) store(ctx context.Context, key string, cacheable bool, value string) {
	if !cacheable {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store leaderboard cache")
	}
}

func resultsOf(items []models.Evaluation) []scoring.Result {
	results := make([]scoring.Result, 0, len(items))
	for _, item := range items {
		results = append(results, item.Result())
	}
	return results
}
