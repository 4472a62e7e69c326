package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
)

const suggestionCachePrefix = "matching:suggest:"

type candidateLister interface {
	ListCandidatesBySubject(ctx context.Context, subject string) ([]models.TutorCandidate, error)
}

type suggestionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// MatchingOptions tunes ranking.
type MatchingOptions struct {
	Limit         int
	DefaultRating float64
	CacheTTL      time.Duration
}

// MatchingService ranks tutors for a subject by rating.
type MatchingService struct {
	repo   candidateLister
	cache  suggestionCache
	logger *zap.Logger
	opts   MatchingOptions
}

// NewMatchingService constructs a MatchingService. cache may be nil.
func NewMatchingService(repo candidateLister, cache suggestionCache, logger *zap.Logger, opts MatchingOptions) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.DefaultRating <= 0 {
		opts.DefaultRating = 4.5
	}
	return &MatchingService{repo: repo, cache: cache, logger: logger, opts: opts}
}

// SuggestTutors returns up to Limit tutors whose subjects contain the given
// text, best rated first. Blank input yields an empty list.
func (s *MatchingService) SuggestTutors(ctx context.Context, subject string) ([]models.TutorSuggestion, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return []models.TutorSuggestion{}, nil
	}

	key := suggestionCachePrefix + strings.ToLower(subject)
	if s.cache != nil {
		var cached []models.TutorSuggestion
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Debug("tutor suggestion cache unavailable", zap.String("subject", subject), zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	candidates, err := s.repo.ListCandidatesBySubject(ctx, subject)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to search tutors")
	}
	suggestions := rankCandidates(candidates, s.opts.DefaultRating, s.opts.Limit)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, suggestions, s.opts.CacheTTL); err != nil {
			s.logger.Debug("tutor suggestions not cached", zap.String("subject", subject), zap.Error(err))
		}
	}
	s.logger.Debug("tutor suggestions computed", zap.String("subject", subject), zap.Int("count", len(suggestions)))
	return suggestions, nil
}

// rankCandidates orders by rating descending, breaking ties by tutor id, and
// keeps at most limit entries. Unrated tutors get defaultRating.
func rankCandidates(candidates []models.TutorCandidate, defaultRating float64, limit int) []models.TutorSuggestion {
	suggestions := make([]models.TutorSuggestion, 0, len(candidates))
	for _, c := range candidates {
		rating := defaultRating
		if c.AverageRating != nil {
			rating = *c.AverageRating
		}
		suggestions = append(suggestions, models.TutorSuggestion{
			TutorID:        c.TutorID,
			Name:           c.FullName,
			Rating:         rating,
			AvailableSlots: c.AvailableSlots,
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Rating != suggestions[j].Rating {
			return suggestions[i].Rating > suggestions[j].Rating
		}
		return suggestions[i].TutorID < suggestions[j].TutorID
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}
