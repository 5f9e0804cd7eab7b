package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

// CheckAndAwardBadges awards every automatic badge whose criteria the learner
// now meets. The result lists only new awards and is never nil.
func (s *Service) CheckAndAwardBadges(ctx context.Context, userID string) (res []core.BadgeID, err error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "engine.CheckAndAwardBadges", user)
	defer func() { endSpan(span, err) }()
	return s.awardBadges(ctx, user)
}

func (s *Service) awardBadges(ctx context.Context, user core.UserID) ([]core.BadgeID, error) {
	awarded := []core.BadgeID{}
	stats, err := s.storage.GetUserStats(ctx, user)
	if err != nil {
		return awarded, fmt.Errorf("load stats: %w", err)
	}
	candidates, err := s.storage.ListAutoBadges(ctx)
	if err != nil {
		return awarded, fmt.Errorf("list badges: %w", err)
	}
	for _, b := range candidates {
		if stats.HasBadge(b.ID) || b.Criteria == nil || !b.Criteria.Satisfied(stats) {
			continue
		}
		ok, err := s.grant(ctx, user, b.ID)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded = append(awarded, b.ID)
		}
	}
	return awarded, nil
}

// grant inserts the award and publishes it. A concurrent duplicate is not an
// error; it reports false.
func (s *Service) grant(ctx context.Context, user core.UserID, badge core.BadgeID) (bool, error) {
	now := s.clock.Now()
	err := s.storage.CreateUserBadge(ctx, core.UserBadge{UserID: user, BadgeID: badge, EarnedAt: now})
	if errors.Is(err, core.ErrBenignDuplicate) {
		s.logger.Debug("badge already held", "user_id", string(user), "badge_id", int64(badge))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("award badge %d: %w", badge, err)
	}
	s.publish(ctx, core.NewBadgeAwarded(user, badge, now))
	return true, nil
}

// ManuallyAwardBadge grants any badge, manual or not, without evaluating its
// criteria. It reports whether an award happened.
func (s *Service) ManuallyAwardBadge(ctx context.Context, userID, badgeID string) (ok bool, err error) {
	user, err := core.NormalizeUserID(core.UserID(userID))
	if err != nil {
		return false, err
	}
	bid, err := core.ParseID[core.BadgeID]("badge", badgeID)
	if err != nil {
		return false, err
	}
	ctx, span := s.startSpan(ctx, "engine.ManuallyAwardBadge", user)
	span.SetAttributes(attribute.Int64("badge.id", int64(bid)))
	defer func() { endSpan(span, err) }()

	if _, err := s.storage.GetBadge(ctx, bid); err != nil {
		return false, err
	}
	held, err := s.storage.HasBadge(ctx, user, bid)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}
	return s.grant(ctx, user, bid)
}
