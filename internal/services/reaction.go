package services

import (
	"context"

	"github.com/fanvault/apiserver/types"
)

// ReactionRepository defines persistence operations for likes and bookmarks.
type ReactionRepository interface {
	ToggleLike(ctx context.Context, userID, fanworkID int) (bool, error)
	ToggleBookmark(ctx context.Context, userID, fanworkID int) (bool, error)
	Counts(ctx context.Context, fanworkID, userID int) (types.FanworkCounts, error)
}

// ReactionService encapsulates likes and bookmarks.
type ReactionService struct {
	repo ReactionRepository
}

func NewReactionService(repo ReactionRepository) *ReactionService {
	return &ReactionService{repo: repo}
}

// ToggleLike flips the user's like and returns the new state with the
// fanwork's like total.
func (s *ReactionService) ToggleLike(ctx context.Context, userID, fanworkID int) (bool, int, error) {
	liked, err := s.repo.ToggleLike(ctx, userID, fanworkID)
	if err != nil {
		return false, 0, err
	}
	counts, err := s.repo.Counts(ctx, fanworkID, userID)
	if err != nil {
		return false, 0, err
	}
	return liked, counts.Likes, nil
}

// ToggleBookmark flips the user's bookmark and returns the new state with the
// fanwork's bookmark total.
func (s *ReactionService) ToggleBookmark(ctx context.Context, userID, fanworkID int) (bool, int, error) {
	bookmarked, err := s.repo.ToggleBookmark(ctx, userID, fanworkID)
	if err != nil {
		return false, 0, err
	}
	counts, err := s.repo.Counts(ctx, fanworkID, userID)
	if err != nil {
		return false, 0, err
	}
	return bookmarked, counts.Bookmarks, nil
}

// Counts returns engagement totals plus the caller's own flags. userID 0
// reads as anonymous.
func (s *ReactionService) Counts(ctx context.Context, fanworkID, userID int) (types.FanworkCounts, error) {
	return s.repo.Counts(ctx, fanworkID, userID)
}
