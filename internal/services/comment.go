package services

import (
	"context"
	"strings"

	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByFanwork(ctx context.Context, fanworkID int) ([]types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	repo     CommentRepository
	fanworks FanworkRepository
}

func NewCommentService(repo CommentRepository, fanworks FanworkRepository) *CommentService {
	return &CommentService{repo: repo, fanworks: fanworks}
}

func (s *CommentService) ListByFanwork(ctx context.Context, fanworkID int) ([]types.Comment, error) {
	exists, err := s.fanworks.Exists(ctx, fanworkID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return s.repo.ListByFanwork(ctx, fanworkID)
}

func (s *CommentService) Create(ctx context.Context, author types.User, fanworkID int, content string) (types.Comment, error) {
	comment, err := s.repo.Create(ctx, types.Comment{
		FanworkID: fanworkID,
		UserID:    author.ID,
		Content:   strings.TrimSpace(content),
	})
	if err != nil {
		return types.Comment{}, err
	}
	comment.Username = author.Username
	return comment, nil
}
