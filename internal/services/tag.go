package services

import (
	"context"
	"strings"

	"github.com/fanvault/apiserver/types"
)

// TagService encapsulates tag browsing.
type TagService struct {
	repo TagRepository
}

func NewTagService(repo TagRepository) *TagService {
	return &TagService{repo: repo}
}

func (s *TagService) List(ctx context.Context) ([]types.Tag, error) {
	return s.repo.List(ctx)
}

// normalizeTags lowercases, trims, and dedupes tag names so "Fan Art" and
// "fan art" land on the same row.
func normalizeTags(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
