package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fanvault/apiserver/internal/events"
	"github.com/fanvault/apiserver/internal/markup"
	"github.com/fanvault/apiserver/internal/storage"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
	"github.com/google/uuid"
)

// ErrAgeVerification is returned when a mature or explicit submission comes
// from an account that has not verified its age.
var ErrAgeVerification = errors.New("age verification required")

// FanworkRepository defines persistence operations for fanworks.
type FanworkRepository interface {
	List(ctx context.Context, filter store.FanworkFilter) ([]types.Fanwork, int, error)
	Get(ctx context.Context, id int) (types.Fanwork, error)
	Exists(ctx context.Context, id int) (bool, error)
	Create(ctx context.Context, fanwork types.Fanwork) (types.Fanwork, error)
	SetHidden(ctx context.Context, id int, hidden bool, reason string) error
	Delete(ctx context.Context, id int) (string, error)
}

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	List(ctx context.Context) ([]types.Tag, error)
	Attach(ctx context.Context, fanworkID int, names []string) error
	ListByFanwork(ctx context.Context, fanworkID int) ([]string, error)
	NamesByFanworkIDs(ctx context.Context, ids []int) (map[int][]string, error)
}

// Upload carries an optional media attachment for a new fanwork.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FanworkService encapsulates fanwork use-cases.
type FanworkService struct {
	repo    FanworkRepository
	tags    TagRepository
	storage *storage.Storage
	bus     *events.Bus
}

func NewFanworkService(repo FanworkRepository, tags TagRepository, media *storage.Storage, bus *events.Bus) *FanworkService {
	return &FanworkService{
		repo:    repo,
		tags:    tags,
		storage: media,
		bus:     bus,
	}
}

func (s *FanworkService) List(ctx context.Context, filter store.FanworkFilter) ([]types.Fanwork, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	filter.Tags = normalizeTags(filter.Tags)

	fanworks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int, 0, len(fanworks))
	for _, fanwork := range fanworks {
		ids = append(ids, fanwork.ID)
	}
	names, err := s.tags.NamesByFanworkIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range fanworks {
		fanworks[i].Tags = names[fanworks[i].ID]
	}

	return fanworks, total, nil
}

// Get loads one fanwork with its tags. Fanfiction bodies are markdown, so
// the sanitized HTML rendering rides along for display.
func (s *FanworkService) Get(ctx context.Context, id int) (types.Fanwork, error) {
	fanwork, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Fanwork{}, err
	}

	tags, err := s.tags.ListByFanwork(ctx, id)
	if err != nil {
		return types.Fanwork{}, err
	}
	fanwork.Tags = tags

	if fanwork.Type == types.TypeFanfiction && fanwork.Content != "" {
		html, err := markup.Render(fanwork.Content)
		if err != nil {
			slog.Warn("failed to render fanwork content", "fanwork_id", id, "error", err)
		} else {
			fanwork.ContentHTML = html
		}
	}

	return fanwork, nil
}

func (s *FanworkService) Exists(ctx context.Context, id int) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Create stores a new fanwork for the author, uploading the optional media
// attachment first. Tag attachment and event publication are best-effort
// follow-ups that never fail the submission.
func (s *FanworkService) Create(ctx context.Context, author types.User, fanwork types.Fanwork, upload *Upload) (types.Fanwork, error) {
	if types.RestrictedRating(fanwork.Rating) && !author.AgeVerified {
		return types.Fanwork{}, ErrAgeVerification
	}

	fanwork.AuthorID = author.ID
	tags := normalizeTags(fanwork.Tags)
	fanwork.Tags = nil

	objectKey := ""
	if upload != nil {
		objectKey = mediaObjectKey(upload.Filename)
		reader := bytes.NewReader(upload.Data)
		if err := s.storage.Put(ctx, objectKey, reader, int64(len(upload.Data)), upload.ContentType); err != nil {
			return types.Fanwork{}, err
		}
		fanwork.ObjectKey = objectKey
		fanwork.ContentURL = s.storage.URL(objectKey)
	}

	created, err := s.repo.Create(ctx, fanwork)
	if err != nil {
		if objectKey != "" {
			_ = s.storage.Delete(ctx, objectKey)
		}
		return types.Fanwork{}, err
	}
	created.AuthorUsername = author.Username

	if len(tags) > 0 {
		if err := s.tags.Attach(ctx, created.ID, tags); err != nil {
			slog.Warn("failed to attach tags", "fanwork_id", created.ID, "error", err)
		} else {
			created.Tags = tags
		}
	}

	s.bus.Emit(ctx, events.ChannelFanworkCreated, events.Event{
		Type:       "fanwork.created",
		ActorID:    author.ID,
		TargetType: types.TargetFanwork,
		TargetID:   created.ID,
	})

	return created, nil
}

// Hide takes a fanwork out of public circulation, keeping the row.
func (s *FanworkService) Hide(ctx context.Context, actor types.User, id int, reason string) (types.Fanwork, error) {
	if err := s.repo.SetHidden(ctx, id, true, reason); err != nil {
		return types.Fanwork{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "fanwork.hidden",
		ActorID:    actor.ID,
		TargetType: types.TargetFanwork,
		TargetID:   id,
		Detail:     reason,
	})
	return s.Get(ctx, id)
}

// Unhide restores a hidden fanwork.
func (s *FanworkService) Unhide(ctx context.Context, actor types.User, id int) (types.Fanwork, error) {
	if err := s.repo.SetHidden(ctx, id, false, ""); err != nil {
		return types.Fanwork{}, err
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "fanwork.unhidden",
		ActorID:    actor.ID,
		TargetType: types.TargetFanwork,
		TargetID:   id,
	})
	return s.Get(ctx, id)
}

// Delete removes a fanwork and, best-effort, its stored media object.
func (s *FanworkService) Delete(ctx context.Context, actor types.User, id int) error {
	objectKey, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if objectKey != "" {
		if err := s.storage.Delete(ctx, objectKey); err != nil {
			slog.Warn("failed to delete fanwork media", "fanwork_id", id, "object_key", objectKey, "error", err)
		}
	}
	s.bus.Emit(ctx, events.ChannelModerationActions, events.Event{
		Type:       "fanwork.deleted",
		ActorID:    actor.ID,
		TargetType: types.TargetFanwork,
		TargetID:   id,
	})
	return nil
}

// mediaObjectKey builds a collision-free storage key, keeping the original
// extension for content-type inference by CDNs and browsers.
func mediaObjectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return "fanworks/" + uuid.NewString() + ext
}
