package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/fanvault/apiserver/internal/services"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	maxMultipartMemory = 32 << 20

	formFieldType        = "type"
	formFieldRating      = "rating"
	formFieldTitle       = "title"
	formFieldDescription = "description"
	formFieldContent     = "content"
	formFieldTags        = "tags"
	formFieldFile        = "file"
)

// FanworkHandler provides HTTP handlers for the fanwork catalog.
type FanworkHandler struct {
	fanworkService  *services.FanworkService
	commentService  *services.CommentService
	reactionService *services.ReactionService
	maxUploadBytes  int64
}

// NewFanworkHandler constructs a handler with the provided services.
func NewFanworkHandler(
	fanworkService *services.FanworkService,
	commentService *services.CommentService,
	reactionService *services.ReactionService,
	maxUploadBytes int64,
) *FanworkHandler {
	return &FanworkHandler{
		fanworkService:  fanworkService,
		commentService:  commentService,
		reactionService: reactionService,
		maxUploadBytes:  maxUploadBytes,
	}
}

// FanworkRouter registers fanwork routes on the given router.
func FanworkRouter(
	r chi.Router,
	fanworkService *services.FanworkService,
	commentService *services.CommentService,
	reactionService *services.ReactionService,
	guard *Guard,
	jwtSecret string,
	maxUploadBytes int64,
) {
	handler := NewFanworkHandler(fanworkService, commentService, reactionService, maxUploadBytes)

	r.With(OptionalAuth(jwtSecret)).Get("/", handler.ListFanworks)
	r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/", handler.CreateFanwork)
	r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/import/ao3", handler.ImportAO3)
	r.Route("/{fanworkID}", func(r chi.Router) {
		r.With(OptionalAuth(jwtSecret)).Get("/", handler.GetFanwork)
		r.With(OptionalAuth(jwtSecret)).Get("/counts", handler.GetCounts)
		r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/like", handler.ToggleLike)
		r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/bookmark", handler.ToggleBookmark)
		r.Get("/comments", handler.ListComments)
		r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/comments", handler.CreateComment)
	})
}

// ListFanworks returns a filtered page of the catalog. Hidden works show up
// only for moderators and above.
func (h *FanworkHandler) ListFanworks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := store.FanworkFilter{
		Type:   strings.TrimSpace(query.Get("type")),
		Rating: strings.TrimSpace(query.Get("rating")),
		Search: strings.TrimSpace(query.Get("search")),
		Tags:   parseTags(query.Get("tags")),
		Limit:  limit,
		Offset: offset,
	}

	if filter.Type != "" && !types.ValidType(filter.Type) {
		writeError(w, http.StatusBadRequest, "invalid type filter")
		return
	}
	if filter.Rating != "" && !types.ValidRating(filter.Rating) {
		writeError(w, http.StatusBadRequest, "invalid rating filter")
		return
	}

	rawAuthor := strings.TrimSpace(query.Get("author_id"))
	if rawAuthor == "" {
		rawAuthor = strings.TrimSpace(query.Get("authorId"))
	}
	if rawAuthor != "" {
		authorID, err := strconv.Atoi(rawAuthor)
		if err != nil || authorID < 1 {
			writeError(w, http.StatusBadRequest, "invalid author filter")
			return
		}
		filter.AuthorID = authorID
	}

	if identity, ok := identityFromContext(r.Context()); ok {
		filter.IncludeHidden = types.RoleAtLeast(identity.Role, types.RoleModerator)
	}

	items, total, err := h.fanworkService.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, r, "failed to list fanworks", err)
		return
	}

	writeJSON(w, http.StatusOK, FanworkListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetFanwork returns one work with its tags. Hidden works 404 for everyone
// but the owner and moderators.
func (h *FanworkHandler) GetFanwork(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fanwork, err := h.fanworkService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to fetch fanwork", err)
		return
	}

	if fanwork.Hidden && !canSeeHidden(r, fanwork.AuthorID) {
		writeError(w, http.StatusNotFound, "Fanwork not found")
		return
	}

	writeJSON(w, http.StatusOK, fanwork)
}

// CreateFanwork stores a new submission from a multipart form with an
// optional image attachment.
func (h *FanworkHandler) CreateFanwork(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	req, upload, err := parseFanworkForm(r, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	created, err := h.fanworkService.Create(r.Context(), user, types.Fanwork{
		Type:        req.Type,
		Rating:      req.Rating,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Tags:        req.Tags,
	}, upload)
	if err != nil {
		if errors.Is(err, services.ErrAgeVerification) {
			writeError(w, http.StatusForbidden, "Age verification required for mature or explicit works")
			return
		}
		writeInternalError(w, r, "failed to create fanwork", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ImportAO3 creates a fanfiction entry from an Archive of Our Own work the
// author pastes in. The URL is recorded, never fetched.
func (h *FanworkHandler) ImportAO3(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ImportAO3Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Title = strings.TrimSpace(req.Title)

	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}
	if err := services.ValidateAO3URL(req.URL); err != nil {
		writeFieldErrors(w, []FieldError{{Field: "url", Message: err.Error()}})
		return
	}

	title, body := req.Title, strings.TrimSpace(req.Pasted)
	if title == "" {
		title, body = services.SplitPastedWork(req.Pasted)
	}
	var fieldErrors []FieldError
	if title == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "title", Message: "is required when the paste has no title line"})
	}
	if body == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "pasted", Message: "is required"})
	}
	if fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	rating := req.Rating
	if rating == "" {
		rating = types.RatingAllAges
	}

	created, err := h.fanworkService.Create(r.Context(), user, types.Fanwork{
		Type:         types.TypeFanfiction,
		Rating:       rating,
		Title:        title,
		Content:      body,
		ImportSource: services.ImportSourceAO3,
		ImportURL:    req.URL,
		Tags:         req.Tags,
	}, nil)
	if err != nil {
		if errors.Is(err, services.ErrAgeVerification) {
			writeError(w, http.StatusForbidden, "Age verification required for mature or explicit works")
			return
		}
		writeInternalError(w, r, "failed to import fanwork", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ToggleLike flips the caller's like on a fanwork.
func (h *FanworkHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	liked, likes, err := h.reactionService.ToggleLike(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to toggle like", err)
		return
	}

	writeJSON(w, http.StatusOK, ToggleLikeResponse{Liked: liked, Likes: likes})
}

// ToggleBookmark flips the caller's bookmark on a fanwork.
func (h *FanworkHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	bookmarked, bookmarks, err := h.reactionService.ToggleBookmark(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to toggle bookmark", err)
		return
	}

	writeJSON(w, http.StatusOK, ToggleBookmarkResponse{Bookmarked: bookmarked, Bookmarks: bookmarks})
}

// GetCounts returns engagement totals plus the caller's own flags when
// authenticated.
func (h *FanworkHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := 0
	if identity, ok := identityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	counts, err := h.reactionService.Counts(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to fetch counts", err)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

// ListComments returns a fanwork's comments oldest first.
func (h *FanworkHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.commentService.ListByFanwork(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to list comments", err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// CreateComment adds a comment to a fanwork.
func (h *FanworkHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CommentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)

	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	comment, err := h.commentService.Create(r.Context(), user, id, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to create comment", err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// FanworkUpsertRequest represents the parsed multipart form payload.
type FanworkUpsertRequest struct {
	Type        string   `json:"type" validate:"required,oneof=artwork fanfiction comic"`
	Rating      string   `json:"rating" validate:"required,oneof=all-ages teen mature explicit"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
}

// ImportAO3Request is the AO3 import payload. Pasted holds the work text the
// author copied over; the title heuristic applies when Title is empty.
type ImportAO3Request struct {
	URL    string   `json:"url" validate:"required"`
	Title  string   `json:"title" validate:"max=200"`
	Pasted string   `json:"pasted"`
	Rating string   `json:"rating" validate:"omitempty,oneof=all-ages teen mature explicit"`
	Tags   []string `json:"tags"`
}

type CommentCreateRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// FanworkListResponse is the paginated catalog response payload.
type FanworkListResponse struct {
	Items  []types.Fanwork `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type ToggleLikeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

type ToggleBookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
	Bookmarks  int  `json:"bookmarks"`
}

// canSeeHidden reports whether the request may view a hidden work: the owner
// and moderators may, everyone else gets a 404.
func canSeeHidden(r *http.Request, authorID int) bool {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		return false
	}
	if identity.UserID == authorID {
		return true
	}
	return types.RoleAtLeast(identity.Role, types.RoleModerator)
}

func parseFanworkForm(r *http.Request, maxUploadBytes int64) (FanworkUpsertRequest, *services.Upload, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return FanworkUpsertRequest{}, nil, errors.New("invalid multipart form")
	}

	req := FanworkUpsertRequest{
		Type:        strings.TrimSpace(r.FormValue(formFieldType)),
		Rating:      strings.TrimSpace(r.FormValue(formFieldRating)),
		Title:       strings.TrimSpace(r.FormValue(formFieldTitle)),
		Description: strings.TrimSpace(r.FormValue(formFieldDescription)),
		Content:     r.FormValue(formFieldContent),
		Tags:        parseTags(r.FormValue(formFieldTags)),
	}
	if req.Rating == "" {
		req.Rating = types.RatingAllAges
	}

	upload, err := parseUploadFile(r.MultipartForm, maxUploadBytes)
	if err != nil {
		return FanworkUpsertRequest{}, nil, err
	}

	return req, upload, nil
}

func parseUploadFile(form *multipart.Form, limit int64) (*services.Upload, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	data, err := readFileLimited(file, limit)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.New("file must be an image")
	}

	return &services.Upload{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
