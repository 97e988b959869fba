package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fanvault/apiserver/internal/events"
	"github.com/fanvault/apiserver/internal/services"
	"github.com/fanvault/apiserver/internal/storage"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret = "handler-test-secret"
	testMaxUpload = 64 << 10
)

// pngBytes is a minimal payload http.DetectContentType sniffs as image/png.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return types.User{}, store.ErrUsernameTaken
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

// setRole flips the stored role directly, standing in for the SQL promotion
// the e2e suite does.
func (r *fakeUserRepo) setRole(id int, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.users[id]
	user.Role = role
	r.users[id] = user
}

// fakeFanworkRepo is an in-memory services.FanworkRepository.
type fakeFanworkRepo struct {
	mu       sync.Mutex
	nextID   int
	fanworks map[int]types.Fanwork
	users    *fakeUserRepo
	tags     *fakeTagRepo
}

func newFakeFanworkRepo(users *fakeUserRepo, tags *fakeTagRepo) *fakeFanworkRepo {
	return &fakeFanworkRepo{fanworks: make(map[int]types.Fanwork), users: users, tags: tags}
}

func (r *fakeFanworkRepo) List(_ context.Context, filter store.FanworkFilter) ([]types.Fanwork, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]types.Fanwork, 0, len(r.fanworks))
	for _, fanwork := range r.fanworks {
		if !filter.IncludeHidden && fanwork.Hidden {
			continue
		}
		if filter.Type != "" && fanwork.Type != filter.Type {
			continue
		}
		if filter.Rating != "" && fanwork.Rating != filter.Rating {
			continue
		}
		if filter.AuthorID > 0 && fanwork.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			title := strings.ToLower(fanwork.Title)
			description := strings.ToLower(fanwork.Description)
			if !strings.Contains(title, needle) && !strings.Contains(description, needle) {
				continue
			}
		}
		if len(filter.Tags) > 0 && !r.tags.hasAll(fanwork.ID, filter.Tags) {
			continue
		}
		matched = append(matched, r.withAuthor(fanwork))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= len(matched) {
		return []types.Fanwork{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *fakeFanworkRepo) Get(_ context.Context, id int) (types.Fanwork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fanwork, ok := r.fanworks[id]
	if !ok {
		return types.Fanwork{}, store.ErrNotFound
	}
	return r.withAuthor(fanwork), nil
}

func (r *fakeFanworkRepo) Exists(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.fanworks[id]
	return ok, nil
}

func (r *fakeFanworkRepo) Create(_ context.Context, fanwork types.Fanwork) (types.Fanwork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	fanwork.ID = r.nextID
	fanwork.CreatedAt = time.Now()
	fanwork.UpdatedAt = fanwork.CreatedAt
	r.fanworks[fanwork.ID] = fanwork
	return fanwork, nil
}

func (r *fakeFanworkRepo) SetHidden(_ context.Context, id int, hidden bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fanwork, ok := r.fanworks[id]
	if !ok {
		return store.ErrNotFound
	}
	fanwork.Hidden = hidden
	fanwork.ModerationReason = reason
	fanwork.UpdatedAt = time.Now()
	r.fanworks[id] = fanwork
	return nil
}

func (r *fakeFanworkRepo) Delete(_ context.Context, id int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fanwork, ok := r.fanworks[id]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(r.fanworks, id)
	return fanwork.ObjectKey, nil
}

func (r *fakeFanworkRepo) withAuthor(fanwork types.Fanwork) types.Fanwork {
	if author, err := r.users.GetByID(context.Background(), fanwork.AuthorID); err == nil {
		fanwork.AuthorUsername = author.Username
	}
	return fanwork
}

// fakeTagRepo is an in-memory services.TagRepository.
type fakeTagRepo struct {
	mu     sync.Mutex
	nextID int
	ids    map[string]int
	links  map[int][]string
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{ids: make(map[string]int), links: make(map[int][]string)}
}

func (r *fakeTagRepo) List(_ context.Context) ([]types.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int, len(r.ids))
	for _, names := range r.links {
		for _, name := range names {
			counts[name]++
		}
	}

	tags := make([]types.Tag, 0, len(r.ids))
	for name, id := range r.ids {
		tags = append(tags, types.Tag{ID: id, Name: name, Count: counts[name]})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})
	return tags, nil
}

func (r *fakeTagRepo) Attach(_ context.Context, fanworkID int, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.ids[name]; !ok {
			r.nextID++
			r.ids[name] = r.nextID
		}
		if !contains(r.links[fanworkID], name) {
			r.links[fanworkID] = append(r.links[fanworkID], name)
		}
	}
	return nil
}

func (r *fakeTagRepo) ListByFanwork(_ context.Context, fanworkID int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := append([]string(nil), r.links[fanworkID]...)
	sort.Strings(names)
	return names, nil
}

func (r *fakeTagRepo) NamesByFanworkIDs(_ context.Context, ids []int) (map[int][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[int][]string, len(ids))
	for _, id := range ids {
		if names := r.links[id]; len(names) > 0 {
			sorted := append([]string(nil), names...)
			sort.Strings(sorted)
			result[id] = sorted
		}
	}
	return result, nil
}

func (r *fakeTagRepo) hasAll(fanworkID int, names []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if !contains(r.links[fanworkID], name) {
			return false
		}
	}
	return true
}

func contains(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}

// fakeCommentRepo is an in-memory services.CommentRepository.
type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int
	comments []types.Comment
	fanworks *fakeFanworkRepo
	users    *fakeUserRepo
}

func newFakeCommentRepo(fanworks *fakeFanworkRepo, users *fakeUserRepo) *fakeCommentRepo {
	return &fakeCommentRepo{fanworks: fanworks, users: users}
}

func (r *fakeCommentRepo) ListByFanwork(_ context.Context, fanworkID int) ([]types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]types.Comment, 0)
	for _, comment := range r.comments {
		if comment.FanworkID != fanworkID {
			continue
		}
		if user, err := r.users.GetByID(context.Background(), comment.UserID); err == nil {
			comment.Username = user.Username
		}
		result = append(result, comment)
	}
	return result, nil
}

func (r *fakeCommentRepo) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	exists, err := r.fanworks.Exists(ctx, comment.FanworkID)
	if err != nil {
		return types.Comment{}, err
	}
	if !exists {
		return types.Comment{}, store.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	comment.ID = r.nextID
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, comment)
	return comment, nil
}

func (r *fakeCommentRepo) countByFanwork(fanworkID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, comment := range r.comments {
		if comment.FanworkID == fanworkID {
			count++
		}
	}
	return count
}

// fakeReportRepo is an in-memory services.ReportRepository.
type fakeReportRepo struct {
	mu      sync.Mutex
	nextID  int
	reports map[int]types.Report
	users   *fakeUserRepo
}

func newFakeReportRepo(users *fakeUserRepo) *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[int]types.Report), users: users}
}

func (r *fakeReportRepo) Create(_ context.Context, report types.Report) (types.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	report.ID = r.nextID
	report.CreatedAt = time.Now()
	r.reports[report.ID] = report
	return report, nil
}

func (r *fakeReportRepo) List(_ context.Context, status string) ([]types.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]types.Report, 0, len(r.reports))
	for _, report := range r.reports {
		if status != "" && report.Status != status {
			continue
		}
		if reporter, err := r.users.GetByID(context.Background(), report.ReporterID); err == nil {
			report.ReporterUsername = reporter.Username
		}
		result = append(result, report)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *fakeReportRepo) Review(_ context.Context, id int, status, action string, reviewerID int) (types.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return types.Report{}, store.ErrNotFound
	}
	now := time.Now()
	report.Status = status
	report.ModerationAction = action
	report.ReviewedBy = &reviewerID
	report.ReviewedAt = &now
	r.reports[id] = report
	return report, nil
}

// fakeReactionRepo is an in-memory services.ReactionRepository.
type fakeReactionRepo struct {
	mu        sync.Mutex
	likes     map[int]map[int]bool
	bookmarks map[int]map[int]bool
	fanworks  *fakeFanworkRepo
	comments  *fakeCommentRepo
}

func newFakeReactionRepo(fanworks *fakeFanworkRepo, comments *fakeCommentRepo) *fakeReactionRepo {
	return &fakeReactionRepo{
		likes:     make(map[int]map[int]bool),
		bookmarks: make(map[int]map[int]bool),
		fanworks:  fanworks,
		comments:  comments,
	}
}

func (r *fakeReactionRepo) ToggleLike(ctx context.Context, userID, fanworkID int) (bool, error) {
	return r.toggle(ctx, r.likes, userID, fanworkID)
}

func (r *fakeReactionRepo) ToggleBookmark(ctx context.Context, userID, fanworkID int) (bool, error) {
	return r.toggle(ctx, r.bookmarks, userID, fanworkID)
}

func (r *fakeReactionRepo) toggle(ctx context.Context, table map[int]map[int]bool, userID, fanworkID int) (bool, error) {
	exists, err := r.fanworks.Exists(ctx, fanworkID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if table[fanworkID] == nil {
		table[fanworkID] = make(map[int]bool)
	}
	if table[fanworkID][userID] {
		delete(table[fanworkID], userID)
		return false, nil
	}
	table[fanworkID][userID] = true
	return true, nil
}

func (r *fakeReactionRepo) Counts(ctx context.Context, fanworkID, userID int) (types.FanworkCounts, error) {
	exists, err := r.fanworks.Exists(ctx, fanworkID)
	if err != nil {
		return types.FanworkCounts{}, err
	}
	if !exists {
		return types.FanworkCounts{}, store.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return types.FanworkCounts{
		Likes:      len(r.likes[fanworkID]),
		Bookmarks:  len(r.bookmarks[fanworkID]),
		Comments:   r.comments.countByFanwork(fanworkID),
		Liked:      r.likes[fanworkID][userID],
		Bookmarked: r.bookmarks[fanworkID][userID],
	}, nil
}

// memStorage is an in-memory storage.ObjectStorage backend.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) EnsureBucket(context.Context) error { return nil }

func (s *memStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) Bucket() string { return "test-bucket" }

func (s *memStorage) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// testEnv wires the full route tree onto in-memory fakes.
type testEnv struct {
	router    *chi.Mux
	users     *fakeUserRepo
	fanworks  *fakeFanworkRepo
	tags      *fakeTagRepo
	comments  *fakeCommentRepo
	reports   *fakeReportRepo
	reactions *fakeReactionRepo
	media     *memStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	tags := newFakeTagRepo()
	fanworks := newFakeFanworkRepo(users, tags)
	comments := newFakeCommentRepo(fanworks, users)
	reports := newFakeReportRepo(users)
	reactions := newFakeReactionRepo(fanworks, comments)
	media := newMemStorage()

	bus := events.New(nil)
	userService := services.NewUserService(users, bus)
	fanworkService := services.NewFanworkService(fanworks, tags, storage.NewStorage(media, "/uploads/"), bus)
	commentService := services.NewCommentService(comments, fanworks)
	tagService := services.NewTagService(tags)
	reportService := services.NewReportService(reports, bus)
	reactionService := services.NewReactionService(reactions)

	guard := NewGuard(userService)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, userService, guard, testJWTSecret, time.Hour)
	})
	router.Route("/api/fanworks", func(r chi.Router) {
		FanworkRouter(r, fanworkService, commentService, reactionService, guard, testJWTSecret, testMaxUpload)
	})
	router.Route("/api/tags", func(r chi.Router) {
		TagRouter(r, tagService)
	})
	router.Route("/api/reports", func(r chi.Router) {
		ReportRouter(r, reportService, guard, testJWTSecret)
	})
	router.Route("/api/admin", func(r chi.Router) {
		AdminRouter(r, userService, fanworkService, reportService, guard, testJWTSecret)
	})

	return &testEnv{
		router:    router,
		users:     users,
		fanworks:  fanworks,
		tags:      tags,
		comments:  comments,
		reports:   reports,
		reactions: reactions,
		media:     media,
	}
}

// do sends a JSON request through the router. A nil body sends no payload.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doMultipart sends a multipart form request through the router.
func (e *testEnv) doMultipart(t *testing.T, path, token string, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst))
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	return resp.Message
}

func fieldErrorFields(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	fields := make([]string, 0, len(resp.Errors))
	for _, fieldError := range resp.Errors {
		fields = append(fields, fieldError.Field)
	}
	return fields
}

// register creates an account through the API and returns it with its token.
func (e *testEnv) register(t *testing.T, username, email, password string) AuthResponse {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AuthResponse
	decodeBody(t, rr, &resp)
	require.NotEmpty(t, resp.Token)
	return resp
}

// login authenticates through the API, picking up role changes made since
// the last token was issued.
func (e *testEnv) login(t *testing.T, email, password string) AuthResponse {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp AuthResponse
	decodeBody(t, rr, &resp)
	return resp
}

// registerWithRole registers an account, stores the elevated role, and logs
// in again so the returned token carries it.
func (e *testEnv) registerWithRole(t *testing.T, username, email, password, role string) AuthResponse {
	t.Helper()

	resp := e.register(t, username, email, password)
	e.users.setRole(resp.User.ID, role)
	return e.login(t, email, password)
}

// seedFanwork creates a fanwork through the API and returns it.
func (e *testEnv) seedFanwork(t *testing.T, token string, fields map[string]string) types.Fanwork {
	t.Helper()

	rr := e.doMultipart(t, "/api/fanworks", token, fields, "", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var fanwork types.Fanwork
	decodeBody(t, rr, &fanwork)
	return fanwork
}

var _ services.UserRepository = (*fakeUserRepo)(nil)
var _ services.FanworkRepository = (*fakeFanworkRepo)(nil)
var _ services.TagRepository = (*fakeTagRepo)(nil)
var _ services.CommentRepository = (*fakeCommentRepo)(nil)
var _ services.ReportRepository = (*fakeReportRepo)(nil)
var _ services.ReactionRepository = (*fakeReactionRepo)(nil)
var _ storage.ObjectStorage = (*memStorage)(nil)
