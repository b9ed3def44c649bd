package github_test

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/reviewdata/internal/model"
	"github.com/slok/reviewdata/internal/storage/github"
)

// fakeContentsAPI is a minimal in memory GitHub Contents API.
type fakeContentsAPI struct {
	mu    sync.Mutex
	files map[string][]byte
	// Requests received, by method.
	requests map[string]int
	// Force a status code on every request.
	forceStatus int
}

func newFakeContentsAPI() *fakeContentsAPI {
	return &fakeContentsAPI{
		files:    map[string][]byte{},
		requests: map[string]int{},
	}
}

func sha(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests[r.Method]++
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", "1760000000")

	if f.forceStatus != 0 {
		w.WriteHeader(f.forceStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "forced"})
		return
	}

	const prefix = "/repos/owner/data/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	switch r.Method {
	case http.MethodGet:
		f.get(w, r, path)
	case http.MethodPut:
		f.put(w, r, path)
	case http.MethodDelete:
		f.delete(w, r, path)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeContentsAPI) get(w http.ResponseWriter, r *http.Request, path string) {
	if data, ok := f.files[path]; ok {
		if r.Header.Get("Accept") == "application/vnd.github.raw" {
			_, _ = w.Write(data)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     path[strings.LastIndex(path, "/")+1:],
			"path":     path,
			"sha":      sha(data),
			"size":     len(data),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString(data),
		})
		return
	}

	var items []map[string]any
	for p, data := range f.files {
		if strings.HasPrefix(p, path+"/") && !strings.Contains(strings.TrimPrefix(p, path+"/"), "/") {
			items = append(items, map[string]any{
				"type": "file",
				"name": strings.TrimPrefix(p, path+"/"),
				"path": p,
				"sha":  sha(data),
				"size": len(data),
			})
		}
	}
	if len(items) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		return
	}
	_ = json.NewEncoder(w).Encode(items)
}

func (f *fakeContentsAPI) put(w http.ResponseWriter, r *http.Request, path string) {
	var body struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	current, exists := f.files[path]
	switch {
	case exists && body.SHA == "":
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case exists && body.SHA != sha(current), !exists && body.SHA != "":
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": path + " does not match " + body.SHA})
		return
	}

	data, _ := base64.StdEncoding.DecodeString(body.Content)
	f.files[path] = data
	if exists {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]any{"path": path, "sha": sha(data)}})
}

func (f *fakeContentsAPI) delete(w http.ResponseWriter, r *http.Request, path string) {
	var body struct {
		SHA string `json:"sha"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	current, exists := f.files[path]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if body.SHA != sha(current) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "sha does not match"})
		return
	}
	delete(f.files, path)
	_ = json.NewEncoder(w).Encode(map[string]any{"content": nil})
}

func newTestStore(t *testing.T, api http.Handler) *github.Store {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := github.NewStore(github.StoreConfig{
		Repo:            "owner/data",
		Token:           "test-token",
		APIURL:          srv.URL,
		RequestInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return s
}

func TestNewStore(t *testing.T) {
	tests := map[string]struct {
		config github.StoreConfig
		expErr bool
	}{
		"Valid config should work.":                {config: github.StoreConfig{Repo: "owner/data"}},
		"Missing repo should fail.":                {config: github.StoreConfig{}, expErr: true},
		"Repo without owner should fail.":          {config: github.StoreConfig{Repo: "data"}, expErr: true},
		"Negative request interval should fail.":   {config: github.StoreConfig{Repo: "owner/data", RequestInterval: -1}, expErr: true},
		"Repo with too many segments should fail.": {config: github.StoreConfig{Repo: "a/b/c"}, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := github.NewStore(test.config)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreFetchMissingReturnsNil(t *testing.T) {
	s := newTestStore(t, newFakeContentsAPI())

	doc, err := s.Fetch(context.Background(), "sprints/sprint-1.json")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStoreWriteFetchCycle(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	api := newFakeContentsAPI()
	s := newTestStore(t, api)

	v1, err := s.Write(ctx, "sprints/sprint-1.json", []byte(`{"id":1}`), "")
	require.NoError(err)
	assert.Equal(sha([]byte(`{"id":1}`)), v1)

	doc, err := s.Fetch(ctx, "sprints/sprint-1.json")
	require.NoError(err)
	require.NotNil(doc)
	assert.Equal(`{"id":1}`, string(doc.Content))
	assert.Equal(v1, doc.Version)

	v2, err := s.Write(ctx, "sprints/sprint-1.json", []byte(`{"id":1,"name":"s1"}`), doc.Version)
	require.NoError(err)
	assert.NotEqual(v1, v2)

	info := s.RateLimit()
	assert.Equal(4999, info.Remaining)
	assert.Equal(5000, info.Limit)
}

func TestStoreWriteConflicts(t *testing.T) {
	tests := map[string]struct {
		version string
	}{
		"Writing with a stale version should conflict.":         {version: "stale"},
		"Creating a file that already exists should conflict.": {version: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			api := newFakeContentsAPI()
			api.files["current-sprint.json"] = []byte(`{}`)
			s := newTestStore(t, api)

			_, err := s.Write(context.Background(), "current-sprint.json", []byte(`{"currentSprintId":1}`), test.version)
			assert.True(t, errors.Is(err, model.ErrConflict), "got: %v", err)
		})
	}
}

func TestStoreErrorClassification(t *testing.T) {
	tests := map[string]struct {
		status int
		expErr error
	}{
		"Unauthorized should be permission denied.": {status: http.StatusUnauthorized, expErr: model.ErrPermissionDenied},
		"Forbidden should be permission denied.":    {status: http.StatusForbidden, expErr: model.ErrPermissionDenied},
		"Server errors should be store errors.":     {status: http.StatusBadGateway, expErr: model.ErrStore},
		"Conflict should be a conflict.":            {status: http.StatusConflict, expErr: model.ErrConflict},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			api := newFakeContentsAPI()
			api.forceStatus = test.status
			s := newTestStore(t, api)

			_, err := s.Fetch(context.Background(), "current-sprint.json")
			require.Error(t, err)
			assert.True(t, errors.Is(err, test.expErr), "got: %v", err)

			var statusErr *github.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, test.status, statusErr.StatusCode)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	api := newFakeContentsAPI()
	api.files["media/sprint-1/a.png"] = []byte("png")
	s := newTestStore(t, api)

	err := s.Delete(ctx, "media/sprint-1/a.png", "stale")
	assert.True(errors.Is(err, model.ErrConflict))

	err = s.Delete(ctx, "media/sprint-1/a.png", sha([]byte("png")))
	require.NoError(err)

	err = s.Delete(ctx, "media/sprint-1/a.png", sha([]byte("png")))
	assert.True(errors.Is(err, model.ErrNotFound))
}

func TestStoreListAndBinary(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	api := newFakeContentsAPI()
	s := newTestStore(t, api)

	img := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}
	_, err := s.UploadBinary(ctx, "media/sprint-3/demo.png", img, "")
	require.NoError(err)

	entries, err := s.List(ctx, "media/sprint-3")
	require.NoError(err)
	require.Len(entries, 1)
	assert.Equal("demo.png", entries[0].Name)
	assert.Equal(model.EntryKindFile, entries[0].Kind)
	assert.Equal(int64(len(img)), entries[0].Size)

	got, err := s.DownloadBinary(ctx, "media/sprint-3/demo.png")
	require.NoError(err)
	assert.Equal(img, got)

	entries, err = s.List(ctx, "media/sprint-99")
	require.NoError(err)
	assert.Empty(entries)

	_, err = s.DownloadBinary(ctx, "media/sprint-3/missing.png")
	assert.True(errors.Is(err, model.ErrNotFound))
}

func TestStoreRequestGateLimitsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	})

	s := newTestStore(t, handler)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Fetch(context.Background(), "current-sprint.json")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInFlight, 2)
}

func TestStoreRequestGateSpacesRequestStarts(t *testing.T) {
	require := require.New(t)

	const interval = 100 * time.Millisecond

	var mu sync.Mutex
	var starts []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	s, err := github.NewStore(github.StoreConfig{
		Repo:            "owner/data",
		APIURL:          srv.URL,
		RequestInterval: interval,
	})
	require.NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Fetch(context.Background(), "current-sprint.json")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(starts, 4)
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

	// Small tolerance for the scheduling between the client start and the server handler.
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval-15*time.Millisecond, "gap %d: %s", i, gap)
	}
	assert.GreaterOrEqual(t, starts[3].Sub(starts[0]), 3*interval-15*time.Millisecond)
}
