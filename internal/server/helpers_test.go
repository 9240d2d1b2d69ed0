package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charityfeed/internal/config"
	"charityfeed/internal/database"
	"charityfeed/internal/models"
	"charityfeed/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	mr     *miniredis.Miniredis
	store  *storage.MemoryStore

	adminToken  string
	readerToken string
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		JWTSecret:       "server-test-secret-with-enough-length",
		JWTTTLHours:     1,
		FeedPageSize:    9,
		MaxUploadSizeMB: 1,
		AllowedOrigins:  "*",
		FeatureFlags:    "live_updates=on",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := storage.NewMemoryStore("http://media.test")
	require.NoError(t, store.EnsureBuckets(context.Background(), storage.DefaultBuckets...))

	s, err := NewServerWithDeps(testConfig(), db, rdb, store, Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	env := &testEnv{server: s, app: s.App(), db: db, mr: mr, store: store}

	var session models.Session
	resp := env.do(t, http.MethodPost, "/api/auth/admin-setup", "",
		map[string]string{"email": "operator@example.org", "password": "operator-pass", "full_name": "Olive Operator"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &session)
	env.adminToken = session.Token

	resp = env.do(t, http.MethodPost, "/api/auth/signup", "",
		map[string]string{"email": "uma@example.org", "password": "reader-pass", "full_name": "Uma Reader"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &session)
	env.readerToken = session.Token

	return env
}

// do sends a JSON request. body may be nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type formFile struct {
	name string
	data []byte
}

// createPost posts a multipart form to the admin endpoint.
func (e *testEnv) createPost(t *testing.T, token string, fields map[string]string, files ...formFile) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("media", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/posts", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// publish creates a published post with one image and returns it.
func (e *testEnv) publish(t *testing.T, title string) models.Post {
	t.Helper()
	resp := e.createPost(t, e.adminToken, map[string]string{
		"title":   title,
		"content": title + " details",
		"status":  "published",
	}, formFile{name: "a.png", data: pngBytes(t)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.Post
	decode(t, resp, &post)
	return post
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body models.ErrorResponse
	decode(t, resp, &body)
	return body.Code
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < 16; i++ {
		img.Set(i, i, color.RGBA{R: 200, G: 40, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
