package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/api"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	memorystorage "github.com/tendant/simple-pins/pkg/pinboard/storage/memory"
	"github.com/tendant/simple-pins/pkg/pinboard/store/memory"
)

const testSecret = "test-secret"

type testServer struct {
	router http.Handler
	store  *memory.Store
	blobs  *memorystorage.Backend
	auth   *jwtauth.JWTAuth
}

func setupHandlerTest(t *testing.T, opts ...api.HandlerOption) *testServer {
	t.Helper()
	store := memory.New()
	blobs := memorystorage.New()
	gateway, err := assets.NewGateway(blobs)
	require.NoError(t, err)

	ja := api.NewTokenAuth(testSecret)
	opts = append([]api.HandlerOption{api.WithTokenAuth(ja)}, opts...)
	return newTestServer(t, store, blobs, gateway, ja, opts...)
}

func newTestServer(t *testing.T, store *memory.Store, blobs *memorystorage.Backend, gateway *assets.Gateway, ja *jwtauth.JWTAuth, opts ...api.HandlerOption) *testServer {
	t.Helper()
	h := api.NewHandler(store, gateway, opts...)
	router := chi.NewRouter()
	router.Mount("/api/v1", h.Routes())
	router.Mount("/assets", h.AssetRoutes())
	return &testServer{router: router, store: store, blobs: blobs, auth: ja}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := api.IssueToken(s.auth, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return s.do(t, method, path, token, body, "application/json")
}

func multipartFile(t *testing.T, filename, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func (s *testServer) uploadPNG(t *testing.T, token string) pinboard.AssetReference {
	t.Helper()
	body, contentType := multipartFile(t, "sunset.png", "image/png", []byte("png bytes"))
	w := s.do(t, http.MethodPost, "/api/v1/assets", token, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ref pinboard.AssetReference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ref))
	return ref
}

func (s *testServer) createPin(t *testing.T, token string, image pinboard.AssetReference, category string) *pinboard.Pin {
	t.Helper()
	w := s.doJSON(t, http.MethodPost, "/api/v1/pins", token, api.CreatePinRequest{
		Draft: pinboard.Draft{Title: "Sunset", About: "Over the bay", Destination: "https://example.com", Category: category},
		Image: &image,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.CreatePinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/", resp.Redirect)
	require.NotNil(t, resp.Pin)
	assert.False(t, resp.Pin.CreatedAt.IsZero())
	return resp.Pin
}

func (s *testServer) seedUser(t *testing.T, id, name string) {
	t.Helper()
	doc, err := pinboard.EncodeUser(&pinboard.User{ID: id, DisplayName: name})
	require.NoError(t, err)
	_, err = s.store.Create(context.Background(), doc)
	require.NoError(t, err)
}

func TestHandler_PinLifecycle(t *testing.T) {
	s := setupHandlerTest(t)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	ref := s.uploadPNG(t, alice)
	assert.Equal(t, "/assets/"+ref.ID, ref.URL)
	assert.Equal(t, 1, s.blobs.Len())

	first := s.createPin(t, alice, ref, "nature")
	second := s.createPin(t, alice, ref, "nature")
	assert.Equal(t, "alice", first.AuthorID)

	// detail with related
	w := s.do(t, http.MethodGet, "/api/v1/pins/"+first.ID, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail api.PinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, pinboard.StatusLoaded, detail.Status)
	assert.Equal(t, first.ID, detail.Pin.ID)
	require.Len(t, detail.Related, 1)
	assert.Equal(t, second.ID, detail.Related[0].ID)

	// comment
	w = s.doJSON(t, http.MethodPost, "/api/v1/pins/"+first.ID+"/comments", bob, api.AppendCommentRequest{Text: "Lovely"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var commented api.AppendCommentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commented))
	assert.Equal(t, "bob", commented.Comment.AuthorID)
	require.NotNil(t, commented.Pin)
	require.Len(t, commented.Pin.Comments, 1)
	assert.Equal(t, "Lovely", commented.Pin.Comments[0].Text)

	// blank comment is a no-op
	w = s.doJSON(t, http.MethodPost, "/api/v1/pins/"+first.ID+"/comments", bob, api.AppendCommentRequest{Text: "   "})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// save twice, recorded once
	for i := 0; i < 2; i++ {
		w = s.do(t, http.MethodPost, "/api/v1/pins/"+first.ID+"/save", bob, nil, "")
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/users/bob/pins?mode=saved", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var saved api.CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, pinboard.ModeSaved, saved.Mode)
	require.Len(t, saved.Pins, 1)
	assert.Equal(t, first.ID, saved.Pins[0].ID)
	assert.Equal(t, []string{"bob"}, saved.Pins[0].SavedBy)

	w = s.do(t, http.MethodGet, "/api/v1/users/alice/pins", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var created api.CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, pinboard.ModeAuthored, created.Mode)
	assert.Len(t, created.Pins, 2)

	w = s.do(t, http.MethodGet, "/api/v1/users/bob/pins?mode=created", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty api.CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Equal(t, pinboard.StatusEmpty, empty.Status)
	assert.NotNil(t, empty.Pins)
	assert.Empty(t, empty.Pins)
}

func TestHandler_PinDetailIncludesAuthors(t *testing.T) {
	s := setupHandlerTest(t)
	s.seedUser(t, "alice", "Alice")
	s.seedUser(t, "bob", "Bob")
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")

	pin := s.createPin(t, alice, s.uploadPNG(t, alice), "nature")

	w := s.doJSON(t, http.MethodPost, "/api/v1/pins/"+pin.ID+"/comments", bob, api.AppendCommentRequest{Text: "Lovely"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var commented api.AppendCommentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commented))
	require.Contains(t, commented.Authors, "bob")
	assert.Equal(t, "Bob", commented.Authors["bob"].DisplayName)

	w = s.do(t, http.MethodGet, "/api/v1/pins/"+pin.ID, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail api.PinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Authors, 2)
	assert.Equal(t, "Alice", detail.Authors["alice"].DisplayName)
	assert.Equal(t, "Bob", detail.Authors["bob"].DisplayName)
}

func TestHandler_UploadRejectsWrongType(t *testing.T) {
	s := setupHandlerTest(t)
	body, contentType := multipartFile(t, "notes.pdf", "application/pdf", []byte("%PDF"))

	w := s.do(t, http.MethodPost, "/api/v1/assets", s.token(t, "alice"), body, contentType)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, 0, s.blobs.Len())
}

func TestHandler_UploadTooLarge(t *testing.T) {
	store := memory.New()
	blobs := memorystorage.New()
	gateway, err := assets.NewGateway(blobs, assets.WithMaxBytes(4))
	require.NoError(t, err)
	ja := api.NewTokenAuth(testSecret)
	s := newTestServer(t, store, blobs, gateway, ja, api.WithTokenAuth(ja))

	body, contentType := multipartFile(t, "big.png", "image/png", []byte("too many bytes"))
	w := s.do(t, http.MethodPost, "/api/v1/assets", s.token(t, "alice"), body, contentType)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, blobs.Len())
}

func TestHandler_UploadRequiresFile(t *testing.T) {
	s := setupHandlerTest(t)
	w := s.do(t, http.MethodPost, "/api/v1/assets", s.token(t, "alice"), []byte("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreatePinValidation(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.doJSON(t, http.MethodPost, "/api/v1/pins", s.token(t, "alice"), api.CreatePinRequest{
		Draft: pinboard.Draft{Title: "Sunset"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"about", "destination", "category", "asset"}, resp.Missing)
	assert.Equal(t, 0, s.store.Len())
}

func TestHandler_CreatePinRejectsUnknownAsset(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.doJSON(t, http.MethodPost, "/api/v1/pins", s.token(t, "alice"), api.CreatePinRequest{
		Draft: pinboard.Draft{Title: "Sunset", About: "Over the bay", Destination: "https://example.com", Category: "nature"},
		Image: &pinboard.AssetReference{ID: "never-uploaded", URL: "javascript:alert(1)", ContentType: "text/html"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"asset"}, resp.Missing)
	assert.Equal(t, 0, s.store.Len())
}

func TestHandler_CreatePinRejectsStoredNonImage(t *testing.T) {
	s := setupHandlerTest(t)
	require.NoError(t, s.blobs.Upload(context.Background(), "pages/index.html", bytes.NewReader([]byte("<html>")), "text/html"))

	w := s.doJSON(t, http.MethodPost, "/api/v1/pins", s.token(t, "alice"), api.CreatePinRequest{
		Draft: pinboard.Draft{Title: "Sunset", About: "Over the bay", Destination: "https://example.com", Category: "nature"},
		Image: &pinboard.AssetReference{ID: "pages/index.html", URL: "/assets/pages/index.html", ContentType: "image/png"},
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, w.Body.String())
	assert.Equal(t, 0, s.store.Len())
}

func TestHandler_CreatePinRebuildsAssetReference(t *testing.T) {
	s := setupHandlerTest(t)
	alice := s.token(t, "alice")
	ref := s.uploadPNG(t, alice)

	pin := s.createPin(t, alice, pinboard.AssetReference{ID: ref.ID, URL: "javascript:alert(1)", ContentType: "text/html"}, "nature")

	assert.Equal(t, ref, pin.Image)
}

func TestHandler_CreatePinBadJSON(t *testing.T) {
	s := setupHandlerTest(t)
	w := s.do(t, http.MethodPost, "/api/v1/pins", s.token(t, "alice"), []byte("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_WritesRequireToken(t *testing.T) {
	s := setupHandlerTest(t)

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{"no token", "/api/v1/pins/p1/save", ""},
		{"garbage token", "/api/v1/pins/p1/save", "not-a-jwt"},
		{"wrong secret", "/api/v1/pins/p1/save", func() string {
			token, err := api.IssueToken(api.NewTokenAuth("other"), "alice", time.Hour)
			require.NoError(t, err)
			return token
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.token, nil, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestHandler_WritesDisabledWithoutAuth(t *testing.T) {
	store := memory.New()
	blobs := memorystorage.New()
	gateway, err := assets.NewGateway(blobs)
	require.NoError(t, err)
	s := newTestServer(t, store, blobs, gateway, api.NewTokenAuth(testSecret))

	w := s.do(t, http.MethodPost, "/api/v1/pins/p1/save", s.token(t, "alice"), nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/pins/p1", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_NotFound(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.do(t, http.MethodGet, "/api/v1/pins/missing", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/missing", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/pins/missing/save", s.token(t, "bob"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodPost, "/api/v1/pins/missing/comments", s.token(t, "bob"), api.AppendCommentRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Users(t *testing.T) {
	s := setupHandlerTest(t)
	s.seedUser(t, "alice", "Alice")

	w := s.do(t, http.MethodGet, "/api/v1/users/alice", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var user pinboard.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "Alice", user.DisplayName)

	w = s.do(t, http.MethodGet, "/api/v1/me", s.token(t, "alice"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.ID)

	w = s.do(t, http.MethodGet, "/api/v1/me", s.token(t, "ghost"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/alice/pins?mode=liked", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	return nil, errors.New("connection reset")
}

func TestHandler_StoreFailures(t *testing.T) {
	blobs := memorystorage.New()
	gateway, err := assets.NewGateway(blobs)
	require.NoError(t, err)
	h := api.NewHandler(brokenStore{memory.New()}, gateway)
	router := chi.NewRouter()
	router.Mount("/api/v1", h.Routes())

	for _, path := range []string{"/api/v1/pins/p1", "/api/v1/users/u1", "/api/v1/users/u1/pins"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadGateway, w.Code, path)
	}
}

func TestHandler_ServeAsset(t *testing.T) {
	s := setupHandlerTest(t)
	ref := s.uploadPNG(t, s.token(t, "alice"))

	w := s.do(t, http.MethodGet, ref.URL, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/assets/images/none.png", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type presigningBlobs struct {
	*memorystorage.Backend
}

func (presigningBlobs) PresignedURL(ctx context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

func TestHandler_ServeAssetRedirects(t *testing.T) {
	gateway, err := assets.NewGateway(presigningBlobs{memorystorage.New()})
	require.NoError(t, err)
	h := api.NewHandler(memory.New(), gateway)
	router := chi.NewRouter()
	router.Mount("/assets", h.AssetRoutes())

	req := httptest.NewRequest(http.MethodGet, "/assets/images/a.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://signed.example/images/a.png", w.Header().Get("Location"))
}
