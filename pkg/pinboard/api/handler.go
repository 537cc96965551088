// Package api exposes the pinboard orchestrators over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
)

// maxFormMemory is how much of a multipart upload is buffered in memory.
const maxFormMemory = 8 << 20

// Handler serves pins, comments, profiles and assets.
type Handler struct {
	store   pinboard.ContentStore
	gateway *assets.Gateway
	auth    *jwtauth.JWTAuth
	logger  *slog.Logger
	opts    []pinboard.Option
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTokenAuth enables the write routes, authenticated with ja.
func WithTokenAuth(ja *jwtauth.JWTAuth) HandlerOption {
	return func(h *Handler) {
		h.auth = ja
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOrchestratorOptions adds options applied to every orchestrator the
// handler creates.
func WithOrchestratorOptions(opts ...pinboard.Option) HandlerOption {
	return func(h *Handler) {
		h.opts = append(h.opts, opts...)
	}
}

// NewHandler creates a Handler over store and gateway.
func NewHandler(store pinboard.ContentStore, gateway *assets.Gateway, opts ...HandlerOption) *Handler {
	h := &Handler{store: store, gateway: gateway, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the /api/v1 endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/pins/{id}", h.GetPin)
	r.Get("/users/{id}", h.GetUser)
	r.Get("/users/{id}/pins", h.GetUserPins)

	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(jwtauth.Verifier(h.auth))
			r.Use(jwtauth.Authenticator)
			r.Use(sessionFromToken)
		} else {
			r.Use(requireSession)
		}
		r.Get("/me", h.GetMe)
		r.Post("/assets", h.UploadAsset)
		r.Post("/pins", h.CreatePin)
		r.Post("/pins/{id}/comments", h.AppendComment)
		r.Post("/pins/{id}/save", h.SavePin)
	})
	return r
}

// AssetRoutes returns the router serving stored assets, meant to be mounted
// at the gateway's URL prefix.
func (h *Handler) AssetRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.ServeAsset)
	return r
}

func (h *Handler) orchestratorOptions(extra ...pinboard.Option) []pinboard.Option {
	opts := []pinboard.Option{
		pinboard.WithLogger(h.logger),
		pinboard.WithSessions(pinboard.ContextSessions{}),
	}
	opts = append(opts, h.opts...)
	return append(opts, extra...)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "err", err)
	} else {
		h.logger.InfoContext(r.Context(), msg, "status", status, "err", err)
	}
	renderError(w, r, status, err)
}

// PinResponse is the detail view of a pin
type PinResponse struct {
	Status  pinboard.Status           `json:"status"`
	Pin     *pinboard.Pin             `json:"pin"`
	Related []*pinboard.Pin           `json:"related"`
	Authors map[string]*pinboard.User `json:"authors"`
}

// GetPin loads a pin and its related pins
func (h *Handler) GetPin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loader, err := pinboard.NewDetailLoader(h.store, h.orchestratorOptions(pinboard.WithAuthors())...)
	if err != nil {
		h.fail(w, r, "Failed to create detail loader", err)
		return
	}
	if err := loader.LoadDetail(r.Context(), id); err != nil {
		renderError(w, r, http.StatusBadGateway, err)
		h.logger.ErrorContext(r.Context(), "Failed to load pin", "pin_id", id, "err", err)
		return
	}

	st := loader.State()
	if st.Status == pinboard.StatusEmpty {
		renderError(w, r, http.StatusNotFound, fmt.Errorf("pin %s: %w", id, pinboard.ErrNotFound))
		return
	}
	related := st.Related
	if related == nil {
		related = []*pinboard.Pin{}
	}
	authors := st.Authors
	if authors == nil {
		authors = map[string]*pinboard.User{}
	}
	render.JSON(w, r, PinResponse{Status: st.Status, Pin: st.Pin, Related: related, Authors: authors})
}

// CreatePinRequest is a pin draft plus the reference returned by the asset upload
type CreatePinRequest struct {
	pinboard.Draft
	Image *pinboard.AssetReference `json:"image,omitempty"`
}

// CreatePinResponse is returned after a successful create
type CreatePinResponse struct {
	Pin      *pinboard.Pin `json:"pin"`
	Redirect string        `json:"redirect"`
}

// CreatePin validates the draft and creates the pin
func (h *Handler) CreatePin(w http.ResponseWriter, r *http.Request) {
	var req CreatePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.InfoContext(r.Context(), "Failed to decode request", "err", err)
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	var redirect string
	creator, err := pinboard.NewCreator(h.store, h.gateway, h.orchestratorOptions(
		pinboard.WithNavigator(pinboard.NavigatorFunc(func(path string) { redirect = path })),
	)...)
	if err != nil {
		h.fail(w, r, "Failed to create creator", err)
		return
	}
	if req.Image != nil {
		ref, err := h.resolveAsset(r, req.Image.ID)
		if err != nil {
			h.fail(w, r, "Failed to resolve asset", err)
			return
		}
		if err := creator.UseAsset(*ref); err != nil {
			h.fail(w, r, "Failed to use asset", err)
			return
		}
	}

	pin, err := creator.SubmitContent(r.Context(), req.Draft)
	if err != nil {
		h.fail(w, r, "Failed to create pin", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreatePinResponse{Pin: pin, Redirect: redirect})
}

// resolveAsset rebuilds a client-supplied reference from the blob store, so
// a pin can only point at an image this server stored.
func (h *Handler) resolveAsset(r *http.Request, id string) (*pinboard.AssetReference, error) {
	ref, err := h.gateway.Resolve(r.Context(), id)
	if errors.Is(err, assets.ErrObjectNotFound) {
		return nil, &pinboard.ValidationError{Missing: []string{"asset"}}
	}
	return ref, err
}

// UploadAsset stores the multipart "file" field and returns its reference
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	creator, err := pinboard.NewCreator(h.store, h.gateway, h.orchestratorOptions()...)
	if err != nil {
		h.fail(w, r, "Failed to create creator", err)
		return
	}
	ref, err := creator.SubmitAsset(r.Context(), pinboard.AssetFile{
		Reader:      file,
		ContentType: header.Header.Get("Content-Type"),
		FileName:    header.Filename,
	})
	if err != nil {
		h.fail(w, r, "Failed to upload asset", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ref)
}

// AppendCommentRequest carries the comment text
type AppendCommentRequest struct {
	Text string `json:"text"`
}

// AppendCommentResponse is the new comment and the reloaded pin
type AppendCommentResponse struct {
	Comment *pinboard.Comment         `json:"comment"`
	Pin     *pinboard.Pin             `json:"pin,omitempty"`
	Authors map[string]*pinboard.User `json:"authors,omitempty"`
}

// AppendComment adds a comment authored by the session user
func (h *Handler) AppendComment(w http.ResponseWriter, r *http.Request) {
	pinID := chi.URLParam(r, "id")

	var req AppendCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	mutator, err := pinboard.NewCommentMutator(h.store, h.orchestratorOptions()...)
	if err != nil {
		h.fail(w, r, "Failed to create comment mutator", err)
		return
	}
	comment, err := mutator.AppendComment(r.Context(), pinID, req.Text, "")
	if err != nil {
		h.fail(w, r, "Failed to append comment", err)
		return
	}
	if comment == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := AppendCommentResponse{Comment: comment, Pin: mutator.Pin()}
	if resp.Pin != nil {
		resp.Authors, err = pinboard.LoadAuthors(r.Context(), h.store, pinboard.AuthorIDs(resp.Pin))
		if err != nil {
			h.logger.WarnContext(r.Context(), "Failed to load comment authors", "pin_id", pinID, "err", err)
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// SavePin adds the pin to the session user's saved collection
func (h *Handler) SavePin(w http.ResponseWriter, r *http.Request) {
	pinID := chi.URLParam(r, "id")

	saver, err := pinboard.NewSaveMutator(h.store, h.orchestratorOptions()...)
	if err != nil {
		h.fail(w, r, "Failed to create save mutator", err)
		return
	}
	if err := saver.Save(r.Context(), pinID, ""); err != nil {
		h.fail(w, r, "Failed to save pin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser returns a user profile
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	profile, err := pinboard.NewProfileAggregator(h.store, h.orchestratorOptions()...)
	if err != nil {
		h.fail(w, r, "Failed to create profile aggregator", err)
		return
	}
	if err := profile.LoadUser(r.Context(), userID); err != nil {
		renderError(w, r, http.StatusBadGateway, err)
		h.logger.ErrorContext(r.Context(), "Failed to load user", "user_id", userID, "err", err)
		return
	}

	st := profile.State()
	if st.UserStatus == pinboard.StatusEmpty {
		renderError(w, r, http.StatusNotFound, fmt.Errorf("user %s: %w", userID, pinboard.ErrNotFound))
		return
	}
	render.JSON(w, r, st.User)
}

// CollectionResponse is one of a user's pin collections
type CollectionResponse struct {
	UserID string                  `json:"userId"`
	Mode   pinboard.CollectionMode `json:"mode"`
	Status pinboard.Status         `json:"status"`
	Pins   []*pinboard.Pin         `json:"pins"`
}

// GetUserPins returns the pins a user created or saved
func (h *Handler) GetUserPins(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	mode, err := pinboard.ParseCollectionMode(r.URL.Query().Get("mode"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	profile, err := pinboard.NewProfileAggregator(h.store, h.orchestratorOptions()...)
	if err != nil {
		h.fail(w, r, "Failed to create profile aggregator", err)
		return
	}
	if err := profile.LoadCollection(r.Context(), userID, mode); err != nil {
		renderError(w, r, http.StatusBadGateway, err)
		h.logger.ErrorContext(r.Context(), "Failed to load collection", "user_id", userID, "mode", mode, "err", err)
		return
	}

	st := profile.State()
	render.JSON(w, r, CollectionResponse{
		UserID: userID,
		Mode:   st.Mode,
		Status: st.CollectionStatus,
		Pins:   st.Pins,
	})
}

// GetMe returns the session user's profile
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := pinboard.LoadSessionUser(r.Context(), h.store, pinboard.ContextSessions{})
	if err != nil {
		h.fail(w, r, "Failed to load session user", err)
		return
	}
	render.JSON(w, r, user)
}

// ServeAsset redirects to a presigned URL when the backend issues them and
// streams the object otherwise
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	if url, ok, err := h.gateway.Redirect(r.Context(), key); err != nil {
		h.fail(w, r, "Failed to presign asset", err)
		return
	} else if ok {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, contentType, err := h.gateway.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, assets.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		h.fail(w, r, "Failed to open asset", err)
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to stream asset", "key", key, "err", err)
	}
}
