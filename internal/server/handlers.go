package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/khukmani/bettervisuals/internal/dashboards"
	"github.com/khukmani/bettervisuals/internal/dataset"
	"github.com/khukmani/bettervisuals/internal/formatter"
	"github.com/khukmani/bettervisuals/internal/repositories"
	"github.com/khukmani/bettervisuals/internal/services"
	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/store"
	"github.com/khukmani/bettervisuals/internal/tasks"
	"golang.org/x/oauth2"
)

// maxUploadBytes bounds budget export uploads.
const maxUploadBytes = 32 << 20

// musicSession is a music source plus the token plumbing the web layer needs
// to run the authorization flow on behalf of a session.
type musicSession interface {
	tasks.MusicSource

	Authorize(ctx context.Context, code string) error
	Token() *oauth2.Token
}

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	config    *shared.Config
	logger    *log.Logger
	sessions  sessions.Store
	users     *repositories.UserRepository
	notes     *repositories.NoteRepository
	artifacts *store.ArtifactStore
	google    *GoogleAuthenticator

	// newMusicSource builds the per-request music source from the session's
	// token. Swappable so handler tests can inject a fake library.
	newMusicSource func(ctx context.Context, token *oauth2.Token) (musicSession, error)
}

// NewHandlers wires the handler set from its dependencies.
func NewHandlers(
	config *shared.Config,
	logger *log.Logger,
	sessionStore sessions.Store,
	users *repositories.UserRepository,
	notes *repositories.NoteRepository,
	artifacts *store.ArtifactStore,
	google *GoogleAuthenticator,
) *Handlers {
	h := &Handlers{
		config:    config,
		logger:    logger,
		sessions:  sessionStore,
		users:     users,
		notes:     notes,
		artifacts: artifacts,
		google:    google,
	}

	h.newMusicSource = func(ctx context.Context, token *oauth2.Token) (musicSession, error) {
		service, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			return nil, err
		}
		if token != nil {
			service.SetToken(ctx, token)
		}
		return service, nil
	}

	return h
}

// Welcome renders the public landing page.
func (h *Handlers) Welcome(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, "welcome.html", map[string]any{"LoginURL": "/login"})
}

// Index renders the dashboard list for a signed-in user.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	h.renderPage(w, "index.html", map[string]any{
		"Email":      sessionString(session, sessionKeyUserEmail),
		"Name":       sessionString(session, sessionKeyUserName),
		"Dashboards": dashboards.All(),
	})
}

// DashboardPage renders the page shell for one dashboard.
func (h *Handlers) DashboardPage(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := dashboards.Lookup(chi.URLParam(r, "slug"))
	if !ok {
		h.renderError(w, http.StatusNotFound, "No such dashboard")
		return
	}

	session := h.session(r)
	h.renderPage(w, "dashboard.html", map[string]any{
		"Email":     sessionString(session, sessionKeyUserEmail),
		"Dashboard": dashboard,
		"AuthCode":  r.URL.Query().Get("code"),
	})
}

// Login starts the Google sign-in flow.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate login state", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign-in is unavailable")
		return
	}

	session := h.session(r)
	session.Values[sessionKeyOAuthState] = state
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign-in is unavailable")
		return
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

// GoogleCallback finishes the sign-in flow: it validates the state token,
// exchanges the code, resolves the identity, and upserts the account.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	state := r.URL.Query().Get("state")
	expected := sessionString(session, sessionKeyOAuthState)
	if expected == "" || state != expected {
		h.renderError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}
	delete(session.Values, sessionKeyOAuthState)

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("sign-in denied",
			"error", r.URL.Query().Get("error"),
			"description", r.URL.Query().Get("error_description"))
		h.renderError(w, http.StatusBadRequest, "Authorization failed")
		return
	}

	token, err := h.google.Authorize(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.renderError(w, http.StatusBadGateway, "Authorization failed")
		return
	}

	identity, err := h.google.Identity(r.Context(), token)
	if err != nil {
		h.logger.Error("identity lookup failed", "error", err)
		h.renderError(w, http.StatusBadGateway, "Authorization failed")
		return
	}

	user, err := h.users.Upsert(identity.Subject, identity.Email, identity.Name)
	if err != nil {
		h.logger.Error("account upsert failed", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign-in failed")
		return
	}

	session.Values[sessionKeyUserID] = user.ID()
	session.Values[sessionKeyUserEmail] = user.Email()
	session.Values[sessionKeyUserName] = user.Name()
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign-in failed")
		return
	}

	h.logger.Info("user signed in", "user", user.ID(), "email", user.Email())
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout drops the session and returns to the landing page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to clear session", "error", err)
	}
	http.Redirect(w, r, "/welcome", http.StatusFound)
}

// SpotifyCallback receives the Spotify authorization redirect and bounces
// back to the music dashboard with the code attached, so the dashboard's
// next data request can finish the exchange.
func (h *Handlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	state := r.URL.Query().Get("state")
	expected := sessionString(session, sessionKeySpotifyState)
	if expected == "" || state != expected {
		h.renderError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}
	delete(session.Values, sessionKeySpotifyState)
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", "error", err)
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.renderError(w, http.StatusBadRequest, "Authorization failed")
		return
	}

	target := fmt.Sprintf("/dashboards/%s?code=%s", dashboards.SlugTop100, url.QueryEscape(code))
	http.Redirect(w, r, target, http.StatusFound)
}

// DashboardData serves the JSON document a dashboard renders from.
func (h *Handlers) DashboardData(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := dashboards.Lookup(chi.URLParam(r, "slug"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "no such dashboard")
		return
	}

	userID := requestUserID(r)

	switch dashboard.Slug {
	case dashboards.SlugTop100:
		h.musicData(w, r, dashboard, userID)
	case dashboards.SlugBudget:
		h.financeData(w, r, dashboard, userID)
	case dashboards.SlugSample:
		h.sampleData(w, r)
	case dashboards.SlugNotes:
		h.noteData(w, r, userID)
	default:
		h.writeError(w, http.StatusNotFound, "dashboard has no data endpoint")
	}
}

func (h *Handlers) musicData(w http.ResponseWriter, r *http.Request, dashboard dashboards.Dashboard, userID string) {
	session := h.session(r)

	source, err := h.newMusicSource(r.Context(), spotifyToken(session))
	if err != nil {
		h.logger.Error("music source unavailable", "error", err)
		h.writeError(w, http.StatusInternalServerError, "music source unavailable")
		return
	}

	code := r.URL.Query().Get("code")
	if code != "" {
		if err := source.Authorize(r.Context(), code); err != nil {
			h.logger.Warn("spotify authorization failed", "user", userID, "error", err)
			h.writeError(w, http.StatusBadRequest, "authorization failed")
			return
		}
		if err := storeSpotifyToken(session, source.Token()); err != nil {
			h.logger.Error("failed to store token", "error", err)
		}
	}

	trigger := code != "" || r.URL.Query().Get("refresh") == "1"

	// The state token only matters when the outcome is an auth redirect, but
	// it has to exist before the pipeline constructs the authorize URL.
	var authState string
	if trigger {
		authState, err = shared.GenerateState()
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "failed to generate state")
			return
		}
		session.Values[sessionKeySpotifyState] = authState
	}

	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", "error", err)
	}

	pipeline := tasks.NewMusicPipeline(source, h.artifacts, h.logger, dashboard.Folder)
	outcome, err := pipeline.Fetch(r.Context(), userID, trigger, authState)
	if err != nil {
		h.logger.Error("music fetch failed", "user", userID, "error", err)
		h.writeError(w, http.StatusBadGateway, "music refresh failed")
		return
	}

	response := map[string]any{"state": outcome.State.String()}
	if outcome.AuthURL != "" {
		response["auth_url"] = outcome.AuthURL
	}
	if outcome.Artifacts != nil {
		decoded, err := tasks.DecodeMusicArtifacts(outcome.Artifacts)
		if err != nil {
			h.logger.Error("music cache decode failed", "user", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "cached data is unreadable")
			return
		}
		response["data"] = dashboards.MusicPayload(decoded)
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) financeData(w http.ResponseWriter, r *http.Request, dashboard dashboards.Dashboard, userID string) {
	from, err := rangeParam(r, "from")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from parameter")
		return
	}
	to, err := rangeParam(r, "to")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to parameter")
		return
	}

	pipeline := tasks.NewFinancePipeline(h.artifacts, h.logger, dashboard.Folder)
	outcome, err := pipeline.Fetch(userID, nil)
	if err != nil {
		h.logger.Error("finance fetch failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "finance data unavailable")
		return
	}

	response := map[string]any{"state": outcome.State.String()}
	if outcome.Artifacts != nil {
		payload, err := h.financePayload(outcome.Artifacts, from, to)
		if err != nil {
			if errors.Is(err, shared.ErrInvalidInput) {
				h.writeError(w, http.StatusBadRequest, "invalid month range")
				return
			}
			h.logger.Error("finance view failed", "user", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "cached data is unreadable")
			return
		}
		response["data"] = payload
	}

	h.writeJSON(w, http.StatusOK, response)
}

// financePayload decodes the cached tables and derives the requested
// month-range view.
func (h *Handlers) financePayload(artifacts map[string][]byte, from, to int) (map[string]any, error) {
	register, budget, err := tasks.DecodeFinanceArtifacts(artifacts)
	if err != nil {
		return nil, err
	}

	view, err := tasks.BuildFinanceView(register, budget, from, to)
	if err != nil {
		return nil, err
	}

	return dashboards.FinancePayload(view), nil
}

func (h *Handlers) sampleData(w http.ResponseWriter, r *http.Request) {
	payload, err := dashboards.SamplePayload()
	if err != nil {
		h.logger.Error("sample dataset failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "sample data unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"state": tasks.StateNoTriggerCached.String(),
		"data":  payload,
	})
}

func (h *Handlers) noteData(w http.ResponseWriter, r *http.Request, userID string) {
	value, err := h.noteValue(userID)
	if err != nil {
		h.logger.Error("note lookup failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "note unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"state": tasks.StateNoTriggerCached.String(),
		"data":  map[string]any{"value": value},
	})
}

// DashboardUpload ingests a budget export for the finance dashboard.
func (h *Handlers) DashboardUpload(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := dashboards.Lookup(chi.URLParam(r, "slug"))
	if !ok || dashboard.Slug != dashboards.SlugBudget {
		h.writeError(w, http.StatusNotFound, "dashboard does not accept uploads")
		return
	}

	userID := requestUserID(r)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, _, err := r.FormFile("export")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing export file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	pipeline := tasks.NewFinancePipeline(h.artifacts, h.logger, dashboard.Folder)
	outcome, err := pipeline.Fetch(userID, data)
	if err != nil {
		if errors.Is(err, shared.ErrMalformedInput) {
			h.writeError(w, http.StatusBadRequest, "export is not a valid budget archive")
			return
		}
		h.logger.Error("finance upload failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	payload, err := h.financePayload(outcome.Artifacts, -1, -1)
	if err != nil {
		h.logger.Error("finance view failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "upload stored but unreadable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"state": outcome.State.String(),
		"data":  payload,
	})
}

// DashboardClear wipes the caller's stored state for one dashboard.
func (h *Handlers) DashboardClear(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := dashboards.Lookup(chi.URLParam(r, "slug"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "no such dashboard")
		return
	}

	userID := requestUserID(r)

	switch dashboard.Storage {
	case dashboards.StorageFolder:
		if err := h.artifacts.Clear(dashboard.Folder, userID); err != nil {
			h.logger.Error("cache clear failed", "user", userID, "dashboard", dashboard.Slug, "error", err)
			h.writeError(w, http.StatusInternalServerError, "clear failed")
			return
		}
		h.logger.Info("cache cleared", "user", userID, "dashboard", dashboard.Slug)
	case dashboards.StorageDatabase:
		note, err := h.notes.GetByUser(userID)
		if err == nil {
			err = h.notes.Delete(note.ID())
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("note clear failed", "user", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "clear failed")
			return
		}
	case dashboards.StorageNone:
		// Nothing stored.
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// DashboardExport downloads one cached artifact as CSV, Markdown, or text.
func (h *Handlers) DashboardExport(w http.ResponseWriter, r *http.Request) {
	dashboard, ok := dashboards.Lookup(chi.URLParam(r, "slug"))
	if !ok || dashboard.Storage != dashboards.StorageFolder {
		h.writeError(w, http.StatusNotFound, "dashboard has no exportable artifacts")
		return
	}

	artifact := r.URL.Query().Get("artifact")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if formatter.ContentType(format) == "" {
		h.writeError(w, http.StatusBadRequest, "unsupported export format")
		return
	}

	userID := requestUserID(r)

	frame, err := h.exportFrame(dashboard, userID, artifact)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "artifact not cached")
			return
		}
		h.logger.Error("export failed", "user", userID, "artifact", artifact, "error", err)
		h.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	data, err := formatter.Export(frame, format, fmt.Sprintf("%s %s", dashboard.Name, artifact))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", dashboard.Slug, artifact, exportExtension(format))
	w.Header().Set("Content-Type", formatter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// exportFrame loads one cached artifact and decodes it against its schema.
func (h *Handlers) exportFrame(dashboard dashboards.Dashboard, userID, artifact string) (*dataset.Frame, error) {
	if !artifactDeclared(dashboard, artifact) {
		return nil, fmt.Errorf("%w: artifact %q", shared.ErrNotFound, artifact)
	}

	switch dashboard.Slug {
	case dashboards.SlugTop100:
		raw := make(map[string][]byte, len(dashboard.Artifacts))
		for _, name := range dashboard.Artifacts {
			data, err := h.artifacts.Read(dashboard.Folder, userID, name)
			if err != nil {
				return nil, err
			}
			raw[name] = data
		}

		decoded, err := tasks.DecodeMusicArtifacts(raw)
		if err != nil {
			return nil, err
		}

		switch artifact {
		case tasks.ArtifactTracks:
			return decoded.Tracks, nil
		case tasks.ArtifactTracksEncoded:
			return decoded.TracksEncoded, nil
		case tasks.ArtifactArtistPresence:
			return decoded.ArtistPresence, nil
		case tasks.ArtifactGenreYearCounter:
			return decoded.GenreYearCounter, nil
		default:
			return nil, fmt.Errorf("%w: artifact %q is not tabular", shared.ErrNotFound, artifact)
		}
	case dashboards.SlugBudget:
		data, err := h.artifacts.Read(dashboard.Folder, userID, artifact)
		if err != nil {
			return nil, err
		}

		switch artifact {
		case tasks.ArtifactRegister:
			return dataset.DecodeSplit(data, tasks.RegisterSchema)
		case tasks.ArtifactBudget:
			return dataset.DecodeSplit(data, tasks.BudgetSchema)
		}
	}

	return nil, fmt.Errorf("%w: artifact %q", shared.ErrNotFound, artifact)
}

// NoteValue returns the caller's stored note value.
func (h *Handlers) NoteValue(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	value, err := h.noteValue(userID)
	if err != nil {
		h.logger.Error("note lookup failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "note unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

// SetNoteValue stores the caller's note value, creating it on first write.
func (h *Handlers) SetNoteValue(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	value := r.PostFormValue("value")

	note, err := h.notes.Set(userID, value)
	if err != nil {
		h.logger.Error("note write failed", "user", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "note write failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"value": note.Value()})
}

func (h *Handlers) noteValue(userID string) (string, error) {
	note, err := h.notes.GetByUser(userID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return note.Value(), nil
}

func artifactDeclared(dashboard dashboards.Dashboard, artifact string) bool {
	for _, name := range dashboard.Artifacts {
		if name == artifact {
			return true
		}
	}
	return false
}

// rangeParam parses an optional non-negative month index, -1 when absent.
func rangeParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return -1, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s=%q", shared.ErrInvalidInput, name, raw)
	}
	return value, nil
}

func exportExtension(format string) string {
	switch format {
	case "markdown":
		return "md"
	case "text":
		return "txt"
	default:
		return "csv"
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		h.logger.Error("failed to marshal response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}
