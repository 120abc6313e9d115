package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/draft"
	"github.com/MrWong99/salesnote/internal/health"
	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/pipeline"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

// maxAudioBytes caps a single dictation upload.
const maxAudioBytes = 25 << 20

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler returns the HTTP API of the app wrapped with tracing and metrics
// middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/drafts", a.handleProcess)
	mux.HandleFunc("GET /v1/drafts/{user}", a.handleGet)
	mux.HandleFunc("PATCH /v1/drafts/{user}", a.handlePatch)
	mux.HandleFunc("POST /v1/drafts/{user}/items", a.handleAddItem)
	mux.HandleFunc("PATCH /v1/drafts/{user}/items/{index}", a.handleEditItem)
	mux.HandleFunc("DELETE /v1/drafts/{user}/items/{index}", a.handleRemoveItem)
	mux.HandleFunc("POST /v1/drafts/{user}/confirm", a.handleConfirm)
	mux.HandleFunc("POST /v1/drafts/{user}/cancel", a.handleCancel)
	mux.HandleFunc("POST /v1/transcriptions", a.handleTranscribe)

	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// draftResponse is a draft view plus the raw model reply in debug mode.
type draftResponse struct {
	draft.View
	RawModelResponse string `json:"raw_model_response,omitempty"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Draft *draft.View `json:"draft,omitempty"`
}

type processRequest struct {
	User           string `json:"user"`
	OrganizationID string `json:"organization_id"`

	// Note may be empty to process what was dictated so far.
	Note string `json:"note"`
}

// handleProcess runs one "process note" action for a user and installs the
// result into the user's draft.
func (a *App) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeError(w, http.StatusBadRequest, errors.New("user is required"))
		return
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		writeError(w, http.StatusBadRequest, catalog.ErrMissingOrganization)
		return
	}

	ctx := r.Context()
	tok, err := a.drafts.Begin(ctx, req.User, req.OrganizationID, req.Note)
	if err != nil {
		a.fail(w, err)
		return
	}

	// A client going away does not abort the run; the result stays
	// available through GET.
	res, err := a.Engine().Process(context.WithoutCancel(ctx), tok.OrganizationID, tok.Note)
	if err != nil {
		view, ferr := a.drafts.Fail(ctx, tok, userMessage(err))
		if ferr != nil {
			a.fail(w, ferr)
			return
		}
		observe.Logger(ctx).Warn("note processing failed", "user", req.User, "err", err)
		writeJSON(w, statusFor(err), errorResponse{Error: userMessage(err), Draft: &view})
		return
	}

	view, err := a.drafts.Complete(ctx, tok, draft.Content{
		OrganizationID: tok.OrganizationID,
		Order:          res.Order,
		Report:         res.Report,
		Catalog:        res.Catalog,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	resp := draftResponse{View: view}
	if a.debug.Load() {
		resp.RawModelResponse = res.Order.RawResponse
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := a.drafts.Get(r.PathValue("user"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, view)
}

// patchRequest edits draft-level fields. Absent fields are left as they
// are.
type patchRequest struct {
	Customer *string `json:"customer"`
	Note     *string `json:"note"`
	Task     *string `json:"task"`
}

func (a *App) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a.update(w, r, func(s *draft.Session) error {
		if req.Customer != nil {
			if err := s.RenameCustomer(*req.Customer); err != nil {
				return err
			}
		}
		if req.Note != nil {
			if err := s.SetNote(*req.Note); err != nil {
				return err
			}
		}
		if req.Task != nil {
			if err := s.SetTask(*req.Task); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *App) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var p draft.ItemPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	a.update(w, r, func(s *draft.Session) error { return s.AddItem(p) })
}

func (a *App) handleEditItem(w http.ResponseWriter, r *http.Request) {
	i, ok := itemIndex(w, r)
	if !ok {
		return
	}
	var p draft.ItemPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	a.update(w, r, func(s *draft.Session) error { return s.EditItem(i, p) })
}

func (a *App) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	i, ok := itemIndex(w, r)
	if !ok {
		return
	}
	a.update(w, r, func(s *draft.Session) error { return s.RemoveItem(i) })
}

func (a *App) update(w http.ResponseWriter, r *http.Request, fn func(*draft.Session) error) {
	view, err := a.drafts.Update(r.Context(), r.PathValue("user"), fn)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, view)
}

// handleConfirm writes the draft to the ledger. On failure the retained
// draft is returned with the error so the client can retry.
func (a *App) handleConfirm(w http.ResponseWriter, r *http.Request) {
	view, err := a.drafts.Confirm(r.Context(), r.PathValue("user"), a.ledger)
	if err != nil {
		if errors.Is(err, draft.ErrNoSession) || errors.Is(err, draft.ErrInvalidTransition) {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "Could not save the order. Your draft is kept; please try again.",
			Draft: &view,
		})
		return
	}
	a.writeView(w, view)
}

func (a *App) handleCancel(w http.ResponseWriter, r *http.Request) {
	view, err := a.drafts.Cancel(r.Context(), r.PathValue("user"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, view)
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Input string `json:"input"`
}

// handleTranscribe appends one dictation to the note buffer of the user
// named by the "user" query parameter. The body is the raw audio; its
// encoding comes from the "encoding" query parameter or the Content-Type.
func (a *App) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if a.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no transcription provider configured"))
		return
	}
	user := r.URL.Query().Get("user")
	if strings.TrimSpace(user) == "" {
		writeError(w, http.StatusBadRequest, errors.New("user is required"))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read audio: %w", err))
		return
	}
	audio := transcribe.Audio{Data: data, Encoding: audioEncoding(r)}

	buf := a.drafts.Buffer(user)
	text, err := buf.AppendTranscription(r.Context(), a.transcriber, audio)
	if err != nil {
		observe.Logger(r.Context()).Warn("transcription failed", "user", user, "err", err)
		writeError(w, statusFor(err), errors.New(userMessage(err)))
		return
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{Text: text, Input: buf.String()})
}

func (a *App) writeView(w http.ResponseWriter, v draft.View) {
	resp := draftResponse{View: v}
	if a.debug.Load() {
		resp.RawModelResponse = rawResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func rawResponse(v draft.View) string {
	if v.Order == nil {
		return ""
	}
	return v.Order.RawResponse
}

func (a *App) fail(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), errors.New(userMessage(err)))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var cf *pipeline.CompletionFailure
	var tf *pipeline.TranscriptionFailure
	switch {
	case errors.Is(err, draft.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, draft.ErrInvalidTransition), errors.Is(err, draft.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, draft.ErrItemIndex), errors.Is(err, draft.ErrEmptyProduct),
		errors.Is(err, pipeline.ErrEmptyNote), errors.Is(err, catalog.ErrMissingOrganization),
		errors.Is(err, transcribe.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.As(err, &cf), errors.As(err, &tf):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns the message shown to the user. Upstream failures
// carry their own single message; internal errors are not echoed.
func userMessage(err error) string {
	var cf *pipeline.CompletionFailure
	if errors.As(err, &cf) {
		return cf.Message
	}
	var tf *pipeline.TranscriptionFailure
	if errors.As(err, &tf) {
		return tf.Message
	}
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid item index %q", r.PathValue("index")))
		return 0, false
	}
	return i, true
}

// audioEncoding picks the encoding of an upload.
func audioEncoding(r *http.Request) string {
	if enc := r.URL.Query().Get("encoding"); enc != "" {
		return enc
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return transcribe.EncodingWAV
	case "audio/mpeg", "audio/mp3":
		return transcribe.EncodingMP3
	case "audio/ogg":
		return transcribe.EncodingOGG
	case "audio/webm":
		return transcribe.EncodingWebM
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return transcribe.EncodingM4A
	case "audio/flac", "audio/x-flac":
		return transcribe.EncodingFLAC
	case "audio/l16", "audio/pcm":
		return transcribe.EncodingPCM16
	default:
		return ""
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
