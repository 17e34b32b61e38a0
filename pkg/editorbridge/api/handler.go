package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// DefaultMaxUploadSize bounds multipart asset uploads.
const DefaultMaxUploadSize = 64 << 20

// Handler serves the editor connector endpoints on top of an editorbridge.Service.
type Handler struct {
	service       editorbridge.Service
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates the connector handler.
func NewHandler(service editorbridge.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, maxUploadSize: DefaultMaxUploadSize}
}

// WithMaxUploadSize changes the multipart size limit.
func (h *Handler) WithMaxUploadSize(n int64) *Handler {
	if n > 0 {
		h.maxUploadSize = n
	}
	return h
}

// Routes returns the router for the connector endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/heartbeat", h.Heartbeat)

	r.Get("/document", h.GetDocument)
	r.Post("/document", h.CreateDocument)
	r.Put("/document", h.SaveDocument)
	r.Post("/document/state", h.DocumentState)
	r.Put("/document/lock", h.SetLock)

	r.Get("/asset", h.GetAsset)
	r.Get("/asset/preview", h.GetAssetPreview)
	r.Post("/asset", h.CreateAsset)

	r.Post("/browse", h.Browse)
	return r
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		badRequest(w, r, h.logger, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// Heartbeat answers the editor's liveness poll.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetDocument returns the XML content of a document with its lock state.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	documentID := q.Get("documentId")
	if documentID == "" {
		badRequest(w, r, h.logger, "documentId is required")
		return
	}
	if _, err := parseQueryContext(q.Get("context")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.service.GetDocument(r.Context(), PrincipalFrom(r.Context()), documentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, res)
}

// CreateDocument creates an XML document next to the document being edited.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req PostDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := ParseEditSessionToken(req.Context.EditSessionToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	mainID := req.Context.DocumentID
	if token != nil {
		mainID = token.MainDocID
	}

	if len(req.Metadata) > 0 {
		h.logger.InfoContext(r.Context(), "document metadata is not stored, ignored", "metadata", req.Metadata)
	}

	res, err := h.service.CreateDocument(r.Context(), PrincipalFrom(r.Context()), editorbridge.CreateDocumentRequest{
		MainDocumentID: mainID,
		FolderID:       req.FolderID,
		Content:        req.Content,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}

// SaveDocument replaces the XML content of a document.
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req PutDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		badRequest(w, r, h.logger, "documentId is required")
		return
	}
	if req.Content == nil {
		badRequest(w, r, h.logger, "content is required")
		return
	}
	var dc *editorbridge.DocumentContext
	if len(req.DocumentContext) > 0 && string(req.DocumentContext) != "null" {
		decoded, err := editorbridge.DecodeDocumentContext(req.DocumentContext)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		dc = &decoded
	}

	res, err := h.service.SaveDocument(r.Context(), PrincipalFrom(r.Context()), editorbridge.SaveDocumentRequest{
		DocumentID:      req.DocumentID,
		Content:         *req.Content,
		DocumentContext: dc,
		RevisionID:      req.RevisionID,
		Autosave:        req.Autosave,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	render.JSON(w, r, res)
}

// DocumentState answers lock status polls from the cached document contexts.
func (h *Handler) DocumentState(w http.ResponseWriter, r *http.Request) {
	var req DocumentStateRequest
	if !h.decode(w, r, &req) {
		return
	}
	states := h.service.DocumentStates(r.Context(), req.Documents)

	resp := DocumentStateResponse{Results: make([]DocumentStateItem, 0, len(states))}
	for _, s := range states {
		if !s.Found {
			resp.Results = append(resp.Results, DocumentStateItem{Status: http.StatusNotFound})
			continue
		}
		resp.Results = append(resp.Results, DocumentStateItem{
			Status: http.StatusOK,
			Body: &DocumentStateBody{
				DocumentID:      s.DocumentID,
				DocumentContext: s.DocumentContext,
				Lock:            s.Lock,
			},
		})
	}
	render.JSON(w, r, resp)
}

// SetLock acquires or releases the editing lock.
func (h *Handler) SetLock(w http.ResponseWriter, r *http.Request) {
	var req PutLockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.DocumentID == "" {
		badRequest(w, r, h.logger, "documentId is required")
		return
	}
	if req.Lock.IsLockAcquired == nil {
		badRequest(w, r, h.logger, "lock.isLockAcquired is required")
		return
	}

	res, err := h.service.SetLock(r.Context(), PrincipalFrom(r.Context()), editorbridge.LockRequest{
		DocumentID: req.DocumentID,
		Acquire:    *req.Lock.IsLockAcquired,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !res.Granted {
		writeError(w, r, h.logger, &editorbridge.NodeError{
			NodeID: req.DocumentID,
			Op:     "lock",
			Err:    fmt.Errorf("%w: %s", editorbridge.ErrLockUnavailable, res.Lock.Reason),
		})
		return
	}
	render.JSON(w, r, PutLockResponse{
		DocumentContext: res.DocumentContext,
		Lock:            res.Lock,
		RevisionID:      req.RevisionID,
	})
}

// GetAsset streams the resolved rendition of an asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		badRequest(w, r, h.logger, "id is required")
		return
	}
	blob, err := h.service.GetAsset(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.writeBlob(w, r, blob)
}

// GetAssetPreview streams a resized variant of a picture.
func (h *Handler) GetAssetPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		badRequest(w, r, h.logger, "id is required")
		return
	}
	blob, err := h.service.GetAssetPreview(r.Context(), PrincipalFrom(r.Context()), id, q.Get("variant"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.writeBlob(w, r, blob)
}

func (h *Handler) writeBlob(w http.ResponseWriter, r *http.Request, blob *editorbridge.Blob) {
	rc, err := blob.Open(r.Context())
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("open rendition: %w", err))
		return
	}
	defer rc.Close()

	if blob.MimeType != "" {
		w.Header().Set("Content-Type", blob.MimeType)
	}
	if blob.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Length, 10))
	}
	if blob.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": blob.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream rendition", "filename", blob.Filename, "err", err)
	}
}

// CreateAsset imports an uploaded binary.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		badRequest(w, r, h.logger, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw, err := requestPart(r)
	if err != nil {
		badRequest(w, r, h.logger, err.Error())
		return
	}
	var req AssetRequest
	if err := render.DecodeJSON(strings.NewReader(raw), &req); err != nil {
		badRequest(w, r, h.logger, fmt.Sprintf("invalid request part: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, h.logger, "file part is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, r, h.logger, fmt.Sprintf("read file part: %v", err))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = ""
	}

	res, err := h.service.CreateAsset(r.Context(), PrincipalFrom(r.Context()), editorbridge.CreateAssetRequest{
		DocumentID: req.Context.DocumentID,
		FolderID:   req.FolderID,
		Type:       editorbridge.AssetType(req.Type),
		Filename:   header.Filename,
		MimeType:   mimeType,
		Data:       data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}

// requestPart returns the JSON "request" part, sent either as a field or as a file.
func requestPart(r *http.Request) (string, error) {
	if v := r.FormValue("request"); v != "" {
		return v, nil
	}
	f, _, err := r.FormFile("request")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", errors.New("request part is required")
		}
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Browse lists folders and assets for the editor's browser.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	// An absent limit means everything.
	req := BrowseRequest{Limit: -1}
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Query) > 0 {
		h.logger.InfoContext(r.Context(), "browse query filters are not supported, ignored", "query", req.Query)
	}

	res, err := h.service.Browse(r.Context(), PrincipalFrom(r.Context()), editorbridge.BrowseRequest{
		FolderID:    req.FolderID,
		AssetTypes:  assetTypes(req.AssetTypes),
		ResultTypes: resultTypes(req.ResultTypes),
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, res)
}
