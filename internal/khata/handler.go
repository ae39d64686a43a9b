package khata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/khata-app/khata/internal/platform/httpx"
	"github.com/khata-app/khata/internal/shared"
)

// ReceiptRenderer turns a session snapshot into a downloadable document.
type ReceiptRenderer interface {
	Render(ctx context.Context, sess *Session) ([]byte, error)
}

// Handler wires HTTP endpoints for the session ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	receipts  ReceiptRenderer
	validator *validator.Validate
}

// NewHandler constructs a Handler. receipts may be nil, which disables the receipt route.
func NewHandler(logger *slog.Logger, service *Service, receipts ReceiptRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		receipts:  receipts,
		validator: validator.New(),
	}
}

// MountRoutes registers session routes. Callers must install the authentication gate first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/create", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Patch("/{id}/add-amount", h.addAmount)
	r.Patch("/{id}/pay", h.pay)
	r.Patch("/{id}/add-item", h.addItem)
	r.Delete("/{id}/items/{itemID}", h.deleteItem)
	if h.receipts != nil {
		r.Get("/{id}/receipt", h.receipt)
	}
}

type sessionResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Session *Session `json:"session"`
}

type listResponse struct {
	Success  bool      `json:"success"`
	Sessions []Session `json:"sessions"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.service.Create(r.Context(), caller.UserID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{Success: true, Session: sess})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Sessions: sessions})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Get(r.Context(), caller.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller.UserID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Success: true, Message: "Session deleted successfully"})
}

func (h *Handler) addAmount(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.service.AddAmount(r.Context(), caller.UserID, chi.URLParam(r, "id"), *req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, Message: "Amount added to remaining successfully", Session: sess})
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.service.Pay(r.Context(), caller.UserID, chi.URLParam(r, "id"), *req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.service.AddItem(r.Context(), caller.UserID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	sess, err := h.service.DeleteItem(r.Context(), caller.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Success: true, Message: "Item deleted successfully", Session: sess})
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Get(r.Context(), caller.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pdf, err := h.receipts.Render(r.Context(), sess)
	if err != nil {
		h.logger.Error("render receipt", slog.String("session_id", sess.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "receipt rendering unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receiptFilename(sess.CustomerName)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	if err := h.validator.Struct(target); err != nil {
		return shared.ValidationError(err)
	}
	return nil
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (shared.Caller, bool) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
	}
	return caller, ok
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("session request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, err)
}

func receiptFilename(customer string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, customer)
	if name == "" {
		name = "customer"
	}
	return name + "_receipt.pdf"
}
