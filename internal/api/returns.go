package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/circulation"
)

// ReturnsHandler handles return batch endpoints.
type ReturnsHandler struct {
	Service *circulation.Service
}

// Create handles POST /api/returns. Unless the body names another admin, the
// authenticated admin processes the return.
func (h *ReturnsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req circulation.ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProcessedBy == nil {
		id := claims.AdminID
		req.ProcessedBy = &id
	}

	ret, err := h.Service.Return(r.Context(), req)
	if err != nil {
		engineError(w, r, err, "return books")
		return
	}

	slog.Info("books returned",
		"return", ret.ID,
		"books", len(ret.Details),
		"total_fine", ret.TotalFine.String(),
		"admin", claims.Username,
	)
	status := http.StatusCreated
	if req.ReturnID != 0 {
		status = http.StatusOK
	}
	jsonResponse(w, status, ret)
}

// List handles GET /api/returns.
func (h *ReturnsHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Service.ListGroupedReturns(r.Context())
	if err != nil {
		engineError(w, r, err, "list returns")
		return
	}
	jsonResponse(w, http.StatusOK, batches)
}

// DeleteDetail handles DELETE /api/return-details/{id}?return_id=&book_id=.
func (h *ReturnsHandler) DeleteDetail(w http.ResponseWriter, r *http.Request) {
	detailID, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid return detail ID")
		return
	}

	q := r.URL.Query()
	returnID, err := strconv.ParseInt(q.Get("return_id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid return_id")
		return
	}
	bookID, err := strconv.ParseInt(q.Get("book_id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book_id")
		return
	}

	headerDeleted, err := h.Service.DeleteReturnDetail(r.Context(), returnID, detailID, bookID)
	if err != nil {
		engineError(w, r, err, "delete return detail")
		return
	}

	slog.Info("return detail deleted", "return", returnID, "detail", detailID, "header_deleted", headerDeleted)
	jsonResponse(w, http.StatusOK, map[string]bool{"return_deleted": headerDeleted})
}
