package httpapi

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// Виды ошибок в ответе API.
const (
	kindBusiness   = "business"
	kindValidation = "validation"
	kindNotFound   = "not_found"
	kindBadRequest = "bad_request"
	kindInternal   = "internal"
)

// statusFor сопоставляет ошибку с HTTP-кодом и телом ответа.
// Бизнес-ошибка проверяется первой: отсутствующий товар в заказе — это 409, а не 404.
func statusFor(err error) (int, errorResponse) {
	if be, ok := domain.AsBusinessError(err); ok {
		return http.StatusConflict, errorResponse{Kind: kindBusiness, Code: be.Code, Error: be.Message}
	}
	if verr, ok := domain.AsValidationError(err); ok {
		return http.StatusBadRequest, errorResponse{Kind: kindValidation, Error: "invalid data", Fields: verr.Fields}
	}
	if domain.IsNotFound(err) {
		return http.StatusNotFound, errorResponse{Kind: kindNotFound, Error: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Kind: kindInternal, Error: "internal server error"}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Kind: kindBadRequest, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
