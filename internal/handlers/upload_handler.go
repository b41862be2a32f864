package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vulntracker/server/internal/services"
)

// Лимит памяти при разборе multipart-формы.
const maxUploadMemory = 32 << 20 // 32 MB

// UploadHandler обрабатывает загрузку CSV-файлов со сканами.
type UploadHandler struct {
	uploadService services.UploadService
}

// NewUploadHandler создает новый экземпляр UploadHandler.
func NewUploadHandler(us services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: us}
}

// Upload обрабатывает POST запрос с multipart-формой: file, quarter, companyName.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		log.Printf("[UploadHandler] Ошибка разбора multipart-формы: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	quarter := r.FormValue("quarter")
	companyName := r.FormValue("companyName")

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Printf("[UploadHandler] Файл отсутствует в запросе: %v", err)
		http.Error(w, "Файл обязателен", http.StatusBadRequest)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("[UploadHandler] Ошибка закрытия файла: %v", closeErr)
		}
	}()

	log.Printf("[UploadHandler] Загрузка файла '%s' (компания '%s', квартал '%s')",
		header.Filename, companyName, quarter)

	summary, err := h.uploadService.ProcessUpload(r.Context(), companyName, quarter, file)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[UploadHandler] Внутренняя ошибка обработки файла '%s': %v", header.Filename, err)
		http.Error(w, "Внутренняя ошибка сервера при обработке файла", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(summary); err != nil {
		log.Printf("[UploadHandler] Ошибка кодирования ответа: %v", err)
	}
}
