package httpd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
)

const maxBodySize = 1 << 20

var validate = validator.New()

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Type    string   `json:"type"`
	Details []string `json:"details,omitempty"`
}

// Вспомогательные функции для работы с запросами
func getIntQueryParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an integer", key)
	}

	return intValue, nil
}

// getPageParams: нечисловые page/limit - ошибка, числа вне диапазона
// нормализует query.NewPagination
func getPageParams(r *http.Request) (int, int, []string) {
	var details []string

	page, err := getIntQueryParam(r, "page", 1)
	if err != nil {
		details = append(details, err.Error())
	}
	limit, err := getIntQueryParam(r, "limit", query.DefaultLimit)
	if err != nil {
		details = append(details, err.Error())
	}

	return page, limit, details
}

// getInt64QueryParam различает "не задано" (nil) и ошибку разбора
func getInt64QueryParam(r *http.Request, key string) (*int64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}

	return &intValue, nil
}

func getDimensionQueryParam(r *http.Request, key string) (*int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(value)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", key)
	}

	return &v, nil
}

func getFloatQueryParam(r *http.Request, key string) (*float64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}

	return &f, nil
}

func getBoolQueryParam(r *http.Request, key string) (*bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}

	return &b, nil
}

func getTimeQueryParam(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}

	return &t, nil
}

// getListQueryParam принимает и повторяющиеся параметры, и значения через запятую
func getListQueryParam(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// decodeJSON читает тело и прогоняет validate-теги структуры
func decodeJSON(r *http.Request, dst interface{}) []string {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return []string{"request body is required"}
		}
		return []string{"invalid request body: " + err.Error()}
	}

	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make([]string, 0, len(ve))
			for _, fe := range ve {
				details = append(details, fieldViolation(fe))
			}
			return details
		}
		return []string{err.Error()}
	}

	return nil
}

func fieldViolation(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required", "required_without":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return field + ": " + fe.Tag()
	}
}

// jsonFieldName переводит FileKey в file_key для сообщений клиенту
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Функции для отправки ответов
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	response := map[string]interface{}{
		"error": errorBody{
			Code:    code,
			Message: message,
			Type:    http.StatusText(status),
			Details: details,
		},
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

func writeValidation(w http.ResponseWriter, details ...string) {
	writeError(w, http.StatusBadRequest, codeValidation, "Request validation failed", details...)
}
