// internal/pkg/httpjson/httpjson.go
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/logger"
)

// errorBody 是对外的统一错误形态：稳定的机器码加一句人话，
// 不暴露堆栈和内部标识。
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeNotFound:          http.StatusNotFound,
	apperrors.CodeUnauthorized:      http.StatusForbidden,
	apperrors.CodeConflict:          http.StatusConflict,
	apperrors.CodeInvalidState:      http.StatusConflict,
	apperrors.CodeInsufficientStock: http.StatusConflict,
	apperrors.CodeAmountMismatch:    http.StatusUnprocessableEntity,
	apperrors.CodeGatewayError:      http.StatusBadGateway,
	apperrors.CodeValidation:        http.StatusBadRequest,
}

// WriteJSON 输出一个 JSON 应答。
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError 把业务错误翻译成 HTTP 应答。
// 没有业务码的错误一律按 500 处理；包装进来的底层原因只进日志，
// 应答里只带业务描述。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var body errorBody
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		logger.Ctx(r.Context()).Error().Err(err).Msg("unhandled internal error")
		body.Error.Code = "INTERNAL"
		body.Error.Message = "internal server error"
		WriteJSON(w, http.StatusInternalServerError, body)
		return
	}

	status, found := statusByCode[appErr.Code]
	if !found {
		status = http.StatusInternalServerError
	}
	if appErr.Unwrap() != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("request failed")
	}
	body.Error.Code = string(appErr.Code)
	body.Error.Message = appErr.Message
	WriteJSON(w, status, body)
}

// UserID 从网关注入的 X-User-ID 头里取出已认证的用户。
// 身份签发在系统外完成，这里只消费结果。
func UserID(r *http.Request) (uint64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, apperrors.New(apperrors.CodeUnauthorized, "missing X-User-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New(apperrors.CodeUnauthorized, "invalid X-User-ID header")
	}
	return id, nil
}

// VendorID 同上，取 X-Vendor-ID。
func VendorID(r *http.Request) (uint64, error) {
	raw := r.Header.Get("X-Vendor-ID")
	if raw == "" {
		return 0, apperrors.New(apperrors.CodeUnauthorized, "missing X-Vendor-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New(apperrors.CodeUnauthorized, "invalid X-Vendor-ID header")
	}
	return id, nil
}

// PathID 解析路径末段的数字 ID。
func PathID(r *http.Request, name string) (uint64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Newf(apperrors.CodeValidation, "invalid %s", name)
	}
	return id, nil
}
