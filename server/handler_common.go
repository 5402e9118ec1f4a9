package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"social_distance/shared"
)

const (
	metricsAuthHeader = "Authorization"
	internalErrorStr  = "500 Internal Server Error"
	badRequestStr     = "400 Invalid Request"
	badAuthorization  = "401 Missing or Invalid Authorization"
)

// Defines a single HTTP handler (endpoint)
type handlerDef struct {
	method  string
	pattern string
	handler func(http.ResponseWriter, *http.Request)
}

// IHandlerGroup groups together multiple HTTP handler definitions.
type IHandlerGroup interface {
	Prefix() string
	GroupDefs() []handlerDef
	AuthMW() func(next http.Handler) http.Handler
}

func emptyMW(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	})
}

// Returns the JSON serialized object as the response body; handles errors.
func writeJsonResponse(logger shared.ILogger, w http.ResponseWriter, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	var respJson []byte
	if respJson, err = json.Marshal(resp); err != nil {
		logger.Warnf("Failed to serialize response: %v\n", err)
		http.Error(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
	if _, err = fmt.Fprintln(w, string(respJson)); err != nil {
		logger.Warnf("Failed to write response: %v\n", err)
		http.Error(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
}

type errorResp struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeErrorResponse(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	resp := errorResp{msg, code}
	respJson, _ := json.Marshal(resp)
	http.Error(w, string(respJson), code)
}

// writeServiceError is the single spot where error categories become HTTP
// statuses. Federation partners depend on these exact codes.
func writeServiceError(logger shared.ILogger, w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, shared.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthenticationFailed):
		code = http.StatusUnauthorized
	case errors.Is(err, shared.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, shared.ErrAmbiguousState):
		code = http.StatusInternalServerError
		logger.Errorf("Data integrity violation: %v", err)
	default:
		code = http.StatusInternalServerError
		logger.Errorf("Unexpected error: %v", err)
	}
	writeErrorResponse(w, err.Error(), code)
}

func readBody(logger shared.ILogger, w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warnf("Failed to read request body: %v", err)
		http.Error(w, badRequestStr, http.StatusBadRequest)
		return nil
	}
	return body
}

func pageParam(r *http.Request) int {
	page := 1
	if str := r.URL.Query().Get("page"); str != "" {
		fmt.Sscanf(str, "%d", &page)
	}
	if page < 1 {
		page = 1
	}
	return page
}

func sizeParam(r *http.Request, defaultSize int) int {
	size := defaultSize
	if str := r.URL.Query().Get("size"); str != "" {
		fmt.Sscanf(str, "%d", &size)
	}
	if size < 1 {
		size = defaultSize
	}
	return size
}
