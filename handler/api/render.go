package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/oxtoacart/bpool"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/flow"
	"github.com/pandodao/safe-pay/service/loader"
)

type errorView struct {
	Code int       `json:"code"`
	Kind flow.Kind `json:"kind,omitempty"`
	Msg  string    `json:"msg"`
}

var buffers = bpool.NewBufferPool(64)

func renderJSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "marshal response", "err", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	renderJSON(w, r, code, errorView{
		Code: code,
		Kind: flow.KindOf(err),
		Msg:  err.Error(),
	})
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	renderJSON(w, r, http.StatusBadRequest, errorView{Code: http.StatusBadRequest, Msg: msg})
}

var kindStatus = map[flow.Kind]int{
	flow.KindCameraUnavailable:     http.StatusServiceUnavailable,
	flow.KindPermissionDenied:      http.StatusForbidden,
	flow.KindRecipientNotFound:     http.StatusNotFound,
	flow.KindRecipientRequired:     http.StatusBadRequest,
	flow.KindSelfTransfer:          http.StatusBadRequest,
	flow.KindInvalidAmount:         http.StatusBadRequest,
	flow.KindInvalidMemo:           http.StatusBadRequest,
	flow.KindInsufficientBalance:   http.StatusUnprocessableEntity,
	flow.KindSubmissionInFlight:    http.StatusConflict,
	flow.KindSubmissionFailure:     http.StatusBadGateway,
	flow.KindReconciliationFailure: http.StatusBadGateway,
	flow.KindSessionClosed:         http.StatusGone,
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrMissingToken), errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	}

	if code, ok := kindStatus[flow.KindOf(err)]; ok {
		return code
	}

	return http.StatusInternalServerError
}
