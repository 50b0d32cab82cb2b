package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/vitalsd/internal/archive"
	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"codeberg.org/mutker/vitalsd/internal/render"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

type handler struct {
	store    telemetry.Appender
	channels []telemetry.Channel
	known    map[string]telemetry.Channel
	frames   FrameSource
	metrics  *metrics.Metrics
	archive  archive.Recorder

	statusCount atomic.Uint64
}

func newHandler(deps Deps) *handler {
	channels := deps.Store.Channels()
	known := make(map[string]telemetry.Channel, len(channels))
	for _, ch := range channels {
		known[string(ch)] = ch
	}

	return &handler{
		store:    deps.Store,
		channels: channels,
		known:    known,
		frames:   deps.Frames,
		metrics:  deps.Metrics,
		archive:  deps.Archive,
	}
}

type statusResponse struct {
	Status   string `json:"status"`
	Requests uint64 `json:"requests"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type frameResponse struct {
	Rendered time.Time       `json:"rendered"`
	Title    string          `json:"title"`
	Taken    time.Time       `json:"taken"`
	Series   []render.Series `json:"series"`
}

// handleStatus is the liveness check. It never touches the store.
func (h *handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	n := h.statusCount.Add(1)
	h.metrics.StatusRequest()

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Requests: n})
}

// handleVariables accepts one reading per known channel. The whole payload
// is validated before the first append, so a rejected request leaves the
// store untouched.
func (h *handler) handleVariables(w http.ResponseWriter, r *http.Request) {
	values, err := h.decodeVariables(w, r)
	if err != nil {
		h.reject(w, err)
		return
	}

	recorded := make(map[telemetry.Channel]telemetry.Measurement, len(h.channels))
	for _, ch := range h.channels {
		m, err := h.store.Record(ch, values[ch])
		if err != nil {
			// Channel set is fixed, so this only happens on a mismatched store.
			h.reject(w, err)
			return
		}
		recorded[ch] = m
		h.accepted(r, ch, m)
	}

	writeJSON(w, http.StatusOK, recorded)
}

func (h *handler) decodeVariables(w http.ResponseWriter, r *http.Request) (map[telemetry.Channel]float64, error) {
	errFactory := errors.New()

	var payload map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return nil, errFactory.Wrap(ErrMalformedPayload, err)
	}
	if payload == nil {
		return nil, errFactory.WithMessage(ErrMalformedPayload, "expected a JSON object")
	}

	values := make(map[telemetry.Channel]float64, len(h.channels))
	for name, raw := range payload {
		ch, ok := h.known[name]
		if !ok {
			return nil, errFactory.WithData(telemetry.ErrUnknownChannel, name)
		}

		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, errFactory.WithData(ErrMissingChannel, name)
		}

		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errFactory.WithData(ErrMalformedPayload, name+": "+err.Error())
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errFactory.WithData(ErrNonFiniteValue, name)
		}
		values[ch] = v
	}

	for _, ch := range h.channels {
		if _, ok := values[ch]; !ok {
			return nil, errFactory.WithData(ErrMissingChannel, string(ch))
		}
	}

	return values, nil
}

func (h *handler) handleChart(w http.ResponseWriter, _ *http.Request) {
	frame := h.frames.Latest()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New().WithMessage(ErrNoFrame, "no chart rendered yet"))
		return
	}

	writeJSON(w, http.StatusOK, frameResponse{
		Rendered: frame.Rendered,
		Title:    frame.Chart.Title,
		Taken:    frame.Chart.Taken,
		Series:   frame.Chart.Series,
	})
}

func (h *handler) handleChartPNG(w http.ResponseWriter, _ *http.Request) {
	frame := h.frames.Latest()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New().WithMessage(ErrNoFrame, "no chart rendered yet"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame.PNG)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", frame.Rendered.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame.PNG)
}

// accepted updates metrics and the archive for one stored measurement.
// Archive failures are logged and never fail the request.
func (h *handler) accepted(r *http.Request, ch telemetry.Channel, m telemetry.Measurement) {
	h.metrics.Appended(ch)

	if err := h.archive.Record(r.Context(), ch, m); err != nil {
		logger.ErrorWithCode(err).Str("channel", string(ch)).Msg("Failed to archive measurement")
	}
}

func (h *handler) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.HasCode(err, telemetry.ErrUnknownChannel):
		h.metrics.Rejected(metrics.ReasonUnknownChannel)
	case errors.HasCode(err, ErrNonFiniteValue):
		h.metrics.Rejected(metrics.ReasonNonFinite)
	default:
		h.metrics.Rejected(metrics.ReasonMalformed)
	}

	logger.Debug().Str("error_code", string(errors.CodeOf(err))).Err(err).Msg("Rejected ingestion request")
	writeError(w, http.StatusBadRequest, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  string(errors.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
