package api

import (
	"io"
	"math"
	"net/http"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// metricNameLabel selects the channel of a remote-write series.
const metricNameLabel = "__name__"

// handleRemoteWrite accepts Prometheus remote-write batches from gateways
// that scrape the sensor. Series named after a known channel are appended at
// receipt time; device timestamps are ignored. Other series are counted and
// skipped so one foreign metric does not fail the whole batch.
func (h *handler) handleRemoteWrite(w http.ResponseWriter, r *http.Request) {
	errFactory := errors.New()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, errFactory.Wrap(ErrMalformedPayload, err))
		return
	}

	decoded, err := snappy.Decode(nil, body)
	if err != nil {
		h.reject(w, errFactory.WithMessage(ErrMalformedPayload, "cannot decode snappy"))
		return
	}

	var request prompb.WriteRequest
	if err := proto.Unmarshal(decoded, &request); err != nil {
		h.reject(w, errFactory.WithMessage(ErrMalformedPayload, "cannot unmarshal protobuf"))
		return
	}

	appended, skipped := 0, 0
	for _, ts := range request.Timeseries {
		ch, ok := h.seriesChannel(ts.Labels)
		if !ok {
			skipped += len(ts.Samples)
			h.metrics.Rejected(metrics.ReasonUnknownChannel)
			continue
		}

		for _, sample := range ts.Samples {
			if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
				skipped++
				h.metrics.Rejected(metrics.ReasonNonFinite)
				continue
			}

			m, err := h.store.Record(ch, sample.Value)
			if err != nil {
				h.reject(w, err)
				return
			}
			h.accepted(r, ch, m)
			appended++
		}
	}

	logger.Debug().
		Int("series", len(request.Timeseries)).
		Int("appended", appended).
		Int("skipped", skipped).
		Msg("Remote write processed")

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) seriesChannel(labels []prompb.Label) (telemetry.Channel, bool) {
	for _, l := range labels {
		if l.Name == metricNameLabel {
			ch, ok := h.known[l.Value]
			return ch, ok
		}
	}
	return "", false
}
