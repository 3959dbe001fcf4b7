package services

import (
	"errors"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fileOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filekeeper_file_operations_total",
		Help: "File operations by kind and outcome",
	}, []string{"op", "result"})

	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filekeeper_uploaded_bytes_total",
		Help: "Bytes accepted by successful uploads",
	})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filekeeper_compensations_total",
		Help: "Object store changes undone after a metadata failure, by op and outcome",
	}, []string{"op", "result"})
)

func observe(op string, err error) {
	fileOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorInternal):
		return "error"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrConflict):
		return "conflict"
	case errors.Is(err, common.ErrBadRequest), errors.Is(err, common.ErrInvalidFileType):
		return "bad_request"
	default:
		return "error"
	}
}

func compensated(op string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	compensationsTotal.WithLabelValues(op, result).Inc()
}
