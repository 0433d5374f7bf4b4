package http

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	queryLabel   = "query"
)

var (
	debugQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_queries_total",
		Help: "The number of tree queries made through the debug endpoints.",
	}, []string{queryLabel})

	debugQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_query_errors_total",
		Help: "The errors that occured while handling a debug query.",
	}, []string{queryLabel, errTypeLabel})
)

func instrumentQuery(query string, err error) {
	if err != nil {
		debugQueryErrors.WithLabelValues(query, errors.Type(err)).Inc()
		return
	}
	debugQueries.WithLabelValues(query).Inc()
}
