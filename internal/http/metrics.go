package http

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	calendarWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "calendar_writes_total",
		Help:      "Calendar create, update and delete operations.",
	}, []string{"op"})

	marksSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "marks_saved_total",
		Help:      "Attendance marks written by bulk upserts.",
	})

	gateRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "gate_rejections_total",
		Help:      "Attendance requests refused because the date is not a school day.",
	}, []string{"reason"})
)

func observeRequest(method, route string, status int) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
