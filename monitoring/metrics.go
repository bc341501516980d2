package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// BookableEventsKey is the redis set holding the ids of events open for sale.
const BookableEventsKey = "events:bookable"

var (
	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order placement and cancellation outcomes",
		},
		[]string{"status"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued by committed orders",
		},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Check-in attempts by result",
		},
		[]string{"result"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries per channel",
		},
		[]string{"channel", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	bookableEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookable_events",
			Help: "Events currently open for ticket sales",
		},
	)
)

func TrackOrder(status string) {
	ordersTotal.WithLabelValues(status).Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackCheckIn(result string) {
	checkins.WithLabelValues(result).Inc()
}

func TrackNotification(channel, status string) {
	notifications.WithLabelValues(channel, status).Inc()
}

type Monitor struct {
	redis    redis.Cmdable
	interval time.Duration
}

func NewMonitor(redisClient redis.Cmdable) *Monitor {
	return &Monitor{redis: redisClient, interval: 30 * time.Second}
}

// Run refreshes the gauges until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	n, err := m.redis.SCard(ctx, BookableEventsKey).Result()
	if err != nil {
		slog.Warn("Failed to read bookable events", "error", err)
		return
	}
	bookableEvents.Set(float64(n))
}

// RequestDuration observes every request routed through it.
func RequestDuration() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		start := time.Now()
		err := e.Next()

		code := e.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := e.Request.Pattern
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
		return err
	}
}
