package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	policyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "policy_rejections_total",
			Help:      "Count of booking operations rejected by policy rule.",
		},
		[]string{"rule"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "booking_conflicts_total",
			Help:      "Count of bookings rejected because the slot was taken.",
		},
	)

	availabilityRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "availability_requests_total",
			Help:      "Count of availability resolutions served.",
		},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "reminders_sent_total",
			Help:      "Count of booking reminders delivered.",
		},
	)

	remindersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapisly",
			Name:      "reminders_failed_total",
			Help:      "Count of booking reminders that could not be delivered.",
		},
	)

	reminderSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zapisly",
			Name:      "reminder_send_duration_seconds",
			Help:      "Time spent delivering a single reminder.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCancelled, policyRejections, bookingConflicts,
			availabilityRequests, remindersSent, remindersFailed, reminderSendDuration,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncPolicyRejection(rule string) {
	policyRejections.WithLabelValues(rule).Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func IncAvailabilityRequest() {
	availabilityRequests.Inc()
}

func IncReminderSent() {
	remindersSent.Inc()
}

func IncReminderFailed() {
	remindersFailed.Inc()
}

func ObserveReminderSend(seconds float64) {
	reminderSendDuration.Observe(seconds)
}
