package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_booking_admissions_total",
			Help: "Booking requests by outcome",
		},
		[]string{"outcome"},
	)

	terminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_booking_terminations_total",
			Help: "Bookings taken out of Active by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	occupiedRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_rooms_occupied",
			Help: "Occupied rooms as of the last rooms snapshot",
		},
	)

	notifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_notifier_failures_total",
			Help: "Change notifier sink failures and dropped events",
		},
		[]string{"sink"},
	)

	leaseWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "room_lease_wait_seconds",
			Help:    "Time spent acquiring room and user leases",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	repairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_occupancy_repairs_total",
			Help: "Occupancy rows rewritten by reconcile",
		},
		[]string{"kind"},
	)
)

// TrackAdmission records a booking request outcome ("admitted" or a rejection reason).
func TrackAdmission(outcome string) {
	admissions.WithLabelValues(outcome).Inc()
}

// TrackTermination records an end/force-end/cancel outcome.
func TrackTermination(mode, outcome string) {
	terminations.WithLabelValues(mode, outcome).Inc()
}

func SetOccupiedRooms(n int) {
	occupiedRooms.Set(float64(n))
}

func TrackNotifierFailure(sink string) {
	notifierFailures.WithLabelValues(sink).Inc()
}

func TrackLeaseWait(d time.Duration) {
	leaseWait.Observe(d.Seconds())
}

func TrackRepair(kind string, n int) {
	repairs.WithLabelValues(kind).Add(float64(n))
}
