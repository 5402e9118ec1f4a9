package logic

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"social_distance/shared"
)

type IMetrics interface {
	StartApiRequestIn(label string) IRequestObserver
	StartFedRequestIn(label string) IRequestObserver
	StartFedRequestOut(label string) IRequestObserver
	InboxObjectStored(kind string)
	NotificationSent()
	NotificationFailed()
	FollowsReconciled(promoted, revoked int)
	ServiceStarted()
	TotalFollowers(count int)
}

type IRequestObserver interface {
	Finish()
}

type metrics struct {
	cfg             *shared.Config
	apiRequestsIn   *prometheus.HistogramVec
	fedRequestsIn   *prometheus.HistogramVec
	fedRequestsOut  *prometheus.HistogramVec
	inboxStored     *prometheus.CounterVec
	notifsSent      prometheus.Counter
	notifsFailed    prometheus.Counter
	followsPromoted prometheus.Counter
	followsRevoked  prometheus.Counter
	serviceStarted  prometheus.Counter
	totalFollowers  prometheus.Gauge
}

func NewMetrics(cfg *shared.Config) IMetrics {

	res := metrics{}
	res.cfg = cfg

	res.apiRequestsIn = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "api_requests_in_duration",
		Help: "Duration in seconds of API requests served.",
	}, []string{"label"})
	prometheus.Register(res.apiRequestsIn)

	res.fedRequestsIn = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fed_requests_in_duration",
		Help: "Duration in seconds of federation requests served.",
	}, []string{"label"})
	prometheus.Register(res.fedRequestsIn)

	res.fedRequestsOut = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fed_requests_out_duration",
		Help: "Duration in seconds of federation requests made.",
	}, []string{"label"})
	prometheus.Register(res.fedRequestsOut)

	res.inboxStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_objects_stored",
		Help: "Number of objects delivered into inboxes",
	}, []string{"kind"})
	prometheus.Register(res.inboxStored)

	res.notifsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent",
		Help: "Number of outbound notifications delivered",
	})
	prometheus.Register(res.notifsSent)

	res.notifsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed",
		Help: "Number of outbound notifications that failed",
	})
	prometheus.Register(res.notifsFailed)

	res.followsPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follows_promoted",
		Help: "Number of follows promoted to accepted by reconciliation",
	})
	prometheus.Register(res.followsPromoted)

	res.followsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "follows_revoked",
		Help: "Number of follows deleted as revoked by reconciliation",
	})
	prometheus.Register(res.followsRevoked)

	res.serviceStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "service_started",
		Help: "Service has started up",
	})
	prometheus.Register(res.serviceStarted)

	res.totalFollowers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "total_follower_count",
		Help: "Total follower edges stored on this node",
	})
	prometheus.Register(res.totalFollowers)

	return &res
}

type requestObserver struct {
	label string
	start time.Time
	hgvec *prometheus.HistogramVec
}

func (ro *requestObserver) Finish() {
	now := time.Now()
	elapsed := float64(now.UnixMilli()-ro.start.UnixMilli()) / 1000.0
	ro.hgvec.WithLabelValues(ro.label).Observe(elapsed)
}

func (m *metrics) StartApiRequestIn(label string) IRequestObserver {
	return &requestObserver{label, time.Now(), m.apiRequestsIn}
}

func (m *metrics) StartFedRequestIn(label string) IRequestObserver {
	return &requestObserver{label, time.Now(), m.fedRequestsIn}
}

func (m *metrics) StartFedRequestOut(label string) IRequestObserver {
	return &requestObserver{label, time.Now(), m.fedRequestsOut}
}

func (m *metrics) InboxObjectStored(kind string) {
	m.inboxStored.WithLabelValues(kind).Add(1)
}

func (m *metrics) NotificationSent() {
	m.notifsSent.Add(1)
}

func (m *metrics) NotificationFailed() {
	m.notifsFailed.Add(1)
}

func (m *metrics) FollowsReconciled(promoted, revoked int) {
	m.followsPromoted.Add(float64(promoted))
	m.followsRevoked.Add(float64(revoked))
}

func (m *metrics) ServiceStarted() {
	m.serviceStarted.Add(1)
}

func (m *metrics) TotalFollowers(count int) {
	m.totalFollowers.Set(float64(count))
}
