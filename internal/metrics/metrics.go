package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tylerwon/go-chat-rooms/internal/logging"
)

// Prometheus counters
var (
	FramesRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rx_frames_total",
		Help: "Total frames received from TCP clients.",
	})
	FramesTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_tx_frames_total",
		Help: "Total frames sent to TCP clients.",
	})
	ChatBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_total",
		Help: "Total chat messages fanned out to a room.",
	})
	NameChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_name_changes_total",
		Help: "Total display name changes.",
	})
	RoomJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_room_joins_total",
		Help: "Total successful room joins.",
	})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_frames_total",
		Help: "Total frames dropped by the hub due to slow clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of active connected clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	RoomOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_room_users",
		Help: "Current member count per room.",
	}, []string{"room"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (protocol violations, oversize fields, truncated).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead  = "tcp_read"
	ErrTCPWrite = "tcp_write"
	ErrAccept   = "accept"
	ErrListen   = "listen"
	ErrProtocol = "protocol"
	ErrDispatch = "dispatch"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localRx         uint64
	localTx         uint64
	localBroadcasts uint64
	localNameCh     uint64
	localJoins      uint64
	localHubDrop    uint64
	localHubKick    uint64
	localHubReject  uint64
	localErrors     uint64
	localHubClients uint64
	localFanout     uint64
	localMalformed  uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesRx    uint64
	FramesTx    uint64
	Broadcasts  uint64
	NameChanges uint64
	RoomJoins   uint64
	HubDrops    uint64
	HubKicks    uint64
	HubRejects  uint64
	Errors      uint64 // sum across error labels
	HubClients  uint64
	Fanout      uint64
	Malformed   uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesRx:    atomic.LoadUint64(&localRx),
		FramesTx:    atomic.LoadUint64(&localTx),
		Broadcasts:  atomic.LoadUint64(&localBroadcasts),
		NameChanges: atomic.LoadUint64(&localNameCh),
		RoomJoins:   atomic.LoadUint64(&localJoins),
		HubDrops:    atomic.LoadUint64(&localHubDrop),
		HubKicks:    atomic.LoadUint64(&localHubKick),
		HubRejects:  atomic.LoadUint64(&localHubReject),
		Errors:      atomic.LoadUint64(&localErrors),
		HubClients:  atomic.LoadUint64(&localHubClients),
		Fanout:      atomic.LoadUint64(&localFanout),
		Malformed:   atomic.LoadUint64(&localMalformed),
	}
}

// Wrapper helpers to keep call sites simple.
func IncFramesRx() {
	FramesRx.Inc()
	atomic.AddUint64(&localRx, 1)
}

func AddFramesTx(n int) {
	FramesTx.Add(float64(n))
	atomic.AddUint64(&localTx, uint64(n))
}

func IncBroadcast() {
	ChatBroadcasts.Inc()
	atomic.AddUint64(&localBroadcasts, 1)
}

func IncNameChange() {
	NameChanges.Inc()
	atomic.AddUint64(&localNameCh, 1)
}

func IncRoomJoin() {
	RoomJoins.Inc()
	atomic.AddUint64(&localJoins, 1)
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

// SetRoomOccupancy records the member count for one room.
func SetRoomOccupancy(room string, n int) {
	RoomOccupancy.WithLabelValues(room).Set(float64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrAccept, ErrListen, ErrProtocol, ErrDispatch,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
