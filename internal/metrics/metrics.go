package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Presence metrics
	ActivityUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vergepresence_activity_updates_total",
			Help: "Activity updates applied to the presence service",
		},
		[]string{"result"},
	)

	ConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vergepresence_connect_attempts_total",
			Help: "Connection attempts to the presence service",
		},
		[]string{"result"},
	)

	CommandsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vergepresence_commands_dropped_total",
			Help: "Presence commands dropped because the actor queue was full",
		},
		[]string{"command"},
	)

	Connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vergepresence_connected",
			Help: "1 when the presence service connection is live",
		},
	)

	// Controller metrics
	ControllerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vergepresence_controller_errors_total",
			Help: "Failed requests against the proxy engine controller",
		},
		[]string{"endpoint"},
	)

	// Traffic metrics
	TrafficTotalBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vergepresence_traffic_total_bytes",
			Help: "Persisted lifetime traffic",
		},
		[]string{"direction"},
	)

	TrafficRateBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vergepresence_traffic_rate_bytes",
			Help: "Latest instantaneous traffic rate in bytes per second",
		},
		[]string{"direction"},
	)

	// Loop metrics
	LoopGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vergepresence_loop_generations_total",
			Help: "Update loop generations started",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActivityUpdates,
		ConnectAttempts,
		CommandsDropped,
		Connected,
		ControllerErrors,
		TrafficTotalBytes,
		TrafficRateBytes,
		LoopGenerations,
	)
}

// Server 指标 HTTP 服务
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer 创建指标服务
func NewServer(addr string, logger *logrus.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Start 在后台监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.WithField("addr", ln.Addr().String()).Info("指标服务已启动")

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("指标服务异常退出")
		}
	}()
	return nil
}

// Stop 关闭指标服务
func (s *Server) Stop() error {
	return s.server.Close()
}
