package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transport labels
const (
	TransportWebsocket = "websocket"
	TransportQuic      = "quic"
	TransportHTTP      = "http"
)

// Metrics собирает показатели ретранслятора. Каждый экземпляр регистрируется
// в собственном реестре, поэтому в тестах можно создавать их сколько угодно.
//
//	m := metrics.New()
//	m.Subscribers.Set(float64(count))
//	router.GET("/metrics", gin.WrapH(m.Handler()))
type Metrics struct {
	Registry *prometheus.Registry

	// Subscribers это текущее число подписчиков на поток
	Subscribers prometheus.Gauge
	// ControlPeers это число открытых управляющих соединений
	ControlPeers prometheus.Gauge
	// Devices это размер множества устройств
	Devices prometheus.Gauge
	// Producers это число активных источников
	Producers prometheus.Gauge

	// IngestedBytes считает байты, полученные от источников.
	// Labels: transport (http|quic)
	IngestedBytes *prometheus.CounterVec
	// BroadcastChunks считает разосланные куски потока
	BroadcastChunks prometheus.Counter
	// DroppedPayloads считает данные, не поставленные в очередь из-за переполнения.
	// Labels: transport (websocket|quic)
	DroppedPayloads *prometheus.CounterVec

	// AuthFailures считает источники с неверным секретом.
	// Labels: transport (http|quic)
	AuthFailures *prometheus.CounterVec
	// CommandsRelayed считает команды от браузеров
	CommandsRelayed prometheus.Counter
	// MalformedMessages считает сообщения управляющего канала, которые не удалось разобрать
	MalformedMessages prometheus.Counter
	// RecordedBytes считает байты, записанные на диск
	RecordedBytes prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		Registry: registry,
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_subscribers",
			Help: "Number of connected stream subscribers",
		}),
		ControlPeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_control_peers",
			Help: "Number of open control connections",
		}),
		Devices: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_devices",
			Help: "Number of control connections registered as devices",
		}),
		Producers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_producers",
			Help: "Number of live stream producers",
		}),
		IngestedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_ingested_bytes_total",
			Help: "Bytes received from stream producers",
		}, []string{"transport"}),
		BroadcastChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcast_chunks_total",
			Help: "Stream chunks broadcast to subscribers",
		}),
		DroppedPayloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_dropped_payloads_total",
			Help: "Payloads dropped because a connection send queue was full",
		}, []string{"transport"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Stream producers rejected because of a wrong secret",
		}, []string{"transport"}),
		CommandsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_commands_relayed_total",
			Help: "Browser commands relayed to devices",
		}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_malformed_messages_total",
			Help: "Control messages that failed to parse",
		}),
		RecordedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_recorded_bytes_total",
			Help: "Bytes written to stream recordings",
		}),
	}
}
