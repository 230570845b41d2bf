package config

import (
	"errors"
	"fmt"
)

// Значения по умолчанию совпадают с исходным ретранслятором
const (
	DefaultStreamPort    = 8081
	DefaultWebsocketPort = 8082
	DefaultControlPort   = 8090
	DefaultAdminAddr     = ":8083"
	DefaultRecordingsDir = "recordings"
	DefaultSendQueue     = 256
)

var (
	ErrEmptySecret   = errors.New("stream secret is empty")
	ErrInvalidPort   = errors.New("invalid port")
	ErrDuplicatePort = errors.New("duplicate port")
)

type RelayConfig struct {
	Secret          string `mapstructure:"secret"`
	StreamHost      string `mapstructure:"stream_host"`
	StreamPort      int    `mapstructure:"stream_port"`
	WebsocketPort   int    `mapstructure:"websocket_port"`
	ControlPort     int    `mapstructure:"control_port"`
	AdminAddr       string `mapstructure:"admin_addr"`
	AdminSecretHash string `mapstructure:"admin_secret_hash"`
	RecordStream    bool   `mapstructure:"record_stream"`
	RecordingsDir   string `mapstructure:"recordings_dir"`
	ProbeStream     bool   `mapstructure:"probe_stream"`
	SendQueue       int    `mapstructure:"send_queue"`
	QuicPort        int    `mapstructure:"quic_port"`
	QuicCertFile    string `mapstructure:"quic_cert_file"`
	QuicKeyFile     string `mapstructure:"quic_key_file"`
	DatabaseUrl     string `mapstructure:"database_url"`
	DatabaseNumber  int    `mapstructure:"database_number"`
	LogLevel        string `mapstructure:"log_level"`
}

// Validate проверяет, что конфигурация пригодна для запуска ретранслятора
func (c *RelayConfig) Validate() error {
	if c.Secret == "" {
		return ErrEmptySecret
	}
	ports := map[string]int{
		"stream_port":    c.StreamPort,
		"websocket_port": c.WebsocketPort,
		"control_port":   c.ControlPort,
	}
	seen := make(map[int]string, len(ports))
	for name, port := range ports {
		if port <= 0 || port > 65535 {
			return errors.Join(ErrInvalidPort, fmt.Errorf("%s: %d", name, port))
		}
		if other, ok := seen[port]; ok {
			return errors.Join(ErrDuplicatePort, fmt.Errorf("%s and %s: %d", other, name, port))
		}
		seen[port] = name
	}
	// QUIC работает поверх UDP, поэтому совпадение с TCP-портами допустимо
	if c.QuicPort < 0 || c.QuicPort > 65535 {
		return errors.Join(ErrInvalidPort, fmt.Errorf("quic_port: %d", c.QuicPort))
	}
	if c.QuicPort > 0 && (c.QuicCertFile == "" || c.QuicKeyFile == "") {
		return fmt.Errorf("quic_port is set but quic_cert_file or quic_key_file is empty")
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("send_queue must be positive, got %d", c.SendQueue)
	}
	return nil
}

// StreamAddr возвращает адрес, на котором принимается MPEG-TS поток
func (c *RelayConfig) StreamAddr() string {
	return fmt.Sprintf("%s:%d", c.StreamHost, c.StreamPort)
}

func (c *RelayConfig) WebsocketAddr() string {
	return fmt.Sprintf("%s:%d", c.StreamHost, c.WebsocketPort)
}

func (c *RelayConfig) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.StreamHost, c.ControlPort)
}

func (c *RelayConfig) QuicAddr() string {
	return fmt.Sprintf("%s:%d", c.StreamHost, c.QuicPort)
}

// ClientConfig общий для клиентских утилит
type ClientConfig struct {
	Addr   string `mapstructure:"address"`
	Secret string `mapstructure:"secret"`
}

func (c *ClientConfig) GetAddress() string {
	return c.Addr
}
