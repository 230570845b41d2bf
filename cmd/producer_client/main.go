package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"os/exec"
	"websocket-relay/config"
	"websocket-relay/internal/delivery/http3"
)

var log = logrus.New()

func main() {
	var cfg config.ClientConfig
	var input string
	root := &cobra.Command{
		Use:   "producer_client",
		Short: "Кодирует видео в MPEG-TS через ffmpeg и отправляет его ретранслятору по QUIC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, input)
		},
	}
	root.Flags().StringVar(&cfg.Addr, "address", "localhost:4242", "адрес QUIC сервера ретранслятора")
	root.Flags().StringVar(&cfg.Secret, "secret", os.Getenv("RELAY_SECRET"), "секрет источника")
	root.Flags().StringVar(&input, "input", "assets/output.mp4", "исходное видео")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, input string) error {
	// Самоподписанный сертификат для разработки
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{http3.NextProto},
	}
	conn, err := quic.DialAddr(context.Background(), cfg.GetAddress(), tlsConfig, http3.NewQuicConfig())
	if err != nil {
		return err
	}
	defer conn.CloseWithError(0, "Connection closed")

	// Согласно протоколу, первая датаграмма это роль источника и секрет
	if err := conn.SendDatagram(append([]byte{http3.HelloProducer}, cfg.Secret...)); err != nil {
		return err
	}
	stream, err := conn.OpenStreamSync(context.Background())
	if err != nil {
		return err
	}
	defer stream.Close()

	// Используем FFmpeg для кодирования в MPEG-TS с видео MPEG-1, как ожидает JSMpeg
	cmd := exec.Command("ffmpeg",
		"-re",       // Реальное время
		"-i", input, // Исходное видео
		"-f", "mpegts",
		"-codec:v", "mpeg1video",
		"-b:v", "1000k",
		"-bf", "0",
		"-codec:a", "mp2",
		"pipe:1",
	)
	// Связываем stdout FFmpeg с потоком QUIC
	cmd.Stdout = stream
	cmd.Stderr = os.Stderr

	log.Infof("Отправка потока на %s через QUIC...", cfg.GetAddress())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	log.Infof("Отправка потока остановлена")
	return nil
}
