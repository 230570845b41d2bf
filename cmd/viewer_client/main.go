package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"io"
	"os"
	"os/exec"
	"websocket-relay/config"
	"websocket-relay/internal/delivery/http3"
)

var log = logrus.New()

func main() {
	var cfg config.ClientConfig
	var player bool
	root := &cobra.Command{
		Use:   "viewer_client",
		Short: "Получает MPEG-TS поток по QUIC и передаёт его в ffplay или stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, player)
		},
	}
	root.Flags().StringVar(&cfg.Addr, "address", "localhost:4242", "адрес QUIC сервера ретранслятора")
	root.Flags().BoolVar(&player, "ffplay", false, "воспроизводить поток через ffplay вместо вывода в stdout")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, player bool) error {
	// Самоподписанный сертификат для разработки
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{http3.NextProto},
	}
	conn, err := quic.DialAddr(context.Background(), cfg.GetAddress(), tlsConfig, http3.NewQuicConfig())
	if err != nil {
		return fmt.Errorf("не удалось подключиться к серверу: %w", err)
	}
	defer conn.CloseWithError(0, "Connection closed")

	if err := conn.SendDatagram([]byte{http3.HelloSubscriber}); err != nil {
		return err
	}
	stream, err := conn.AcceptUniStream(context.Background())
	if err != nil {
		return fmt.Errorf("не удалось открыть поток: %w", err)
	}
	log.Infof("Получаем поток с %s", conn.RemoteAddr())

	if !player {
		_, err = io.Copy(os.Stdout, stream)
		return err
	}

	cmd := exec.Command("ffplay", "-fflags", "nobuffer", "-loglevel", "warning", "-i", "pipe:0")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ошибка создания stdin pipe для ffplay: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ошибка запуска ffplay: %w", err)
	}
	_, copyErr := io.Copy(stdin, stream)
	_ = stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffplay завершился с ошибкой: %w", err)
	}
	return copyErr
}
