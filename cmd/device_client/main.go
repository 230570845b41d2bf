package main

import (
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
	"websocket-relay/config"
	"websocket-relay/internal/entity"
)

var log = logrus.New()

func main() {
	var cfg config.ClientConfig
	root := &cobra.Command{
		Use:   "device_client",
		Short: "Подключается к управляющему каналу как устройство и печатает полученные команды",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	root.Flags().StringVar(&cfg.Addr, "address", "ws://localhost:8090/", "адрес управляющего канала")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig) error {
	conn, _, err := websocket.DefaultDialer.Dial(cfg.GetAddress(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Регистрируемся как устройство, повторная регистрация ничего не меняет
	hello, err := json.Marshal(entity.ControlMessage{Client: entity.RoleDevice})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return err
	}
	log.Infof("Зарегистрированы как устройство на %s", cfg.GetAddress())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			log.Infof("Соединение закрыто: %s", err)
			return nil
		}
		var message entity.CommandMessage
		if err := json.Unmarshal(data, &message); err != nil {
			log.Warnf("Не удалось разобрать команду: %s", err)
			continue
		}
		log.WithField("command", string(message.Command)).Infof("Получена команда")
	}
}
