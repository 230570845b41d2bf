package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"websocket-relay/config"
	"websocket-relay/internal/delivery/http1"
	"websocket-relay/internal/delivery/http3"
	"websocket-relay/internal/delivery/ws"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/repo"
	"websocket-relay/internal/repo/fs"
	"websocket-relay/internal/repo/memory"
	"websocket-relay/internal/repo/redis"
	"websocket-relay/internal/usecase/service"
	"websocket-relay/pkg/password"
	redisClient "websocket-relay/pkg/redis"
)

// По умолчанию все логи будут писаться в stdout
var logger = logrus.New()

// Структура конфигурации ретранслятора
var cfg config.RelayConfig

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:          "relay <secret> [<stream-port> [<websocket-port>]]",
		Short:        "Ретранслятор MPEG-TS потока в WebSocket с управляющим каналом",
		Args:         cobra.MaximumNArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, args); err != nil {
				return err
			}
			return run()
		},
	}
	root.Flags().String("config", "", "путь к файлу конфигурации")
	root.Flags().String("log-level", "", "уровень логирования (debug, info, warn, error)")
	_ = v.BindPFlag("config", root.Flags().Lookup("config"))
	_ = v.BindPFlag("log_level", root.Flags().Lookup("log-level"))
	root.AddCommand(newHashSecretCommand())
	return root
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <value>",
		Short: "Печатает хеш секрета администратора для admin_secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// loadConfig читает конфигурацию по приоритету: аргументы, флаги, окружение RELAY_*,
// файл relay.*, значения по умолчанию
func loadConfig(v *viper.Viper, args []string) error {
	v.SetDefault("secret", "")
	v.SetDefault("stream_host", "")
	v.SetDefault("stream_port", config.DefaultStreamPort)
	v.SetDefault("websocket_port", config.DefaultWebsocketPort)
	v.SetDefault("control_port", config.DefaultControlPort)
	v.SetDefault("admin_addr", config.DefaultAdminAddr)
	v.SetDefault("admin_secret_hash", "")
	v.SetDefault("record_stream", false)
	v.SetDefault("recordings_dir", config.DefaultRecordingsDir)
	v.SetDefault("probe_stream", true)
	v.SetDefault("send_queue", config.DefaultSendQueue)
	v.SetDefault("quic_port", 0)
	v.SetDefault("quic_cert_file", "config/localhost.pem")
	v.SetDefault("quic_key_file", "config/localhost-key.pem")
	v.SetDefault("database_url", "")
	v.SetDefault("database_number", 0)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		// Название файла конфигурации (расширение значения не имеет - viper работает с разными форматами)
		v.SetConfigName("relay")
		// Добавляем директории, в которых будем искать файл конфигурации по приоритету:
		v.AddConfigPath("./config")         // Папка с конфигурацией
		v.AddConfigPath(".")                // Корень проекта
		v.AddConfigPath("./config/example") // Если не нашли актуальную конфигурацию, то читаем пример конфигурации
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// Позиционные аргументы как у исходного ретранслятора
	if len(args) > 0 {
		v.Set("secret", args[0])
	}
	for n, key := range []string{"stream_port", "websocket_port"} {
		if len(args) <= n+1 {
			break
		}
		port, err := strconv.Atoi(args[n+1])
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, args[n+1], err)
		}
		v.Set(key, port)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

func newRecordingStorage() (repo.RecordingRepo, repo.RecordingIndex, error) {
	var recordings repo.RecordingRepo
	if cfg.RecordStream {
		var err error
		if recordings, err = fs.NewRecordingRepo(cfg.RecordingsDir); err != nil {
			return nil, nil, err
		}
	}
	if cfg.DatabaseUrl == "" {
		return recordings, memory.NewRecordingIndex(), nil
	}
	rdsClient, err := redisClient.GetRedisClient(cfg.DatabaseUrl, cfg.DatabaseNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return recordings, redis.NewRecordingIndex(rdsClient), nil
}

func run() error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	/*
		Инициализация репозиториев, сервисов и обработчиков
	*/
	recordings, index, err := newRecordingStorage()
	if err != nil {
		return err
	}
	m := metrics.New()
	broadcastUsecase := service.NewBroadcastService(m)
	controlUsecase := service.NewControlService(m)
	ingestUsecase := service.NewIngestService(broadcastUsecase, m, service.IngestOptions{
		Secret:     cfg.Secret,
		Recordings: recordings,
		Index:      index,
		Probe:      cfg.ProbeStream,
	})
	adminUsecase := service.NewAdminService(broadcastUsecase, controlUsecase, ingestUsecase, recordings, index, cfg.AdminSecretHash)

	ingestDelivery := http1.NewIngestDelivery(logger, ingestUsecase, m)
	streamDelivery := ws.NewStreamDelivery(logger, broadcastUsecase, m, cfg.SendQueue)
	controlDelivery := ws.NewControlDelivery(logger, controlUsecase, m, cfg.SendQueue)

	var quicDelivery *http3.QuicDelivery
	if cfg.QuicPort > 0 {
		tlsCert, err := tls.LoadX509KeyPair(cfg.QuicCertFile, cfg.QuicKeyFile)
		if err != nil {
			return fmt.Errorf("load certificates: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{tlsCert},
		}
		quicDelivery = http3.NewQuicDelivery(broadcastUsecase, ingestUsecase, logger, tlsConfig, m, cfg.SendQueue)
	}

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminServer = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           http1.NewAdminRouter(http1.NewAdminDelivery(logger, adminUsecase), m),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	/*
		Запуск серверов
	*/
	if recordings != nil {
		logger.Infof("Поток записывается в %s", cfg.RecordingsDir)
	}
	go func() {
		if err := ingestDelivery.Start(cfg.StreamAddr()); err != nil {
			logger.Fatalf("Ошибка запуска приёма потока: %s", err)
		}
	}()
	go func() {
		if err := streamDelivery.Start(cfg.WebsocketAddr()); err != nil {
			logger.Fatalf("Ошибка запуска WebSocket сервера: %s", err)
		}
	}()
	go func() {
		if err := controlDelivery.Start(cfg.ControlAddr()); err != nil {
			logger.Fatalf("Ошибка запуска управляющего канала: %s", err)
		}
	}()
	if quicDelivery != nil {
		go func() {
			if err := quicDelivery.Start(cfg.QuicAddr()); err != nil {
				logger.Fatalf("Ошибка запуска QUIC сервера: %s", err)
			}
		}()
	}
	if adminServer != nil {
		logger.Infof("Сервер администратора запущен на %s", cfg.AdminAddr)
		go func() {
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("Сервер администратора прекратил работу по причине: %s", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	// kill (без параметров) по умолчанию отправит syscall.SIGTERM
	// kill -2 отправит syscall.SIGINT
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Завершаем работу ретранслятора...")
	// Даём серверам 5 секунд на завершение работы
	ingestDelivery.Stop(shutdownTimeout)
	streamDelivery.Stop(shutdownTimeout)
	controlDelivery.Stop(shutdownTimeout)
	if quicDelivery != nil {
		quicDelivery.Stop(shutdownTimeout)
	}
	if adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := adminServer.Shutdown(ctx); err != nil {
			logger.Warnf("Сервер администратора остановлен с ошибкой: %s", err)
		}
	}
	logger.Infoln("Ретранслятор остановил свою работу")
	return nil
}
