// Package main (in worker-subfolder) runs the consumer which applies watermarks to queued jobs
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cast"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn, err := repository.ConnectWithRetries(appConfig.GetString("POSTGRES_DSN"), 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB. Exiting worker...")
	}
	// подкллючиться к хранилищу
	strg, err := storage.NewImgStorage(ctx, appConfig, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to IMG-storage. Exiting worker...")
	}
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)

	// шрифты и ядро наложения
	fonts, err := fontprovider.New(appConfig.GetString("FONTS_DIR"))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load fonts. Exiting worker...")
	}
	compositor := imageproc.NewCompositor(fonts)

	// создаем экземпляр сервиса
	var svc worker.JobWorkerService = service.NewJobService(repo, worker.NoopPublisher{}, strg, compositor, fonts, service.Options{
		Keys: service.KeyPrefixes{Result: appConfig.GetString("RESULT_KEY")},
	})

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is unreachable. Exiting worker...")
	}
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркерам и запускаем их
	workers := max(cast.ToInt(appConfig.GetString("WORKERS")), 1)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.NewWorkerInstance(strg, svc, compositor, queue, cons, appConfig.GetString("RESULT_KEY")).StartWorker(ctx)
		}()
	}
	zlog.Logger.Info().Int("workers", workers).Msg("Workers started")

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()
	wg.Wait()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
