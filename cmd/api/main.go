// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/transport"
	"github.com/spf13/cast"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
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
	if err := zlog.SetLevel(valueOr(appConfig.GetString("LOG_LEVEL"), "info")); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn, err := repository.ConnectWithRetries(appConfig.GetString("POSTGRES_DSN"), 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB. Exiting the app...")
	}
	// накатываем миграцию
	migrations := valueOr(appConfig.GetString("MIGRATIONS_PATH"), "./migrations")
	if err := repository.MigrateWithRetries(dbConn.Master, migrations, 10, 15*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to apply migrations. Exiting the app...")
	}

	// подключиться к хранилищу
	strg, err := storage.NewImgStorage(ctx, appConfig, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to IMG-storage. Exiting the app...")
	}
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is unreachable. Exiting the app...")
	}
	// подключиться к кафке как продюсер
	topic := appConfig.GetString("KAFKA_TOPIC")
	if err := kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init kafka topics. Exiting the app...")
	}
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// шрифты и ядро наложения
	fonts, err := fontprovider.New(appConfig.GetString("FONTS_DIR"))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load fonts. Exiting the app...")
	}
	compositor := imageproc.NewCompositor(fonts)

	// создаем экземпляр сервиса
	var svc JobAPIService = service.NewJobService(repo, pub, strg, compositor, fonts, service.Options{
		Keys: service.KeyPrefixes{
			Source:    appConfig.GetString("SRC_KEY"),
			Watermark: appConfig.GetString("WM_KEY"),
			Result:    appConfig.GetString("RESULT_KEY"),
		},
		PreviewSide: cast.ToInt(appConfig.GetString("PREVIEW_MAX_SIDE")),
	})
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewJobHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/fonts", handlers.Fonts)                 // доступные шрифты
	engine.POST("/watermarks/preview", handlers.Preview) // синхронное превью
	engine.POST("/images/upload", handlers.Create)       // создание задачи
	engine.GET("/images/:id", handlers.LoadResult)       // загрузка результата
	engine.GET("/images", handlers.GetAllImages)         // получение списка задач с пагинацией и сортировкой
	engine.DELETE("/images/:id", handlers.Delete)        // удаление

	srv := &http.Server{
		Addr:    ":" + valueOr(appConfig.GetString("APP_PORT"), "8080"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Msgf("Server running on http://localhost%s", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// запускаем фонового воркера для отслеживания подвисших задач
	go recoveryLoop(ctx, svc, time.Minute)

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(srv, pub, dbConn)
	zlog.Logger.Info().Msg("Exiting API...")
}

func recoveryLoop(ctx context.Context, svc JobAPIService, every time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Recovery loop crashed")
		}
	}()

	ctx = mwlogger.WithLogger(ctx, zlog.Logger.With().Str("loop", "recovery").Logger())
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(ctx, 20)
		}
	}
}

func shutdown(srv *http.Server, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Stopping HTTP server
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server correctly")
	}

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-producer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
