package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	pginfra "quiz-duel-service/internal/infra/postgres"
	redisinfra "quiz-duel-service/internal/infra/redis"
	transport "quiz-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.TopicLoader = memory.NewStaticTopicLoader(sampleTopics())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}
	questionTTL := config.TTLDuration(cfg.Duel.QuestionTTL, 10*time.Minute)
	bank := memory.NewQuestionBank(loader, questionTTL)

	broker := memory.NewEventBroker()
	var events app.EventPublisher = broker
	var tickets app.TicketPool = memory.NewTicketPool()
	if redisClient != nil {
		events = redisinfra.NewEventPublisher(redisClient, broker)
		tickets = redisinfra.NewTicketPool(redisClient, redisTTL)
	}

	var players app.PlayerRepository = memory.NewPlayerStore()
	var archiver app.DuelArchiver
	if pool != nil {
		players = pginfra.NewPlayerStore(pool)
		archiver = pginfra.NewDuelArchive(pool)
	}

	service := app.NewArenaService(app.ArenaConfig{
		Tickets:       tickets,
		Duels:         memory.NewDuelStore(),
		Players:       players,
		Questions:     bank,
		Events:        events,
		Rewards:       memory.NewLogRewardsNotifier(),
		Archiver:      archiver,
		KFactor:       cfg.Duel.KFactor,
		RoundsPerDuel: cfg.Duel.Rounds,
	})
	wsHandler := transport.NewWSHandler(service, broker)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/duel", transport.NewDuelHandler(service))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting duel service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleTopics provides a minimal question bank for dependency-free starts;
// production deployments load questions from Postgres instead.
func sampleTopics() map[string][]domain.Question {
	options := func(right, wrong string) []domain.Option {
		return []domain.Option{
			{ID: "o1", Text: right},
			{ID: "o2", Text: wrong},
		}
	}
	math := []domain.Question{
		{ID: "math-1", Topic: "math", Prompt: "What is 2 + 2?", Options: options("4", "5"), Answer: "o1"},
		{ID: "math-2", Topic: "math", Prompt: "What is 9 * 3?", Options: options("27", "21"), Answer: "o1"},
		{ID: "math-3", Topic: "math", Prompt: "What is 12 / 4?", Options: options("3", "4"), Answer: "o1"},
		{ID: "math-4", Topic: "math", Prompt: "What is 7 - 5?", Options: options("2", "3"), Answer: "o1"},
		{ID: "math-5", Topic: "math", Prompt: "What is 10 % 3?", Options: options("1", "0"), Answer: "o1"},
	}
	general := []domain.Question{
		{ID: "gen-1", Prompt: "Largest planet in the solar system?", Options: options("Jupiter", "Saturn"), Answer: "o1"},
		{ID: "gen-2", Prompt: "Chemical symbol for gold?", Options: options("Au", "Ag"), Answer: "o1"},
		{ID: "gen-3", Prompt: "How many continents are there?", Options: options("7", "6"), Answer: "o1"},
		{ID: "gen-4", Prompt: "Fastest land animal?", Options: options("Cheetah", "Lion"), Answer: "o1"},
		{ID: "gen-5", Prompt: "Smallest prime number?", Options: options("2", "1"), Answer: "o1"},
	}
	return map[string][]domain.Question{
		"math": math,
		"":     general,
	}
}
