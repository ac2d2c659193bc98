package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"helpdesk-portal-go/internal/dedup"
	"helpdesk-portal-go/internal/handlers"
	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/notify"
	"helpdesk-portal-go/internal/presence"
	"helpdesk-portal-go/internal/push"
	"helpdesk-portal-go/internal/scheduler"
	"helpdesk-portal-go/internal/store"
	"helpdesk-portal-go/internal/tracker"
)

// activeUsers resolves the presence store's ids against the user directory
// for the scheduler.
type activeUsers struct {
	presence *presence.RedisStore
	store    *store.Store
}

func (a *activeUsers) ActiveUsers(ctx context.Context) ([]models.User, error) {
	ids, err := a.presence.ActiveUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	return a.store.UsersByIDs(ctx, ids)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Local store (shared with the rest of the portal)
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "helpdesk.db"
	}
	localStore, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open local database: %v", err)
	}
	defer localStore.Close()
	log.Println("Database migrations completed")

	// External tracker schema (one connection per poll)
	trackerDSN := os.Getenv("TRACKER_DATABASE_DSN")
	if trackerDSN == "" {
		log.Fatal("TRACKER_DATABASE_DSN environment variable is required")
	}
	connect := tracker.MySQLConnector(trackerDSN)

	// Redis presence store
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			redisDB = db
		}
	}
	presenceStore := presence.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}, presence.DefaultTTL)

	// VAPID keypair for push signing
	vapidPublic := os.Getenv("VAPID_PUBLIC_KEY")
	vapidPrivate := os.Getenv("VAPID_PRIVATE_KEY")
	if vapidPublic == "" || vapidPrivate == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Printf("Failed to generate VAPID keys, push delivery disabled: %v", err)
		} else {
			vapidPrivate = privateKey
			vapidPublic = publicKey
			log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
		}
	}
	subscriber := os.Getenv("VAPID_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "mailto:helpdesk@example.com"
	}

	baseURL := os.Getenv("PORTAL_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	engine := push.NewEngine(localStore, push.Config{
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		Subscriber:      subscriber,
		IconURL:         baseURL + "/static/icons/notification.png",
	})

	dedupWindow := dedup.DefaultWindow
	if v := os.Getenv("DEDUP_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dedupWindow = d
		}
	}

	service := notify.NewService(localStore, connect, dedup.New(dedupWindow), engine, baseURL)

	// Background poll trigger
	pollInterval := time.Minute
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			pollInterval = d
		}
	}
	sched := scheduler.New(service, &activeUsers{presence: presenceStore, store: localStore}, pollInterval)
	sched.Start()

	h := handlers.NewHandler(service, localStore, engine, presenceStore)

	// Notification API routes (fronted by the portal's session layer)
	http.HandleFunc("/api/notifications/poll", h.PollNotificationsHandler)
	http.HandleFunc("/api/notifications/page", h.NotificationsPageHandler)
	http.HandleFunc("/api/notifications/read", h.MarkReadHandler)
	http.HandleFunc("/api/notifications/read-all", h.MarkAllReadHandler)
	http.HandleFunc("/api/notifications/clear", h.ClearHandler)
	http.HandleFunc("/api/notifications/delete", h.DeleteNotificationHandler)

	// Push subscription routes
	http.HandleFunc("/api/push/vapid-key", h.GetVAPIDKeyHandler)
	http.HandleFunc("/api/push/subscribe", h.SubscribePushHandler)
	http.HandleFunc("/api/push/unsubscribe", h.UnsubscribePushHandler)

	// Presence ping and operational endpoints
	http.HandleFunc("/api/presence/ping", h.PingHandler)
	http.HandleFunc("/healthz", h.HealthHandler)
	http.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{Addr: ":" + port}
	go func() {
		log.Println("Listening on :" + port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
