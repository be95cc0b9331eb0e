package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"tavola/admin"
	"tavola/bot"
	"tavola/checkout"
	"tavola/db"
	"tavola/menu"
	"tavola/notify"
	"tavola/pay"
	"tavola/ratelim"
	"tavola/razorpay"
	"tavola/rdx"
	"tavola/routes"
	"tavola/store"
	"tavola/wapp"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, duration)
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func confirmDelay() time.Duration {
	if raw := os.Getenv("AUTO_CONFIRM_DELAY_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 3 * time.Second
}

func main() {
	// load .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	// read port
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	} else if port[0] != ':' {
		port = ":" + port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ Index creation failed: %v", err)
	}

	// stores
	conversations := store.NewMongoConversations()
	catalog := store.NewMongoCatalog()
	orders := store.NewMongoOrders()
	reservations := store.NewMongoReservations()
	tasks := store.NewMongoTasks()
	admins := store.NewMongoAdmins()

	// outbound and realtime channels
	sender := wapp.NewClient()
	hub := notify.NewHub()
	go hub.Run()
	notifier := notify.NewNotifier(hub, sender)

	// payment gateway and checkout
	gateway := razorpay.New()
	orchestrator := &checkout.Orchestrator{
		Orders:   orders,
		Catalog:  catalog,
		Gateway:  gateway,
		Sender:   sender,
		Notifier: notifier,
	}

	// dialogue engine
	engine := &bot.Engine{
		Conversations: conversations,
		Catalog:       catalog,
		Orders:        orders,
		Reservations:  reservations,
		Sender:        sender,
		Checkout:      orchestrator,
		Notifier:      notifier,
		Locker:        rdx.NewConversationLocker(),
	}
	webhook := wapp.NewWebhook(engine)

	// payment reconciliation and deferred confirmation
	reconciler := &pay.Reconciler{
		Orders:        orders,
		Conversations: conversations,
		Tasks:         tasks,
		Provider:      gateway,
		Sender:        sender,
		Notifier:      notifier,
		ConfirmDelay:  confirmDelay(),
	}
	payHandlers := pay.NewHandlers(reconciler, orders)

	scheduler := &pay.Scheduler{
		Orders:        orders,
		Conversations: conversations,
		Tasks:         tasks,
		Sender:        sender,
		Notifier:      notifier,
		Interval:      time.Second,
	}
	go scheduler.Run(ctx)

	rateLimiter := ratelim.NewRateLimiter(10, 20)
	adminSvc := admin.NewService(admins, orders, reservations, notifier)
	menuHandlers := menu.NewHandlers(notifier)

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddBotRoutes(router, webhook)
	routes.AddPayRoutes(router, payHandlers)
	routes.AddMenuRoutes(router, menuHandlers, rateLimiter)
	routes.AddAdminRoutes(router, adminSvc, rateLimiter)
	routes.AddWSRoutes(router, hub)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down admin hub...")
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Graceful shutdown failed: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
