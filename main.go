package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/chat-rooms-demo/modules/api"
	"github.com/example/chat-rooms-demo/modules/broadcast"
	"github.com/example/chat-rooms-demo/modules/coordinator"
	"github.com/example/chat-rooms-demo/modules/presence"
	"github.com/example/chat-rooms-demo/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Chat Rooms Demo - Fiber + EventBus Pubsub ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	storeModule := store.NewModule()
	coordinatorModule := coordinator.NewModule(storeModule, logger)
	broadcastModule := broadcast.NewModule(logger)
	presenceModule := presence.NewModule(logger)
	apiModule := api.NewModule(coordinatorModule, presenceModule, logger)

	// The hub is wired by hand: the coordinator delivers through it
	// synchronously, which the ServiceContainer's request/reply path cannot
	// provide.
	coordinatorModule.SetGateway(broadcastModule.Hub())
	apiModule.SetHub(broadcastModule.Hub())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: durable persistence (GORM/SQLite or in-memory)
	// - coordinator: room state machine (ServiceProvider + EventEmitter)
	// - broadcast: WebSocket hub (delivery gateway)
	// - presence: activity counters (EventConsumer)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on coordinator)
	app.Register(storeModule)
	app.Register(coordinatorModule)
	app.Register(broadcastModule)
	app.Register(presenceModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - NATS URL: %s", natsURL)
	log.Printf("  - Store backend: %s", backend)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                     - Health check")
	log.Println("  GET    /api/v1/rooms               - List active rooms")
	log.Println("  GET    /api/v1/rooms/:room/history - Get message history")
	log.Println("  GET    /api/v1/stats               - Activity counters")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Client events: join_room, send_message, leave_room")
	log.Println("  Server events: joined_room, join_error, user_joined, user_left,")
	log.Println("                 receive_message, send_error, message_history, update_room_list")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
