package bootstrap

import (
	"context"
	"log"
	"os"
	"strings"

	"psvs-console-be/internal/config"
	"psvs-console-be/internal/controller"
	"psvs-console-be/internal/dataservice"
	"psvs-console-be/internal/dataservice/remote"
	"psvs-console-be/internal/handler"
	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/internal/repository/unitofwork"
	"psvs-console-be/internal/service"
	"psvs-console-be/internal/websocket"
	pktNats "psvs-console-be/pkg/nats"
	"psvs-console-be/pkg/timeline"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	TimelineController controller.ITimelineController

	// Background Services (Exposed for main.go to run)
	ConsumerService       service.IConsumerService
	RefreshTriggerService *service.RefreshTriggerService
	TimelineService       service.ITimelineService

	// WebSockets
	TimelineWsHandler *handler.TimelineWsHandler
	WebSocketHub      *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. db may be nil when the data source is
// the remote service.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	// 2. Data Source
	var dataService timeline.DataService
	switch cfg.DataService.Source {
	case config.DataSourceRemote:
		dataService = remote.NewClient(cfg.DataService.BaseURL, cfg.DataService.Token, cfg.DataService.Timeout)
		log.Printf("[INFO] Using Data Source: REMOTE (%s)", cfg.DataService.BaseURL)
	default:
		if db == nil {
			log.Fatalf("[FATAL] Data source %q needs DB_CONNECTION_STRING", cfg.DataService.Source)
		}
		dataService = dataservice.NewStore(unitofwork.NewRepositoryFactory(db))
		log.Printf("[INFO] Using Data Source: POSTGRES")
	}

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 4. Infrastructure
	// NATS
	var eventPublisher pktNats.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	c.closers = append(c.closers, func() { _ = rdb.Close() })

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	// 5. Services
	c.TimelineService = service.NewTimelineService(
		dataService,
		c.WebSocketHub, // Hub implements StatePusher
		eventPublisher,
		sysLogger,
		service.TimelineOptions{
			PollInterval:    cfg.Timeline.PollInterval,
			SettleDelay:     cfg.Timeline.SettleDelay,
			TrajectoryLimit: cfg.Timeline.TrajectoryLimit,
			ViewTTL:         cfg.Timeline.ViewTTL,
			AutoRefresh:     cfg.Timeline.AutoRefresh,
		},
	)

	feedbackService := service.NewFeedbackService(pubSub, cfg.Keys.FeedbackTopic)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Keys.FeedbackTopic,
		dataService,
		sysLogger,
	)

	if natsSub != nil {
		c.RefreshTriggerService = service.NewRefreshTriggerService(natsSub, c.TimelineService, refreshDurableName(), sysLogger)
		c.closers = append(c.closers, natsSub.Close)
	}

	// 6. Controllers & Handlers
	c.TimelineWsHandler = handler.NewTimelineWsHandler(c.TimelineService, c.WebSocketHub, wsLogger)
	c.TimelineController = controller.NewTimelineController(c.TimelineService, feedbackService)

	return c
}

// Close stops every open timeline and releases connections.
func (c *Container) Close() {
	c.TimelineService.Shutdown()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// refreshDurableName is unique per instance: every instance must see every
// MESSAGE_CREATED for the views it hosts.
func refreshDurableName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	// Durable names may not contain dots.
	host = strings.ReplaceAll(host, ".", "-")
	return "timeline-refresh-" + host + "-" + uuid.NewString()[:8]
}
