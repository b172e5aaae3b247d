package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/api/handlers"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/api/middleware"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/realtime"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	publisher := realtime.NewPublisher(rdb)

	userService := services.NewUserService(db, cfg, rdb)
	listingService := services.NewListingService(db, cfg)
	negotiationService := services.NewNegotiationService(db, cfg, listingService, taskClient, publisher)
	reviewService := services.NewReviewService(db, cfg, taskClient)
	favoriteService := services.NewFavoriteService(db, listingService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(
		cfg, taskClient,
		userService, listingService, negotiationService, reviewService, favoriteService,
		s3StorageService)
	restConfigHandler := handlers.NewRestConfigHandler(cfg)
	restListingHandler := handlers.NewRestListingHandler(listingService)
	restUserHandler := handlers.NewRestUserHandler(userService, reviewService)
	restInboxHandler := handlers.NewRestInboxHandler(negotiationService, favoriteService, publisher)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally).
		// Per-method auth for POST /api happens inside the handler.
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/config", restConfigHandler.GetPublicConfig)

		v1.GET("/listing/search", restListingHandler.SearchListings)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		v1.GET("/user/:id", restUserHandler.GetUserByID)
		v1.GET("/user/:id/listing", restListingHandler.GetUserListings)
		v1.GET("/user/:id/reviews", restUserHandler.GetUserReviews)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.PresenceMiddleware(userService))
		{
			authRequired.GET("/conversations", restInboxHandler.ListConversations)
			authRequired.GET("/conversations/:userID/:listingID", restInboxHandler.ListMessages)
			authRequired.GET("/favorites", restInboxHandler.ListFavorites)
			authRequired.GET("/events", restInboxHandler.StreamEvents)
		}
	}

	return r
}
