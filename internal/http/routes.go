package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/minjikim/nalmoa/internal/service"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, rooms *service.RoomService) {

	// --- Dependencies ---
	env := &Env{Rooms: rooms}

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	// CORS Middleware
	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Room creation is the only write an anonymous visitor can spam, so it
	// alone is rate limited per IP.
	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.EvictIdle()
		}
	}()

	// --- API Routes ---

	api := router.Group("/api")
	{
		api.POST("/rooms", RateLimitMiddleware(limiter), env.CreateRoom)
		api.GET("/rooms", env.LookupRoom) // ?code=<invite code>
		api.GET("/rooms/:code", env.GetRoomDetail)
		api.DELETE("/rooms/:code", env.DeleteRoom)
		api.POST("/rooms/:code/join", env.JoinRoom)
		api.POST("/rooms/:code/votes", env.CreateVote)
		api.GET("/rooms/:code/share", env.ShareRoom)

		api.GET("/votes/:id", env.GetVoteDetail)
		api.DELETE("/votes/:id", env.DeleteVote)
		api.POST("/votes/:id/responses", env.SubmitResponse)
		api.GET("/votes/:id/share", env.ShareVote)
	}

	// --- Invite-link surface ---
	router.GET("/room/:code", env.InviteLink)
}
