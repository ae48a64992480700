package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/navs-labs/navs-verify/src/api/config"
	"github.com/navs-labs/navs-verify/src/verify"
)

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client, pipe *verify.Pipeline) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://navs.gov.in"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	verifyH := NewVerifyHandler(db, rdb, pipe)
	instH := NewInstitution(db)
	limiter := NewRateLimiter(cfg.RateLimit, time.Minute)

	v1 := r.Group("/v1")
	{
		// Shared results are public by design: the token is the secret.
		v1.GET("/shared/:token", verifyH.Shared)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))
		secured.POST("/verify", verifyH.Verify)
		secured.GET("/verifications", verifyH.History)
		secured.POST("/verifications/:jobId/share", verifyH.Share)
	}

	// Institution routes inherit auth and rate limiting from the group.
	inst := v1.Group("/")
	inst.Use(RequireRole("institution"))
	{
		inst.POST("/certificates/bulk", instH.BulkUpload)
		inst.POST("/templates", instH.UpsertTemplate)
		inst.GET("/institutions/:id/stats", instH.Stats)
	}
}
