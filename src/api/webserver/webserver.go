package webserver

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/navs-labs/navs-verify/src/api/config"
	"github.com/navs-labs/navs-verify/src/verify"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client, pipe *verify.Pipeline) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, db, rdb, pipe)
	return g
}
