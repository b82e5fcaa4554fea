package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/satyashodhak/factcheck-api/src/api/config"
	"gorm.io/gorm"
)

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	secret := []byte(cfg.JWTSecret)
	authH := NewAuth(db, secret)
	verifyH := NewVerify(cfg, db, rdb)
	resultsH := NewResults(db, rdb)
	votesH := NewVotes(db)
	commentsH := NewComments(db)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/register", authH.Register)
		v1.POST("/auth/login", authH.Login)

		// Public read surfaces personalize when a token is present.
		open := v1.Group("")
		open.Use(OptionalJWTMiddleware(secret))
		open.GET("/results/public", resultsH.ListPublic)
		open.GET("/results/:id/comments", commentsH.List)

		secured := v1.Group("")
		secured.Use(JWTMiddleware(secret))
		secured.POST("/verify", verifyH.Run)
		secured.GET("/results", resultsH.ListMine)
		secured.GET("/results/saved", resultsH.ListSaved)
		secured.POST("/results", resultsH.Save)
		secured.PATCH("/results/:id/visibility", resultsH.SetVisibility)
		secured.POST("/results/:id/unsave", resultsH.Unsave)
		secured.DELETE("/results/:id", resultsH.Delete)
		secured.POST("/results/:id/vote", votesH.CastResult)
		secured.POST("/results/:id/comments", commentsH.Create)
		secured.POST("/comments/:id/vote", votesH.CastComment)
		secured.DELETE("/comments/:id", commentsH.Delete)
	}
}
