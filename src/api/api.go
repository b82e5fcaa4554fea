package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/satyashodhak/factcheck-api/src/api/config"
	"github.com/satyashodhak/factcheck-api/src/api/data"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"github.com/satyashodhak/factcheck-api/src/api/webserver"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := data.MustMySQL(cfg.MySQLDSN)

	if err := db.AutoMigrate(
		&types.User{},
		&types.VerificationResult{},
		&types.Comment{},
		&types.VerificationVote{},
		&types.CommentVote{},
		&types.Setting{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())

	go data.TrendingService(ctx, db, rdb, time.Duration(cfg.PollInterval)*time.Second)

	router := webserver.New(cfg, db, rdb)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		var err error
		if cfg.EnableSSL && cfg.SSLCert != "" && cfg.SSLKey != "" {
			tlsReloader, rerr := webserver.NewTLSReloader(cfg.SSLCert, cfg.SSLKey)
			if rerr != nil {
				log.Printf("Failed to create TLS reloader: %v. Falling back to HTTP", rerr)
				err = httpSrv.ListenAndServe()
			} else {
				httpSrv.TLSConfig = tlsReloader.GetConfig()
				err = httpSrv.ListenAndServeTLS("", "")
			}
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("Fact-check API listening on %s (SSL: %v)", cfg.Port, cfg.EnableSSL && cfg.SSLCert != "" && cfg.SSLKey != "")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
