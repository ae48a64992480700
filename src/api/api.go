package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navs-labs/navs-verify/src/api/config"
	"github.com/navs-labs/navs-verify/src/api/data"
	"github.com/navs-labs/navs-verify/src/api/types"
	"github.com/navs-labs/navs-verify/src/api/webserver"
	"github.com/navs-labs/navs-verify/src/verify"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&types.Institution{}, &types.Certificate{},
	&types.Template{}, &types.Anchor{},
	&types.Verification{}, &types.Verifier{},
}

func migrate(db *gorm.DB) {
	err := db.AutoMigrate(allModels...)

	if err == nil {
		return
	}

	log.Printf("auto-migrate failed (%v) - dropping & recreating schema", err)
	_ = db.Migrator().DropTable(
		"verifications", "anchors", "templates",
		"certificates", "verifiers", "institutions",
	)
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("migrate after drop: %v", err)
	}
}

func seed(db *gorm.DB) {
	// Seed the pilot institution and its golden template
	_ = db.FirstOrCreate(&types.Institution{ID: "inst_001"}, types.Institution{
		ID: "inst_001", Name: "Veer Surendra Sai University of Technology",
		Code: "VSSUT", ContactEmail: "registrar@vssut.ac.in", Status: "approved",
	}).Error
	_ = db.FirstOrCreate(&types.Template{TemplateID: "tmpl_2020_cs"}, types.Template{
		TemplateID: "tmpl_2020_cs", InstitutionID: "inst_001",
		SimilarityThreshold: 0.8,
	}).Error
}

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	migrate(db)
	seed(db)

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())
	go data.StartAnchorWatcher(ctx, cfg.RPCURL, db, rdb)

	store := data.NewStore(db)
	pipe := verify.New(
		verify.NewHTTPExtractor(cfg.OCRURL, cfg.ExtractTimeout),
		store,
		store,
		data.NewLedger(db, rdb),
		verify.Config{
			ExtractTimeout:    cfg.ExtractTimeout,
			StoreTimeout:      cfg.StoreTimeout,
			TemplateTimeout:   cfg.TemplateTimeout,
			LedgerTimeout:     cfg.LedgerTimeout,
			MatchThreshold:    cfg.MatchThreshold,
			VerifiedThreshold: cfg.VerifiedThreshold,
		},
	)

	router := webserver.New(cfg, db, rdb, pipe)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("NAVS verification API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
