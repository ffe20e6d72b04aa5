package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appinvoicing "github.com/jdearaujo/invoicemaker/internal/application/invoicing"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/config"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/logger"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/persistence"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/persistence/models"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/registry"
	"github.com/jdearaujo/invoicemaker/internal/infrastructure/rendering"
	"github.com/jdearaujo/invoicemaker/internal/interfaces/http/handler"
	"github.com/jdearaujo/invoicemaker/internal/interfaces/http/middleware"
	"github.com/jdearaujo/invoicemaker/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting invoicemaker",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.DB.AutoMigrate(&models.InvoiceModel{}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	reg, err := registry.New(&cfg.Invoicemaker)
	if err != nil {
		log.Fatal("invalid invoicing configuration", zap.Error(err))
	}

	pdfRenderer, err := rendering.NewChromedpRenderer(&rendering.ChromedpConfig{
		DefaultTimeout: cfg.Renderer.Timeout,
		RemoteURL:      cfg.Renderer.RemoteURL,
		NoSandbox:      cfg.Renderer.NoSandbox,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("failed to initialize PDF renderer", zap.Error(err))
	}
	defer func() { _ = pdfRenderer.Close() }()

	archive, err := rendering.NewPdfArchive(&rendering.PdfArchiveConfig{
		Enabled:  cfg.Invoicemaker.SavePdfs,
		BasePath: cfg.Invoicemaker.PdfPath,
		Logger:   log,
	})
	if err != nil {
		log.Fatal("failed to initialize PDF archive", zap.Error(err))
	}

	repo := persistence.NewGormInvoiceRepository(db.DB)
	engine := rendering.NewTemplateEngine()
	docRenderer := appinvoicing.NewDocumentRenderer(reg, engine, pdfRenderer, cfg.HTTP.BaseURL, log)
	numbers := appinvoicing.NewNumberGenerator(repo)
	authorizer := appinvoicing.NewDownloadAuthorizer(cfg.Invoicemaker.Secret)
	service := appinvoicing.NewInvoiceService(repo, reg, numbers, docRenderer, archive, authorizer, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sessions := middleware.NewSessionStore(cfg.HTTP.SessionTTL)

	ginEngine := gin.New()
	ginEngine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Session(sessions, cfg.HTTP.SessionCookie),
	)

	healthHandler := handler.NewHealthHandler(db)
	ginEngine.GET("/health", healthHandler.Health)

	router.NewRouter(ginEngine).
		Register(handler.NewInvoiceHandler(service, log)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
