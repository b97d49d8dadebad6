package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	swagger "github.com/arsmn/fiber-swagger/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pquerna/ffjson/ffjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"fleet-api-server/cmd/api-server/app/options"
	"fleet-api-server/internal/api/common/auth"
	"fleet-api-server/internal/api/deployment"
	"fleet-api-server/internal/api/domains"
	"fleet-api-server/internal/api/pool"
	"fleet-api-server/internal/api/usage"
	cache2 "fleet-api-server/internal/cache"
	"fleet-api-server/internal/database"
	"fleet-api-server/internal/worker"
)

type Server struct {
	app    *fiber.App
	db     *gorm.DB
	worker *worker.Worker
	logger *zap.Logger
}

func NewServer(opts *options.Options, logger *zap.Logger, errCh chan<- error) *Server {
	// connect Postgres
	db, err := database.Connect()
	if err != nil {
		logger.Fatal("Unable to connect to Postgres", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Unable to migrate schema", zap.Error(err))
	}

	cache, err := cache2.NewCache()
	if err != nil {
		logger.Fatal("Unable to init cache", zap.Error(err))
	}

	worker, err := worker.NewWorker(logger.Named("worker"), errCh)
	if err != nil {
		logger.Fatal("Unable to initialize worker", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:     "Fleet API Server",
		Prefork:     false,
		JSONEncoder: ffjson.Marshal,
	})

	app.Use(cors.New())
	app.Use(compress.New())
	app.Use(etag.New())
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] [${ip}:${port}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	if *opts.Mode == "debug" {
		app.Use(pprof.New())
	}

	api := app.Group("/api/v1/")

	authConfig, err := auth.NewConfig()
	if err != nil {
		logger.Fatal("Unable to read auth config", zap.Error(err))
	}
	if authConfig.Enabled() {
		api.Use(auth.JWTMiddleware(authConfig), auth.GetDataFromJWT)
	} else {
		logger.Warn("JWT_SECRET not set, requests are unauthenticated")
	}

	// pool
	poolLogger := logger.Named("pool")
	poolRepository := pool.NewPoolRepository(db)
	poolService := pool.NewPoolService(poolRepository, poolLogger)
	pool.PoolRouter(api, poolService, poolLogger)
	// deployment
	deploymentLogger := logger.Named("deployment")
	deploymentRepository := deployment.NewDeploymentRepository(db)
	deploymentService := deployment.NewDeploymentService(deploymentRepository, deploymentLogger)
	deployment.DeploymentRouter(api, deploymentService, deploymentLogger)
	// domains
	domainLogger := logger.Named("domains")
	domainRepository := domains.NewDomainRepository(db)
	domainService := domains.NewDomainService(domainRepository, domainLogger)
	domains.DomainRouter(api, domainService, domainLogger)
	// usage
	usageLogger := logger.Named("usage")
	usageRepository := usage.NewUsageRepository(db)
	usageService := usage.NewUsageService(cache, worker, usageRepository, usageLogger)
	usage.UsageRouter(api, usageService, usageLogger)

	app.Get("/dashboard", monitor.New())

	app.Get("/swagger/*", swagger.Handler) // default

	app.All("*", func(c *fiber.Ctx) error {
		errorMessage := fmt.Sprintf("Route '%s' does not exist in this API!", c.OriginalURL())

		return c.Status(fiber.StatusNotFound).JSON(&fiber.Map{
			"status":  "fail",
			"message": errorMessage,
		})
	})

	return &Server{
		app:    app,
		db:     db,
		worker: worker,
		logger: logger,
	}
}

func (app *Server) Listen(port int, certFile, keyFile *string) error {
	app.logger.Info("Starting Fleet api-server ...")

	address := fmt.Sprintf(":%d", port)
	if certFile != nil && keyFile != nil {
		if *certFile != "" && *keyFile != "" {
			return app.app.ListenTLS(address, *certFile, *keyFile)
		}
	}
	return app.app.Listen(address)
}

func (app *Server) Shutdown(parentCtx context.Context) error {
	g, ctx := errgroup.WithContext(parentCtx)
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	g.Go(func() error {
		if err := app.app.Shutdown(); err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		app.worker.Stop(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

func Run(opts *options.Options, logger *zap.Logger) error {
	// Start api-server
	apiServerError := make(chan error)

	server := NewServer(opts, logger, apiServerError)

	go func() {
		if err := server.Listen(*opts.Port, opts.CertFile, opts.KeyFile); err != nil && err != http.ErrServerClosed {
			logger.Error("Listen for api-server failed", zap.Error(err))
			apiServerError <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown server ...")

		ctx := context.Background()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("close api-server failed", zap.Error(err))
			return err
		}
	case err := <-apiServerError:
		return err
	}

	return nil
}
