package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/seking31/tms-server/bootstrap"
	"github.com/seking31/tms-server/config"
	"github.com/seking31/tms-server/handlers"
	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/middleware"
	"github.com/seking31/tms-server/services"
	"github.com/seking31/tms-server/validation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const systemName = "tms-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger(logging.Options{SystemName: systemName})
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: %v", err)
	}

	logging.InitLogger(logging.Options{SystemName: systemName, File: cfg.LogFile, Level: cfg.LogLevel})
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting TMS server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logging.Logger.Errorf("Event ID: DB_DISCONNECT_FAILED, Description: %v", err)
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB database %s", cfg.MongoDBName)

	db := client.Database(cfg.MongoDBName)
	projectsCollection := db.Collection(cfg.ProjectsCollection)
	tasksCollection := db.Collection(cfg.TasksCollection)

	if err := services.EnsureIndexes(ctx, projectsCollection, tasksCollection); err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: %v", err)
	}

	if cfg.SeedSampleData {
		if err := bootstrap.CreateSampleData(ctx, projectsCollection, tasksCollection); err != nil {
			logging.Logger.Fatalf("Event ID: SAMPLE_DATA_FAILED, Description: %v", err)
		}
	}

	validator := validation.New()
	schemas := validation.NewSchemas(validator)

	projectService := services.NewProjectService(projectsCollection, services.NewStoreBreaker("ProjectsStoreCB", cfg.BreakerTimeout), validator)
	taskService := services.NewTaskService(tasksCollection, services.NewStoreBreaker("TasksStoreCB", cfg.BreakerTimeout), validator)

	router := handlers.NewRouter(
		handlers.NewProjectHandler(projectService, schemas),
		handlers.NewTaskHandler(taskService, schemas),
		handlers.NewHealthHandler(client),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	})

	handler := middleware.Chain(router,
		middleware.RequestLogger,
		middleware.Recover,
		corsHandler.Handler,
		middleware.JSONContentType,
		middleware.RequestTimeout(cfg.RequestTimeout),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logging.Logger.Infof("Event ID: SERVER_SHUTDOWN, Description: Received %s, shutting down", sig)
	case err := <-serverErr:
		logging.Logger.Errorf("Event ID: SERVER_FATAL_ERROR, Description: Server failed: %v", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("Event ID: SERVER_SHUTDOWN_FAILED, Description: %v", err)
	}
	logging.Logger.Info("Event ID: SERVER_STOPPED, Description: Server stopped")
}
