package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sahaya-health/adherence-platform/pkg/adherence"
	"github.com/sahaya-health/adherence-platform/pkg/common/config"
	"github.com/sahaya-health/adherence-platform/pkg/common/database"
	"github.com/sahaya-health/adherence-platform/pkg/common/kafka"
	"github.com/sahaya-health/adherence-platform/pkg/common/logger"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
	"github.com/sahaya-health/adherence-platform/pkg/prediction"
)

type AdherenceService struct {
	events      *adherence.Repository
	profiles    *cultural.ProfileRepository
	scorer      *cultural.Scorer
	predictions *prediction.Service
	producer    *kafka.Producer
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	eventRepo := adherence.NewRepository(db)
	if err := eventRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate adherence tables")
	}
	profileRepo := cultural.NewProfileRepository(db)
	if err := profileRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate cultural profile tables")
	}

	policy := cultural.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = cultural.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load scoring policy")
		}
	}
	scorer := cultural.NewScorer(policy)

	redisClient := database.GetRedis()
	cache := prediction.NewRedisCache(redisClient, cfg.PredictionCacheTTL)
	forecaster := prediction.NewForecaster(cfg.ForecastSeed)
	producer := kafka.NewProducer(cfg.ScoringTopic)
	defer producer.Close()

	calendar := cultural.NewCalendarClient(cultural.CalendarClientOptions{
		BaseURL:      cfg.CalendarBaseURL,
		TokenURL:     cfg.CalendarTokenURL,
		ClientID:     cfg.CalendarClientID,
		ClientSecret: cfg.CalendarClientSecret,
		Timeout:      cfg.CalendarTimeout,
	})

	predictionService := prediction.NewService(eventRepo, profileRepo, scorer, cache, forecaster, producer).
		WithCalendar(calendar)

	service := &AdherenceService{
		events:      eventRepo,
		profiles:    profileRepo,
		scorer:      scorer,
		predictions: predictionService,
		producer:    producer,
	}

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.DoseEventTopic, cfg.KafkaGroupID)
	go func() {
		logger.Log.WithField("topic", cfg.DoseEventTopic).Info("Dose event consumer started")
		if err := consumer.Consume(consumerCtx, service.handleDoseEvent); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("Dose event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/patients/{id}/doses", service.handleRecordDose).Methods("POST")
	router.HandleFunc("/api/v1/patients/{id}/adherence", service.handleAdherence).Methods("GET")
	router.HandleFunc("/api/v1/patients/{id}/cultural-score", service.handleCulturalScore).Methods("GET")
	router.HandleFunc("/api/v1/patients/{id}/predictions", service.handlePredictions).Methods("GET", "POST")
	router.HandleFunc("/api/v1/patients/{id}/predictions/invalidate", service.handleInvalidate).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Adherence Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Adherence Service...")
	cancelConsumer()
	consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Adherence Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// handleDoseEvent reacts to recorded doses on the event stream by dropping
// the affected prediction cache entries.
func (s *AdherenceService) handleDoseEvent(ctx context.Context, event models.DoseEvent) error {
	if event.Type != "dose.recorded" {
		return nil
	}
	if err := s.predictions.Invalidate(ctx, event.PatientID, event.MedicationID); err != nil {
		return err
	}
	logger.WithPatient(event.PatientID).WithField("medication_id", event.MedicationID).
		Debug("Prediction cache invalidated for dose event")
	return nil
}

func (s *AdherenceService) handleRecordDose(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	var event models.AdherenceEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	event.PatientID = patientID

	ctx := r.Context()
	if err := s.events.Append(ctx, event); err != nil {
		logger.WithPatient(patientID).WithError(err).Error("Failed to record dose event")
		http.Error(w, "Failed to record dose", http.StatusInternalServerError)
		return
	}

	metadata := map[string]string{"status": event.Status}
	if err := s.producer.PublishDoseEvent(ctx, "dose.recorded", patientID, event.MedicationID, metadata); err != nil {
		logger.WithPatient(patientID).WithError(err).Warn("Failed to publish dose event")
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

func (s *AdherenceService) handleAdherence(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	medicationID := r.URL.Query().Get("medication_id")
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -parseDays(r, 30))

	req := adherence.PeriodRequest{PatientID: patientID, MedicationID: medicationID, Start: start, End: end}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.events.ListByPatient(r.Context(), patientID, medicationID, start, end)
	if err != nil {
		logger.WithPatient(patientID).WithError(err).Error("Failed to load dose history")
		http.Error(w, "Failed to load dose history", http.StatusInternalServerError)
		return
	}

	metrics := adherence.Progress(patientID, medicationID, events, start, end)
	writeJSON(w, metrics)
}

func (s *AdherenceService) handleCulturalScore(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -parseDays(r, 30))

	ctx := r.Context()
	profile, err := s.profiles.Get(ctx, patientID)
	if err != nil {
		if err == cultural.ErrProfileNotFound {
			profile = models.PatientCulturalProfile{PatientID: patientID}
		} else {
			logger.WithPatient(patientID).WithError(err).Error("Failed to load cultural profile")
			http.Error(w, "Failed to load cultural profile", http.StatusInternalServerError)
			return
		}
	}

	events, err := s.events.ListByPatient(ctx, patientID, "", start, end)
	if err != nil {
		logger.WithPatient(patientID).WithError(err).Error("Failed to load dose history")
		http.Error(w, "Failed to load dose history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.scorer.Score(profile, events))
}

func (s *AdherenceService) handlePredictions(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	medicationID := r.URL.Query().Get("medication_id")
	ctx := r.Context()

	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		days, err := strconv.Atoi(daysParam)
		if err != nil {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		forecast, err := s.predictions.Forecast(ctx, patientID, medicationID, days)
		if err != nil {
			writeServiceError(w, patientID, err, "Failed to build forecast")
			return
		}
		writeJSON(w, forecast)
		return
	}

	result, err := s.predictions.Predict(ctx, patientID, medicationID)
	if err != nil {
		writeServiceError(w, patientID, err, "Failed to build prediction")
		return
	}
	writeJSON(w, result)
}

func (s *AdherenceService) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]
	medicationID := r.URL.Query().Get("medication_id")

	if err := s.predictions.Invalidate(r.Context(), patientID, medicationID); err != nil {
		logger.WithPatient(patientID).WithError(err).Error("Failed to invalidate prediction")
		http.Error(w, "Failed to invalidate prediction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "invalidated"})
}

func parseDays(r *http.Request, defaultDays int) int {
	if value := r.URL.Query().Get("days"); value != "" {
		if days, err := strconv.Atoi(value); err == nil && days > 0 {
			return days
		}
	}
	return defaultDays
}

func writeServiceError(w http.ResponseWriter, patientID string, err error, message string) {
	if adherence.IsValidationError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.WithPatient(patientID).WithError(err).Error(message)
	http.Error(w, message, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
