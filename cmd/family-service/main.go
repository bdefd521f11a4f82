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
	"github.com/sahaya-health/adherence-platform/pkg/common/logger"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
	"github.com/sahaya-health/adherence-platform/pkg/family"
)

type FamilyService struct {
	families   *family.Repository
	events     *adherence.Repository
	profiles   *cultural.ProfileRepository
	aggregator *family.Aggregator
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	familyRepo := family.NewRepository(db)
	if err := familyRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate family tables")
	}

	policy := cultural.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = cultural.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load scoring policy")
		}
	}

	service := &FamilyService{
		families:   familyRepo,
		events:     adherence.NewRepository(db),
		profiles:   cultural.NewProfileRepository(db),
		aggregator: family.NewAggregator(policy),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/families/{id}/members", service.handleAddMember).Methods("POST")
	router.HandleFunc("/api/v1/families/{id}/dynamics", service.handleDynamics).Methods("GET")

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
		}).Info("Family Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Family Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Family Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *FamilyService) handleAddMember(w http.ResponseWriter, r *http.Request) {
	familyID := mux.Vars(r)["id"]

	var member models.FamilyMember
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if member.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	if err := s.families.AddMember(r.Context(), familyID, member); err != nil {
		logger.Log.WithError(err).WithField("family_id", familyID).Error("Failed to add family member")
		http.Error(w, "Failed to add family member", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "added"})
}

func (s *FamilyService) handleDynamics(w http.ResponseWriter, r *http.Request) {
	familyID := mux.Vars(r)["id"]
	days := 30
	if value := r.URL.Query().Get("days"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	ctx := r.Context()
	members, err := s.families.Members(ctx, familyID)
	if err != nil {
		logger.Log.WithError(err).WithField("family_id", familyID).Error("Failed to load family members")
		http.Error(w, "Failed to load family members", http.StatusInternalServerError)
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	data := make([]family.MemberData, 0, len(members))
	for _, member := range members {
		events, err := s.events.ListByPatient(ctx, member.PatientID, "", start, end)
		if err != nil {
			logger.WithPatient(member.PatientID).WithError(err).Error("Failed to load dose history")
			http.Error(w, "Failed to load dose history", http.StatusInternalServerError)
			return
		}

		profile, err := s.profiles.Get(ctx, member.PatientID)
		if err != nil {
			if err != cultural.ErrProfileNotFound {
				logger.WithPatient(member.PatientID).WithError(err).Error("Failed to load cultural profile")
				http.Error(w, "Failed to load cultural profile", http.StatusInternalServerError)
				return
			}
			profile = models.PatientCulturalProfile{PatientID: member.PatientID}
		}

		data = append(data, family.MemberData{Member: member, Profile: profile, Events: events})
	}

	analysis := s.aggregator.Analyze(familyID, data)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}
