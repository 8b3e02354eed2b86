package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/conversationai/harassment-manager/internal/auth"
	"github.com/conversationai/harassment-manager/internal/config"
	"github.com/conversationai/harassment-manager/internal/items"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/notifications"
	"github.com/conversationai/harassment-manager/internal/perspective"
	"github.com/conversationai/harassment-manager/internal/report"
	"github.com/conversationai/harassment-manager/internal/scheduler"
	"github.com/conversationai/harassment-manager/internal/storage"
	"github.com/conversationai/harassment-manager/internal/twitter"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type server struct {
	config        *config.Config
	session       *auth.Session
	itemsService  *items.Service
	reportStore   *report.Store
	twitterClient *twitter.Client
	archive       *storage.AzureStorage
	notifier      notifications.NotificationInterface
}

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Harassment Manager")

	session := auth.NewSession()
	twitterClient := twitter.NewClient(cfg.TwitterBearerToken, "")
	perspectiveClient := perspective.NewClient(cfg.PerspectiveAPIKey, "")
	itemsService := items.NewService(twitterClient, perspectiveClient, session, cfg.ScoreRequestsPerSecond)
	reportStore := report.NewStore()

	srv := &server{
		config:        cfg,
		session:       session,
		itemsService:  itemsService,
		reportStore:   reportStore,
		twitterClient: twitterClient,
		notifier:      notifications.NewService(cfg),
	}

	// The report archive is optional; without a storage account, finalized
	// reports are only sent via notifications.
	if cfg.StorageAccount != "" {
		archive, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize report archive: %v", err)
		}
		srv.archive = archive
	}

	schedulerService := scheduler.NewService(cfg, itemsService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", srv.metricsHandler).Methods("GET")
	router.HandleFunc("/api/session", srv.signInHandler).Methods("POST")
	router.HandleFunc("/api/session", srv.signOutHandler).Methods("DELETE")
	router.HandleFunc("/api/mentions", srv.mentionsHandler).Methods("GET")
	router.HandleFunc("/api/report", srv.reportHandler).Methods("GET")
	router.HandleFunc("/api/report/items", srv.addReportItemsHandler).Methods("POST")
	router.HandleFunc("/api/report/items", srv.removeReportItemsHandler).Methods("DELETE")
	router.HandleFunc("/api/report", srv.clearReportHandler).Methods("DELETE")
	router.HandleFunc("/api/report/finalize", srv.finalizeReportHandler).Methods("POST")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fetched_items": s.itemsService.FetchedItemCount(),
		"cached_ranges": s.itemsService.CachedRangeCount(),
		"report_items":  s.reportStore.Count(),
		"signed_in":     s.session.SignedIn(),
	})
}

func (s *server) signInHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	s.session.SignIn(body.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed in"})
}

func (s *server) signOutHandler(w http.ResponseWriter, r *http.Request) {
	s.session.SignOut()
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *server) mentionsHandler(w http.ResponseWriter, r *http.Request) {
	startMs, err := strconv.ParseInt(r.URL.Query().Get("start_ms"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_ms must be unix milliseconds")
		return
	}
	endMs, err := strconv.ParseInt(r.URL.Query().Get("end_ms"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_ms must be unix milliseconds")
		return
	}

	pending, err := s.itemsService.FetchItems(startMs, endMs)
	if err != nil {
		if err == items.ErrNotAuthenticated {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scored, err := pending.Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (s *server) reportHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  s.reportStore.Items(),
		"action": s.reportStore.Action(),
		"count":  s.reportStore.Count(),
	})
}

func (s *server) addReportItemsHandler(w http.ResponseWriter, r *http.Request) {
	scored, ok := decodeItems(w, r)
	if !ok {
		return
	}
	s.reportStore.AddItems(scored)
	writeJSON(w, http.StatusOK, map[string]int{"report_items": s.reportStore.Count()})
}

func (s *server) removeReportItemsHandler(w http.ResponseWriter, r *http.Request) {
	scored, ok := decodeItems(w, r)
	if !ok {
		return
	}
	s.reportStore.RemoveItems(scored)
	writeJSON(w, http.StatusOK, map[string]int{"report_items": s.reportStore.Count()})
}

func (s *server) clearReportHandler(w http.ResponseWriter, r *http.Request) {
	s.reportStore.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *server) finalizeReportHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action  report.Action `json:"action"`
		Context string        `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		if body.Action != "" {
			s.reportStore.SetAction(body.Action)
		}
		if body.Context != "" {
			s.reportStore.SetContext(body.Context)
		}
	}

	snapshot := s.reportStore.Snapshot()
	if len(snapshot.Items) == 0 {
		writeError(w, http.StatusBadRequest, "report is empty")
		return
	}

	if err := s.applyPlatformAction(r.Context(), snapshot); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	archived := ""
	if s.archive != nil {
		filename, err := s.archive.ArchiveSnapshot(snapshot)
		if err != nil {
			logrus.Errorf("Failed to archive report %s: %v", snapshot.ReportID, err)
		} else {
			archived = filename
		}
	}

	if err := s.notifier.SendReportSummary(snapshot); err != nil {
		logrus.Errorf("Failed to send report summary: %v", err)
	}

	s.reportStore.Clear()
	writeJSON(w, http.StatusOK, map[string]string{
		"report_id": snapshot.ReportID,
		"archived":  archived,
	})
}

func (s *server) applyPlatformAction(ctx context.Context, snapshot report.Snapshot) error {
	authorIDs := make([]string, 0, len(snapshot.Items))
	tweetIDs := make([]string, 0, len(snapshot.Items))
	seenAuthors := make(map[string]bool)
	for _, scored := range snapshot.Items {
		tweetIDs = append(tweetIDs, scored.Item.ID)
		if scored.Item.AuthorID != "" && !seenAuthors[scored.Item.AuthorID] {
			seenAuthors[scored.Item.AuthorID] = true
			authorIDs = append(authorIDs, scored.Item.AuthorID)
		}
	}

	switch snapshot.Action {
	case report.ActionBlock:
		return s.twitterClient.BlockUsers(ctx, s.session.UserID(), authorIDs)
	case report.ActionMute:
		return s.twitterClient.MuteUsers(ctx, s.session.UserID(), authorIDs)
	case report.ActionHideReplies:
		return s.twitterClient.HideReplies(ctx, tweetIDs)
	default:
		return nil
	}
}

func decodeItems(w http.ResponseWriter, r *http.Request) ([]models.ScoredItem, bool) {
	var scored []models.ScoredItem
	if err := json.NewDecoder(r.Body).Decode(&scored); err != nil {
		writeError(w, http.StatusBadRequest, "expected a JSON array of scored items")
		return nil, false
	}
	return scored, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
