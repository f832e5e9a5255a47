package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/export"
	"github.com/vitalio/vitalsync-agent/internal/share"
	"github.com/vitalio/vitalsync-agent/internal/storage"
	vsync "github.com/vitalio/vitalsync-agent/internal/sync"
	"github.com/vitalio/vitalsync-agent/pkg/cloud"
)

// OpsService exposes the operator actions the bedside UI would offer:
// login, manual sync, history download, export and data sharing. It binds
// to a local address only.
type OpsService struct {
	Addr     string
	Session  *vsync.Session
	Engine   *vsync.Engine
	Store    storage.Store
	Registry *share.Registry
	Cloud    cloud.Client
	Logger   zerolog.Logger

	server *http.Server
}

// NewOpsService initializes a new OpsService.
func NewOpsService(addr string, session *vsync.Session, engine *vsync.Engine,
	store storage.Store, registry *share.Registry, cloudClient cloud.Client,
	logger zerolog.Logger) *OpsService {

	return &OpsService{
		Addr:     addr,
		Session:  session,
		Engine:   engine,
		Store:    store,
		Registry: registry,
		Cloud:    cloudClient,
		Logger:   logger,
	}
}

// Start binds the operator endpoints and serves in the background.
func (s *OpsService) Start() error {
	if s.server != nil {
		s.Logger.Warn().Msg("OpsService is already running")
		return errors.New("ops service is already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ops/login", s.handleLogin)
	mux.HandleFunc("/ops/logout", s.handleLogout)
	mux.HandleFunc("/ops/sync", s.handleSync)
	mux.HandleFunc("/ops/download", s.handleDownload)
	mux.HandleFunc("/ops/export", s.handleExport)
	mux.HandleFunc("/ops/statistics", s.handleStatistics)
	mux.HandleFunc("/ops/latest", s.handleLatest)
	mux.HandleFunc("/ops/alarms", s.handleAlarms)
	mux.HandleFunc("/ops/share", s.handleShare)
	mux.HandleFunc("/ops/share/validate", s.handleShareValidate)
	mux.HandleFunc("/ops/share/remote", s.handleShareRemote)
	mux.HandleFunc("/ops/share/fetch", s.handleShareFetch)

	s.server = &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("Ops server exited")
		}
	}()

	s.Logger.Info().Str("addr", s.Addr).Msg("OpsService started successfully")
	return nil
}

// Stop shuts the operator server down.
func (s *OpsService) Stop() error {
	if s.server == nil {
		s.Logger.Warn().Msg("OpsService is not running")
		return errors.New("ops service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type shareIssueRequest struct {
	OwnerID   string    `json:"ownerId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	ValidDays int       `json:"validDays"`
}

type shareRemoteRequest struct {
	RecipientEmail string    `json:"recipientEmail"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	ValidDays      int       `json:"validDays"`
}

func (s *OpsService) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	if err := s.Session.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

func (s *OpsService) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.Session.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *OpsService) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.Engine.SyncNow(r.Context()); err != nil {
		if errors.Is(err, vsync.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "login required before syncing")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sync triggered"})
}

func (s *OpsService) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.Engine.DownloadRange(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, vsync.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "login required before downloading")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"merged": len(records)})
}

func (s *OpsService) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.Store.QueryVitalSigns(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Query returns newest first; exports read chronologically.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="vitalsigns.csv"`)
		err = export.WriteCSV(w, records)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="vitalsigns.xlsx"`)
		err = export.WriteXLSX(w, records)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("Export failed mid-stream")
	}
}

func (s *OpsService) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.Store.Statistics(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *OpsService) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	latest, err := s.Store.LatestVitalSign(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no readings recorded yet")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *OpsService) handleAlarms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alarms, err := s.Store.QueryAlarms(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alarms": alarms})
}

func (s *OpsService) handleShare(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req shareIssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid share payload")
			return
		}
		// Non-positive validity is rejected here at the boundary; the
		// registry itself would mint an already-expired token.
		if req.ValidDays <= 0 {
			writeError(w, http.StatusBadRequest, "validDays must be positive")
			return
		}
		if !s.Session.Authenticated() {
			writeError(w, http.StatusUnauthorized, "login required before sharing")
			return
		}
		token := s.Registry.Issue(req.OwnerID, req.StartTime, req.EndTime, req.ValidDays)
		writeJSON(w, http.StatusOK, map[string]string{
			"token":     token,
			"shareLink": s.Registry.ShareLink(token),
		})
	case http.MethodDelete:
		s.Registry.Revoke(r.URL.Query().Get("token"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *OpsService) handleShareValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	valid := s.Registry.Validate(r.URL.Query().Get("token"))
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleShareRemote creates a share on the sync service itself, for
// recipients who read through the service rather than this device.
func (s *OpsService) handleShareRemote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req shareRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid share payload")
		return
	}
	if req.ValidDays <= 0 {
		writeError(w, http.StatusBadRequest, "validDays must be positive")
		return
	}
	if !s.Session.Authenticated() {
		writeError(w, http.StatusUnauthorized, "login required before sharing")
		return
	}
	link, err := s.Cloud.CreateShare(r.Context(), s.Session.Token(),
		req.RecipientEmail, req.StartTime, req.EndTime, req.ValidDays)
	if err != nil {
		if errors.Is(err, cloud.ErrUnauthorized) {
			s.Session.HandleUnauthorized()
			writeError(w, http.StatusUnauthorized, "session rejected by sync service")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shareLink": link})
}

// handleShareFetch reads shared data by token. No session needed; the share
// token is the credential.
func (s *OpsService) handleShareFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	records, err := s.Cloud.FetchShared(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

func timeRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end must be RFC3339")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
