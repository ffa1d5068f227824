package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tgbridge/config"
	"tgbridge/lib"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if cfg.ServerToken != "" {
			r.Use(bearerAuth(cfg.ServerToken))
		} else {
			log.Sugar().Info("Auth is disabled since no server token is defined")
		}

		r.Post("/process", ctrl.processBatch)

		r.Route("/api", func(r chi.Router) {
			r.Post("/subscriptions", ctrl.subscribe)
			r.Delete("/subscriptions", ctrl.unsubscribe)
			r.Get("/cursor", ctrl.viewCursor)
		})
	})

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"ok": false, "error": apiError{Code: errorCode(err), Message: err.Error()}}
	b, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body map[string]any) {
	body["ok"] = true
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.log.Sugar().Errorw("Response marshal failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func errorCode(err error) string {
	var storeErr *lib.StoreError
	switch {
	case lib.IsValidationError(err):
		return "VALIDATION_ERROR"
	case errors.As(err, &storeErr):
		return "DB_QUERY_ERROR"
	default:
		return "PROCESSING_ERROR"
	}
}

func statusFor(err error) int {
	if lib.IsValidationError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (ctrl *controller) processBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batch := &lib.Batch{}
	if err := json.NewDecoder(r.Body).Decode(batch); err != nil {
		ctrl.reject(w, http.StatusBadRequest, &lib.ValidationError{Reason: err.Error()})
		return
	}

	result, err := ctrl.svc.ProcessBatch(ctx, batch)
	if err != nil {
		ctrl.reject(w, statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"pending":   result.Pending,
	})
}

type subscribeRequest struct {
	ChannelURL       string `json:"channelUrl"`
	GroupID          string `json:"groupId"`
	WebhookURL       string `json:"webhookUrl"`
	Description      string `json:"description"`
	DiscordChannelID string `json:"discordChannelId"`
	DiscordServerID  string `json:"discordServerId"`
	ChannelName      string `json:"channelName"`
	ServerName       string `json:"serverName"`
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := subscribeRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctrl.reject(w, http.StatusBadRequest, &lib.ValidationError{Reason: err.Error()})
		return
	}

	webhook, err := ctrl.svc.Subscribe(ctx, lib.SubscribeParams{
		ChannelURL:       req.ChannelURL,
		GroupID:          req.GroupID,
		WebhookURL:       req.WebhookURL,
		Description:      req.Description,
		DiscordChannelID: req.DiscordChannelID,
		DiscordServerID:  req.DiscordServerID,
		ChannelName:      req.ChannelName,
		ServerName:       req.ServerName,
	})
	if err != nil {
		ctrl.reject(w, statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"webhook_id": webhook.ID,
		"group_id":   webhook.GroupID,
		"active":     webhook.IsActive,
	})
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelURL := r.URL.Query().Get("channel_url")
	groupID := r.URL.Query().Get("group_id")

	if channelURL == "" || groupID == "" {
		ctrl.reject(w, http.StatusBadRequest, &lib.ValidationError{Reason: "channel_url and group_id are required"})
		return
	}

	removed, err := ctrl.svc.Unsubscribe(ctx, channelURL, groupID)
	if err != nil {
		ctrl.reject(w, statusFor(err), err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"removed": removed})
}

func (ctrl *controller) viewCursor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelURL := r.URL.Query().Get("channel_url")
	if channelURL == "" {
		ctrl.reject(w, http.StatusBadRequest, &lib.ValidationError{Reason: "channel_url is required"})
		return
	}

	cursor, err := ctrl.svc.CursorFor(ctx, channelURL)
	if err != nil {
		ctrl.reject(w, statusFor(err), err)
		return
	}

	body := map[string]any{"last_seen_msg_id": int64(0), "last_seen_msg_time": nil}
	if cursor != nil {
		body["last_seen_msg_id"] = cursor.LastSeenMsgID
		if cursor.LastSeenMsgTime != nil {
			body["last_seen_msg_time"] = cursor.LastSeenMsgTime.UTC().Format(time.RFC3339)
		}
	}
	ctrl.resolve(w, http.StatusOK, body)
}
