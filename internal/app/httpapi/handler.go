// Package httpapi exposes the REST API over the application services.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/postlane/platform/internal/app"
	"github.com/postlane/platform/internal/app/domain/social"
	subdomain "github.com/postlane/platform/internal/app/domain/subscription"
	subscriptionsvc "github.com/postlane/platform/internal/app/services/subscription"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/internal/middleware"
)

// SkipAuthPaths are the endpoints served without a bearer token.
var SkipAuthPaths = []string{"/healthz", "/metrics", "/auth/register", "/auth/login", "/webhooks/events"}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/auth/register", h.register)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/users/me", h.me)
	mux.HandleFunc("/users/", h.userResources)
	mux.HandleFunc("/research", h.research)
	mux.HandleFunc("/leaderboard", h.leaderboard)
	mux.HandleFunc("/webhooks", h.webhooks)
	mux.HandleFunc("/webhooks/events", h.webhookEvents)
	mux.HandleFunc("/webhooks/", h.webhookResources)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Users.Register(r.Context(), payload.Email, payload.Password, payload.DisplayName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := h.app.Subscriptions.Ensure(r.Context(), u.ID, ""); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, u, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.GetUserID(r.Context())
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// userResources dispatches /users/{id}/... paths.
func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]

	if !h.authorize(w, r, userID) {
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		u, err := h.app.Users.Get(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
		return
	}

	switch parts[1] {
	case "social":
		h.userSocial(w, r, userID, parts[2:])
	case "posts":
		h.userPosts(w, r, userID)
	case "subscription":
		h.userSubscription(w, r, userID, parts[2:])
	case "usage":
		h.userUsage(w, r, userID)
	case "streak":
		h.userStreak(w, r, userID)
	case "achievements":
		h.userAchievements(w, r, userID)
	case "scheduled":
		h.userScheduled(w, r, userID, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// authorize enforces that the caller owns the resource or is an admin.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	caller := middleware.GetUserID(r.Context())
	if caller == userID || middleware.GetUserRole(r.Context()) == "admin" {
		return true
	}
	writeError(w, http.StatusForbidden, fmt.Errorf("access denied"))
	return false
}

func (h *handler) userSocial(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		accountID := rest[0]
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		acct, err := h.app.Social.Get(r.Context(), accountID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if acct.UserID != userID {
			writeError(w, http.StatusForbidden, fmt.Errorf("access denied"))
			return
		}
		if err := h.app.Social.Unlink(r.Context(), accountID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.Method {
	case http.MethodGet:
		accounts, err := h.app.Social.List(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, accounts)

	case http.MethodPost:
		var payload struct {
			Platform     string    `json:"platform"`
			Handle       string    `json:"handle"`
			AccessToken  string    `json:"access_token"`
			RefreshToken string    `json:"refresh_token"`
			ExpiresAt    time.Time `json:"expires_at"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		acct, err := h.app.Social.Link(r.Context(), userID, social.Platform(payload.Platform),
			payload.Handle, payload.AccessToken, payload.RefreshToken, payload.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, acct)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userPosts(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		posts, err := h.app.Social.ListPosts(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)

	case http.MethodPost:
		var payload struct {
			Platform   string `json:"platform"`
			ExternalID string `json:"external_id"`
			Content    string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Subscriptions.ConsumePost(r.Context(), userID); err != nil {
			if errors.Is(err, subscriptionsvc.ErrDailyLimit) {
				writeError(w, http.StatusTooManyRequests, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		post, err := h.app.Social.RecordPost(r.Context(), userID, social.Platform(payload.Platform),
			payload.ExternalID, payload.Content)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userSubscription(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		switch rest[0] {
		case "wallet":
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var payload struct {
				Wallet string `json:"wallet"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			sub, err := h.app.Subscriptions.SetWallet(r.Context(), userID, payload.Wallet)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, sub)

		case "plan":
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var payload struct {
				Tier  string    `json:"tier"`
				Until time.Time `json:"until"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			sub, err := h.app.Subscriptions.SetPaidTier(r.Context(), userID, subdomain.Tier(payload.Tier), payload.Until)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, sub)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		sub, err := h.app.Subscriptions.Get(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		tier := h.app.Subscriptions.EffectiveTier(r.Context(), userID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"subscription":   sub,
			"effective_tier": tier,
		})

	case http.MethodPost:
		var payload struct {
			Wallet string `json:"wallet"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sub, err := h.app.Subscriptions.Ensure(r.Context(), userID, payload.Wallet)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userUsage(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	usage, limits, tier, err := h.app.Subscriptions.Usage(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"usage":  usage,
		"limits": limits,
		"tier":   tier,
	})
}

func (h *handler) userStreak(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	streak, err := h.app.Gamification.Streak(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

func (h *handler) userAchievements(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	achievements, err := h.app.Gamification.Achievements(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

func (h *handler) userScheduled(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		postID := rest[0]
		switch r.Method {
		case http.MethodGet:
			post, err := h.app.Scheduler.Get(r.Context(), userID, postID)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, post)

		case http.MethodPatch:
			var payload struct {
				Enabled *bool   `json:"enabled"`
				Content *string `json:"content"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			post, err := h.app.Scheduler.Get(r.Context(), userID, postID)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			if payload.Enabled != nil {
				if post, err = h.app.Scheduler.SetEnabled(r.Context(), userID, postID, *payload.Enabled); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
			}
			if payload.Content != nil {
				if post, err = h.app.Scheduler.UpdateContent(r.Context(), userID, postID, *payload.Content); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
			}
			writeJSON(w, http.StatusOK, post)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		posts, err := h.app.Scheduler.List(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)

	case http.MethodPost:
		var payload struct {
			Platform string    `json:"platform"`
			Content  string    `json:"content"`
			Rule     string    `json:"rule"`
			RunAt    time.Time `json:"run_at"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// Scheduling is a paid feature.
		if err := h.app.Subscriptions.RequireTier(r.Context(), userID, subdomain.TierBasic); err != nil {
			if errors.Is(err, subscriptionsvc.ErrTierInsufficient) {
				writeError(w, http.StatusForbidden, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		post, err := h.app.Scheduler.Schedule(r.Context(), userID, social.Platform(payload.Platform),
			payload.Content, payload.Rule, payload.RunAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) research(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("topic is required"))
		return
	}
	userID := middleware.GetUserID(r.Context())

	if err := h.app.Subscriptions.ConsumeResearch(r.Context(), userID); err != nil {
		if errors.Is(err, subscriptionsvc.ErrDailyLimit) {
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	bundle, err := h.app.Research.Research(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	entries, err := h.app.Gamification.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) webhooks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	switch r.Method {
	case http.MethodGet:
		hooks, err := h.app.Webhooks.List(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, hooks)

	case http.MethodPost:
		var payload struct {
			Wallet      string `json:"wallet"`
			CallbackURL string `json:"callback_url"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sub, err := h.app.Webhooks.Register(r.Context(), userID, payload.Wallet, payload.CallbackURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) webhookResources(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhooks"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.app.Webhooks.Deactivate(r.Context(), userID, id); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// webhookEvents receives provider deliveries. Authenticated by shared secret
// rather than a user token.
func (h *handler) webhookEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.app.Dispatcher.Authorize(r.Header.Get("Authorization")); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	payload, err := httputil.ReadAllStrict(r.Body, 4<<20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	processed, err := h.app.Dispatcher.Dispatch(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
