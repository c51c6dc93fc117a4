package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"travelsec/internal/middleware"
	"travelsec/internal/ratelimit"
	"travelsec/internal/secretstore"
	"travelsec/internal/security/oauthstate"
	"travelsec/internal/security/tokencipher"
	"travelsec/internal/telemetry"
	"travelsec/pkg/errors"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

// api serves the sidecar endpoints
type api struct {
	controller *ratelimit.Controller
	quota      *ratelimit.Quota
	cipher     *tokencipher.Cipher
	states     *oauthstate.Manager
	secrets    *secretstore.Accessor
	tel        *telemetry.Telemetry
	otel       *telemetry.Metrics
	logger     *slog.Logger
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewError(errors.ErrorTypeBadRequest, "invalid JSON body").WithCause(err)
	}
	return nil
}

type admissionRequest struct {
	Prefix     string `json:"prefix"`
	Identifier string `json:"identifier"`
	Limit      int    `json:"limit"`
	WindowMs   int64  `json:"windowMs"`
}

func (req admissionRequest) options() ratelimit.Options {
	return ratelimit.Options{
		Prefix:     req.Prefix,
		Identifier: req.Identifier,
		Limit:      req.Limit,
		Window:     time.Duration(req.WindowMs) * time.Millisecond,
	}
}

type admissionResponse struct {
	Success    bool   `json:"success"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Reset      int64  `json:"reset"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Backend    string `json:"backend"`
}

// checkAdmission answers 200 with the decision; the caller enforces it.
func (a *api) checkAdmission(w http.ResponseWriter, r *http.Request) {
	var req admissionRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	if req.Prefix == "" || req.Identifier == "" {
		middleware.WriteError(w, a.logger, errors.NewError(errors.ErrorTypeBadRequest, "prefix and identifier are required"))
		return
	}

	res := a.controller.Check(r.Context(), req.options())
	backend := a.controller.Backend()
	a.otel.RecordAdmission(r.Context(), req.Prefix, backend, res.Success)

	ratelimit.WriteHeaders(w.Header(), res)
	resp := admissionResponse{
		Success:   res.Success,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		Reset:     res.Reset.UnixMilli(),
		Backend:   backend,
	}
	if !res.Success {
		resp.RetryAfter = ratelimit.RetryAfter(res.Reset, a.controller.Now())
		ratelimit.WriteRetryAfter(w.Header(), res.Reset, a.controller.Now())
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

type quotaRequest struct {
	Category       string `json:"category"`
	Tier           string `json:"tier"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
}

type quotaResponse struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason"`
	RetryAfter  int    `json:"retryAfter,omitempty"`
	UpgradePlan string `json:"upgradePlan,omitempty"`
}

// checkQuota answers 429 when either cost window is exhausted
func (a *api) checkQuota(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	if req.OrganizationID == "" || req.UserID == "" {
		middleware.WriteError(w, a.logger, errors.NewError(errors.ErrorTypeBadRequest, "organizationId and userId are required"))
		return
	}

	d, err := a.quota.Check(r.Context(), ratelimit.QuotaRequest{
		Category:       ratelimit.Category(req.Category),
		Tier:           ratelimit.Tier(req.Tier),
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
	})
	if err != nil {
		middleware.WriteError(w, a.logger, errors.NewError(errors.ErrorTypeBadRequest, err.Error()).WithCause(err))
		return
	}

	ratelimit.WriteQuotaHeaders(w.Header(), d)
	status := http.StatusOK
	resp := quotaResponse{Allowed: d.Allowed, Reason: d.Reason}
	if !d.Allowed {
		status = http.StatusTooManyRequests
		resp.RetryAfter = d.RetryAfter
		resp.UpgradePlan = ratelimit.UpgradePlan(ratelimit.Tier(req.Tier))
	}
	middleware.WriteJSON(w, status, resp)
}

type sealRequest struct {
	Token string `json:"token"`
}

func (a *api) seal(w http.ResponseWriter, r *http.Request) {
	var req sealRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	ctx, span := a.tel.StartSpan(r.Context(), "credentials.seal")
	defer span.End()

	sealed, err := a.cipher.Encrypt(req.Token)
	if err != nil {
		telemetry.RecordError(ctx, err)
		middleware.WriteError(w, a.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"sealed": sealed})
}

type openRequest struct {
	Stored string `json:"stored"`
}

func (a *api) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	ctx, span := a.tel.StartSpan(r.Context(), "credentials.open")
	defer span.End()

	d, err := a.cipher.DecodeWithMigration(req.Stored)
	if err != nil {
		telemetry.RecordError(ctx, err)
		telemetry.LogEvent(ctx, a.logger, slog.LevelWarn, "credential open failed", "error", err)
		middleware.WriteError(w, a.logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("credentials.needs_migration", d.NeedsMigration))
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"token":          d.Token,
		"needsMigration": d.NeedsMigration,
	})
}

type issueStateRequest struct {
	UserID string `json:"userId"`
}

func (a *api) issueState(w http.ResponseWriter, r *http.Request) {
	var req issueStateRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	state, err := a.states.Issue(req.UserID)
	if err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"state": state})
}

type consumeStateRequest struct {
	State string `json:"state"`
}

func (a *api) consumeState(w http.ResponseWriter, r *http.Request) {
	var req consumeStateRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	ctx, span := a.tel.StartSpan(r.Context(), "oauth_state.consume")
	defer span.End()

	res := a.states.Consume(ctx, req.State)
	span.SetAttributes(attribute.Bool("oauth_state.ok", res.OK))
	status := http.StatusOK
	switch {
	case res.OK:
	case res.Reason == oauthstate.ReasonUnavailable:
		status = http.StatusServiceUnavailable
	case res.Reason == oauthstate.ReasonReplayed:
		status = http.StatusConflict
	default:
		status = http.StatusBadRequest
	}
	middleware.WriteJSON(w, status, res)
}

func (a *api) diagnostics(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"production":       a.secrets.IsProduction(),
		"secrets":          a.secrets.Diagnostics(),
		"rateLimitBackend": a.controller.Backend(),
	})
}

func (a *api) resetLimit(w http.ResponseWriter, r *http.Request) {
	var req admissionRequest
	if err := decode(w, r, &req); err != nil {
		middleware.WriteError(w, a.logger, err)
		return
	}
	if req.Prefix == "" || req.Identifier == "" {
		middleware.WriteError(w, a.logger, errors.NewError(errors.ErrorTypeBadRequest, "prefix and identifier are required"))
		return
	}
	if err := a.controller.Reset(r.Context(), req.options()); err != nil {
		// the local counter is always cleared; only the shared one can fail
		telemetry.LogEvent(r.Context(), a.logger, slog.LevelWarn, "rate limit reset incomplete", "prefix", req.Prefix, "error", err)
		middleware.WriteError(w, a.logger, errors.NewError(errors.ErrorTypeUnavailable, "distributed reset failed").WithCause(err))
		return
	}
	a.logger.Info("rate limit reset", "prefix", req.Prefix)
	w.WriteHeader(http.StatusNoContent)
}
