package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
)

// HTTPClient calls an external plan-content service.
//
//	POST {base}/v1/sessions:generate  {runner, race, window}     -> {sessions}
//	POST {base}/v1/sessions:adapt     {plan, sessions, trigger}  -> Adaptation
type HTTPClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewHTTPClient(log *logger.Logger, baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClient{
		log:     log.With("service", "GeneratorHTTPClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Runner *domain.Runner `json:"runner"`
	Race   *domain.Race   `json:"race"`
	Window PlanWindow     `json:"window"`
}

type generateResponse struct {
	Sessions []SessionDraft `json:"sessions"`
}

type adaptRequest struct {
	Plan     *domain.TrainingPlan     `json:"plan"`
	Sessions []domain.TrainingSession `json:"sessions"`
	Trigger  Trigger                  `json:"trigger"`
}

func (c *HTTPClient) GenerateSessions(ctx context.Context, runner *domain.Runner, race *domain.Race, window PlanWindow) ([]SessionDraft, error) {
	var out generateResponse
	if err := c.post(ctx, "/v1/sessions:generate", generateRequest{Runner: runner, Race: race, Window: window}, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *HTTPClient) AdaptSessions(ctx context.Context, plan *domain.TrainingPlan, sessions []domain.TrainingSession, trigger Trigger) (*Adaptation, error) {
	var out Adaptation
	if err := c.post(ctx, "/v1/sessions:adapt", adaptRequest{Plan: plan, Sessions: sessions, Trigger: trigger}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out interface{}) error {
	ctx, span := otel.Tracer("generator").Start(ctx, "generator "+path)
	defer span.End()
	span.SetAttributes(attribute.String("http.url", c.baseURL+path))

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generator %s: %w", path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("generator %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("generator call failed", "path", path, "status", resp.StatusCode)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("generator %s: decode response: %w", path, err)
	}
	return nil
}
