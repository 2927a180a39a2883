package eyesont

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/alexgavs/eyeson-go/internal/config"
	"github.com/alexgavs/eyeson-go/internal/models"
)

// sessionTTL is how long a login is trusted before EnsureSession re-logs.
const sessionTTL = 25 * time.Minute

// Options tune transport behaviour. Zero values give the defaults below.
type Options struct {
	// Timeout per HTTP request, 30s when zero.
	Timeout time.Duration
	// InsecureTLS skips certificate checks; the Pelephone portal uses a self-signed cert.
	InsecureTLS bool
	// MinInterval between two requests (WAF protection), none when zero.
	MinInterval time.Duration
	// StrictShapes runs models.ValidateProvisioningData on every data response.
	StrictShapes bool
	// HTTPClient replaces the built-in client (its Jar is left untouched).
	HTTPClient *http.Client
}

// OptionsFromConfig maps the upstream settings of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:     time.Duration(cfg.ApiTimeoutSec) * time.Second,
		InsecureTLS: cfg.ApiInsecureTLS,
		MinInterval: time.Duration(cfg.ApiDelayMs) * time.Millisecond,
	}
}

// Session is what a successful login hands back.
type Session struct {
	ID        string
	Token     string
	LoginTime time.Time
}

// Client представляет API-клиент EyesOnT с сессионной авторизацией
type Client struct {
	BaseURL string

	creds      models.Credentials
	opts       Options
	httpClient *http.Client

	sessionMu sync.RWMutex
	session   *Session

	rateMu   sync.Mutex
	lastCall time.Time
}

// NewClient создает новый клиент с cookie-jar для сессий
func NewClient(baseURL string, creds models.Credentials, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureTLS, MinVersion: tls.VersionTLS12},
			},
			Jar:     jar,
			Timeout: timeout,
		}
	}

	log.Printf("[EyesOnT API] Initialized: URL=%s, User=%s, Password=%s", baseURL, creds.Username, config.MaskPassword(creds.Password))

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		opts:       opts,
		httpClient: httpClient,
	}
}

// Session returns a copy of the current session, or nil before Login.
func (c *Client) Session() *Session {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Login выполняет авторизацию и сохраняет сессионные cookies
func (c *Client) Login(ctx context.Context) (*Session, error) {
	resp, _, err := post[models.LoginResponse](ctx, c, models.AreaGeneral, models.OpLogin, c.creds)
	if err != nil {
		return nil, err
	}
	if resp.SessionId == "" || resp.JwtToken == "" {
		return nil, &ResultError{Op: models.OpLogin, Result: models.ResultFailed, Message: "login succeeded without sessionId/jwtToken"}
	}

	s := &Session{ID: resp.SessionId, Token: resp.JwtToken, LoginTime: time.Now()}
	c.sessionMu.Lock()
	c.session = s
	c.sessionMu.Unlock()

	log.Printf("[EyesOnT API] LOGIN SUCCESS - session %s stored", s.ID)
	out := *s
	return &out, nil
}

// EnsureSession проверяет и обновляет сессию при необходимости
func (c *Client) EnsureSession(ctx context.Context) error {
	c.sessionMu.RLock()
	needsLogin := c.session == nil || time.Since(c.session.LoginTime) > sessionTTL
	c.sessionMu.RUnlock()

	if needsLogin {
		_, err := c.Login(ctx)
		return err
	}
	return nil
}

// Logout ends the session on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	_, _, err := post[models.LogoutResponse](ctx, c, models.AreaGeneral, models.OpLogout, c.creds)
	c.sessionMu.Lock()
	c.session = nil
	c.sessionMu.Unlock()
	return err
}

// GetProvisioningParameterList is the schema discovery call for subscriber fields.
func (c *Client) GetProvisioningParameterList(ctx context.Context) (*models.GetProvisioningParameterListResponse, error) {
	resp, _, err := post[models.GetProvisioningParameterListResponse](ctx, c, models.AreaProvisioning, models.OpGetProvisioningParameterList, c.creds)
	return resp, err
}

// GetProvisioningData получает список SIM-карт
func (c *Client) GetProvisioningData(ctx context.Context, q models.ProvisioningDataQuery) (*models.GetProvisioningDataResponse, error) {
	req := models.GetProvisioningDataRequest{Credentials: c.creds, ProvisioningDataQuery: q}
	resp, _, err := post[models.GetProvisioningDataResponse](ctx, c, models.AreaProvisioning, models.OpGetProvisioningData, req)
	if err != nil {
		return resp, err
	}
	if resp.Data == nil {
		resp.Data = []models.Record{}
	}

	log.Printf("[EyesOnT API] PARSED: result=%s, count=%d, dataLen=%d", resp.Result, resp.Count, len(resp.Data))

	if c.opts.StrictShapes {
		if err := models.ValidateProvisioningData(resp); err != nil {
			return resp, fmt.Errorf("%s: %w", models.OpGetProvisioningData, err)
		}
	}
	return resp, nil
}

// FindByCLI returns the record whose CLI equals cli.
func (c *Client) FindByCLI(ctx context.Context, cli string) (models.Record, bool, error) {
	resp, err := c.GetProvisioningData(ctx, models.ProvisioningDataQuery{
		Limit:  1,
		Search: []models.SearchParam{{FieldName: models.FieldCLI, FieldValue: cli}},
	})
	if err != nil {
		return nil, false, err
	}
	if len(resp.Data) == 0 {
		return nil, false, nil
	}
	return resp.Data[0], true, nil
}

// GetProvisioningJobList получает список задач провизионирования
func (c *Client) GetProvisioningJobList(ctx context.Context, q models.JobQuery) (*models.GetJobsResponse, error) {
	req := models.GetJobsRequest{Credentials: c.creds, JobQuery: q}
	resp, _, err := post[models.GetJobsResponse](ctx, c, models.AreaProvisioning, models.OpGetProvisioningJobList, req)
	if err != nil {
		return resp, err
	}

	log.Printf("[EyesOnT API] GetJobs PARSED: result=%s, count=%d, jobsLen=%d", resp.Result, resp.Count, len(resp.Jobs))
	return resp, nil
}

// GetJob fetches a single job by the requestId an update returned.
func (c *Client) GetJob(ctx context.Context, jobID int) (*models.Job, error) {
	resp, err := c.GetProvisioningJobList(ctx, models.JobQuery{JobId: jobID, Limit: 1})
	if err != nil {
		return nil, err
	}
	for i := range resp.Jobs {
		if resp.Jobs[i].JobId == jobID {
			return &resp.Jobs[i], nil
		}
	}
	return nil, &ResultError{Op: models.OpGetProvisioningJobList, Result: models.ResultMissingEntity, Message: fmt.Sprintf("job %d not found", jobID)}
}

// WaitForJob polls the job list until the job reaches a terminal status or ctx ends.
func (c *Client) WaitForJob(ctx context.Context, jobID int, interval time.Duration) (*models.Job, error) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	for attempt := 1; ; attempt++ {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		log.Printf("[EyesOnT API] Job %d poll %d: status=%s", jobID, attempt, job.State())
		if job.Done() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// UpdateProvisioningData submits a batch of actions and returns the job's requestId.
// The update is applied asynchronously; use WaitForJob to observe completion.
func (c *Client) UpdateProvisioningData(ctx context.Context, actions []models.ProvisioningAction) (*models.UpdateProvisioningDataResponse, error) {
	req := models.UpdateProvisioningDataRequest{Credentials: c.creds, Actions: actions}
	resp, _, err := post[models.UpdateProvisioningDataResponse](ctx, c, models.AreaProvisioning, models.OpUpdateProvisioningData, req)
	if err != nil {
		if resp != nil {
			log.Printf("[EyesOnT API] BulkUpdate FAILED: %s - %s", resp.Result, resp.Message)
		}
		return resp, err
	}

	log.Printf("[EyesOnT API] BulkUpdate SUCCESS: requestId=%d", resp.RequestId)
	return resp, nil
}

// BulkUpdate выполняет массовое обновление SIM-карт
// API формат: {"actions": [{"actionType": "...", "targetValue": "...", "subscribers": [{"neId": "..."}]}]}
func (c *Client) BulkUpdate(ctx context.Context, msisdns []string, actionType, targetValue, targetID string) (int, error) {
	subscribers := make([]models.Subscriber, len(msisdns))
	for i, m := range msisdns {
		subscribers[i] = models.Subscriber{NeId: models.NormalizeMSISDN(m)}
	}

	log.Printf("[EyesOnT API] BulkUpdate REQUEST: subscribers=%v (from %v), actionType=%s, targetValue=%s",
		subscribers, msisdns, actionType, targetValue)

	resp, err := c.UpdateProvisioningData(ctx, []models.ProvisioningAction{{
		ActionType:  actionType,
		TargetValue: targetValue,
		TargetId:    targetID,
		Subscribers: subscribers,
	}})
	if err != nil {
		return 0, err
	}
	return resp.RequestId, nil
}

// ChangeStatus submits a SIM_STATE_CHANGE for the given subscribers.
func (c *Client) ChangeStatus(ctx context.Context, status models.SimStatus, neIds ...string) (int, error) {
	return c.BulkUpdate(ctx, neIds, models.ActionSimStateChange, string(status), "")
}

// Invoke posts payload (credentials added) to any contract operation and returns
// the raw body. The envelope is still checked.
func (c *Client) Invoke(ctx context.Context, area, op string, payload map[string]any) (json.RawMessage, error) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["username"] = c.creds.Username
	body["password"] = c.creds.Password

	_, raw, err := post[models.ResponseBase](ctx, c, area, op, body)
	return raw, err
}

type enveloped interface {
	Envelope() models.ResponseBase
}

// post is the single request path: rate limit, log, send, decode, check envelope.
// On a ResultError the decoded response is returned alongside the error.
func post[T enveloped](ctx context.Context, c *Client, area, op string, reqBody any) (*T, json.RawMessage, error) {
	raw, err := c.send(ctx, op, c.BaseURL+models.APIPath(area, op), reqBody)
	if err != nil {
		return nil, raw, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, &TransportError{Op: op, StatusCode: http.StatusOK, Body: truncate(string(raw), 500), Err: fmt.Errorf("unmarshal error: %w", err)}
	}
	return &out, raw, resultError(op, out.Envelope())
}

func (c *Client) send(ctx context.Context, op, url string, body any) (json.RawMessage, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal error: %w", op, err)
	}
	if masked, err := json.MarshalIndent(maskPasswordInBody(jsonBody), "", "  "); err == nil {
		log.Printf("[EyesOnT API] REQUEST to %s:\n%s", url, string(masked))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	log.Printf("[EyesOnT API] RESPONSE (status=%d):\n%s", resp.StatusCode, truncate(string(respBody), 500))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
		var env models.ResponseBase
		if json.Unmarshal(respBody, &env) == nil && env.Result != "" {
			te.Envelope = &env
		}
		return respBody, te
	}
	return respBody, nil
}

// waitTurn enforces MinInterval between requests of this client.
func (c *Client) waitTurn(ctx context.Context) error {
	if c.opts.MinInterval <= 0 {
		return nil
	}
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if wait := c.opts.MinInterval - time.Since(c.lastCall); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastCall = time.Now()
	return nil
}

// maskPasswordInBody создаёт копию body со скрытым паролем для логирования
func maskPasswordInBody(body []byte) any {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return string(body)
	}
	if pwd, ok := m["password"].(string); ok {
		m["password"] = config.MaskPassword(pwd)
	}
	return m
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
