package eyesont

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexgavs/eyeson-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream answers by path with canned bodies and records the last request body.
type fakeUpstream struct {
	t        *testing.T
	handlers map[string]func(body map[string]any) (int, any)
	last     atomic.Value
	calls    atomic.Int32
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	f := &fakeUpstream{t: t, handlers: map[string]func(map[string]any) (int, any){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.last.Store(body)

		h, ok := f.handlers[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
			return
		}
		status, out := h(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeUpstream) on(area, op string, h func(map[string]any) (int, any)) {
	f.handlers[models.APIPath(area, op)] = h
}

func (f *fakeUpstream) lastBody() map[string]any {
	v, _ := f.last.Load().(map[string]any)
	return v
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, models.Credentials{Username: "test", Password: "pwd"}, Options{StrictShapes: true})
}

func TestLoginStoresSession(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaGeneral, models.OpLogin, func(body map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS", "sessionId": "S1", "jwtToken": "J1"}
	})
	c := newTestClient(srv)

	s, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S1", s.ID)
	assert.Equal(t, "J1", s.Token)
	assert.Equal(t, "test", f.lastBody()["username"])
	assert.Equal(t, "pwd", f.lastBody()["password"])
	require.NotNil(t, c.Session())

	// Fresh session: no second login.
	require.NoError(t, c.EnsureSession(context.Background()))
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestLoginRejectedIsAuthFailure(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaGeneral, models.OpLogin, func(map[string]any) (int, any) {
		return 200, map[string]any{"result": "REJECTED", "message": "Invalid Username or password", "userId": 0}
	})
	c := newTestClient(srv)

	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.True(t, errors.Is(err, ErrRejected))

	var re *ResultError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Invalid Username or password", re.Message)
	assert.Nil(t, c.Session())
}

func TestNon2xxIsTransportError(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningData, func(map[string]any) (int, any) {
		return 503, map[string]any{"result": "FAILED", "message": "Simulator is disabled"}
	})
	c := newTestClient(srv)

	_, err := c.GetProvisioningData(context.Background(), models.ProvisioningDataQuery{Limit: 1})
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 503, te.StatusCode)
	require.NotNil(t, te.Envelope)
	assert.Equal(t, models.ResultFailed, te.Envelope.Result)

	var re *ResultError
	assert.False(t, errors.As(err, &re))
}

func TestConnectionFailureIsTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", models.Credentials{Username: "u", Password: "p"}, Options{Timeout: time.Second})
	_, err := c.GetProvisioningParameterList(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestUndecodableBodyIsTransportError(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningParameterList, func(map[string]any) (int, any) {
		return 200, "not an object"
	})
	c := newTestClient(srv)

	_, err := c.GetProvisioningParameterList(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 200, te.StatusCode)
}

func TestGetProvisioningDataSendsQueryAndValidates(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningData, func(body map[string]any) (int, any) {
		return 200, map[string]any{
			"result":     "SUCCESS",
			"count":      1,
			"fieldNames": []string{"CLI", "SIM_STATUS_CHANGE", "PREPAID_DATA_BALANCE"},
			"data": []map[string]any{
				{"CLI": "0500000000", "SIM_STATUS_CHANGE": "Activated", "PREPAID_DATA_BALANCE": 2.5},
			},
		}
	})
	c := newTestClient(srv)

	rec, found, err := c.FindByCLI(context.Background(), "0500000000")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusActivated, rec.Status())

	body := f.lastBody()
	assert.EqualValues(t, 1, body["limit"])
	search := body["search"].([]any)
	require.Len(t, search, 1)
	assert.Equal(t, map[string]any{"fieldName": "CLI", "fieldValue": "0500000000"}, search[0])
}

func TestStrictShapesFlagsBrokenRecords(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningData, func(map[string]any) (int, any) {
		return 200, map[string]any{
			"result":     "SUCCESS",
			"count":      1,
			"fieldNames": []string{"CLI", "SIM_STATUS_CHANGE"},
			"data":       []map[string]any{{"CLI": "0500000000"}},
		}
	})
	c := newTestClient(srv)

	resp, err := c.GetProvisioningData(context.Background(), models.ProvisioningDataQuery{})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Contains(t, err.Error(), "missing fields SIM_STATUS_CHANGE")
}

func TestUpdateReturnsResponseWithResultError(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpUpdateProvisioningData, func(body map[string]any) (int, any) {
		return 200, map[string]any{"result": "MISSING_ENTITY", "message": "subscriber not found: 0599999999"}
	})
	c := newTestClient(srv)

	resp, err := c.UpdateProvisioningData(context.Background(), []models.ProvisioningAction{
		models.NewStatusChange(models.StatusSuspended, "0599999999"),
	})
	assert.True(t, errors.Is(err, ErrMissingEntity))
	require.NotNil(t, resp)
	assert.Equal(t, models.ResultMissingEntity, resp.Result)
}

func TestChangeStatusNormalizesMSISDN(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpUpdateProvisioningData, func(body map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS", "requestId": 42}
	})
	c := newTestClient(srv)

	id, err := c.ChangeStatus(context.Background(), models.StatusSuspended, "972502686545")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	actions := f.lastBody()["actions"].([]any)
	action := actions[0].(map[string]any)
	assert.Equal(t, "SIM_STATE_CHANGE", action["actionType"])
	assert.Equal(t, "Suspended", action["targetValue"])
	subs := action["subscribers"].([]any)
	assert.Equal(t, "0502686545", subs[0].(map[string]any)["neId"])
}

func TestWaitForJobPollsUntilDone(t *testing.T) {
	f, srv := newFakeUpstream(t)
	var polls atomic.Int32
	f.on(models.AreaProvisioning, models.OpGetProvisioningJobList, func(body map[string]any) (int, any) {
		assert.EqualValues(t, 9, body["jobId"])
		status := "PENDING"
		if polls.Add(1) >= 3 {
			status = "COMPLETED"
		}
		return 200, map[string]any{
			"result": "SUCCESS",
			"count":  1,
			"jobs":   []map[string]any{{"jobId": 9, "status": status, "requestTime": 1700000000, "actions": []any{}}},
		}
	})
	c := newTestClient(srv)

	job, err := c.WaitForJob(context.Background(), 9, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", job.State())
	assert.EqualValues(t, 3, polls.Load())
}

func TestWaitForJobHonoursContext(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningJobList, func(map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS", "count": 1, "jobs": []map[string]any{{"jobId": 1, "status": "PENDING"}}}
	})
	c := newTestClient(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitForJob(ctx, 1, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetJobMissing(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningJobList, func(map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS", "count": 0, "jobs": []any{}}
	})
	c := newTestClient(srv)

	_, err := c.GetJob(context.Background(), 5)
	assert.ErrorIs(t, err, ErrMissingEntity)
}

func TestInvokeReturnsRawBody(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaProvisioning, models.OpGetProvisioningJobList, func(body map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS", "count": 0, "jobs": []any{}}
	})
	c := newTestClient(srv)

	raw, err := c.Invoke(context.Background(), models.AreaProvisioning, models.OpGetProvisioningJobList, map[string]any{"start": 0, "limit": 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"SUCCESS","count":0,"jobs":[]}`, string(raw))
	assert.Equal(t, "test", f.lastBody()["username"])
	assert.EqualValues(t, 10, f.lastBody()["limit"])
}

func TestMinIntervalSpacesRequests(t *testing.T) {
	f, srv := newFakeUpstream(t)
	f.on(models.AreaGeneral, models.OpLogout, func(map[string]any) (int, any) {
		return 200, map[string]any{"result": "SUCCESS"}
	})
	c := NewClient(srv.URL, models.Credentials{Username: "u", Password: "p"}, Options{MinInterval: 40 * time.Millisecond})

	start := time.Now()
	require.NoError(t, c.Logout(context.Background()))
	require.NoError(t, c.Logout(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestMaskPasswordInBody(t *testing.T) {
	masked := maskPasswordInBody([]byte(`{"username":"u","password":"secret"}`))
	m := masked.(map[string]any)
	assert.Equal(t, "s****t", m["password"])
	assert.Equal(t, "u", m["username"])
}
