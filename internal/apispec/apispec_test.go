package apispec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alexgavs/eyeson-go/internal/cache"
	"github.com/alexgavs/eyeson-go/internal/eyesont"
	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const parameterFixture = `{
	"result": "SUCCESS",
	"parameters": [
		{"fieldName": "CLI", "permissionLevel": "READ_ONLY", "alias": "CLI"},
		{"fieldName": "SIM_STATUS_CHANGE", "permissionLevel": "READ_WRITE_LIST", "alias": "SIM Status",
		 "availableValues": [{"value": 1, "name": "Activated", "desc": "Activated"}, {"value": 2, "name": "Suspended", "desc": "Suspended"}]},
		{"fieldName": "MONTHLY_USAGE_MB", "permissionLevel": "READ_ONLY", "alias": "Monthly usage"},
		{"fieldName": "PREPAID_DATA_BALANCE", "permissionLevel": "READ_ONLY", "alias": "Balance"},
		{"fieldName": "IMEI", "permissionLevel": "READ_ONLY", "alias": "IMEI"}
	]
}`

const dataFixture = `{
	"result": "SUCCESS",
	"count": 2,
	"fieldNames": ["CLI", "SIM_STATUS_CHANGE", "MONTHLY_USAGE_MB", "PREPAID_DATA_BALANCE", "IMEI", "EXTRA_COUNTER"],
	"data": [
		{"CLI": "0500000000", "SIM_STATUS_CHANGE": "Activated", "MONTHLY_USAGE_MB": 120, "PREPAID_DATA_BALANCE": 4.88, "IMEI": null, "EXTRA_COUNTER": 3},
		{"CLI": "0500000001", "SIM_STATUS_CHANGE": "Suspended", "MONTHLY_USAGE_MB": 0, "PREPAID_DATA_BALANCE": 5.0, "IMEI": "356938035643809", "EXTRA_COUNTER": null}
	]
}`

type fakeInvoker struct {
	logins int
	calls  []string
	reject string
}

func (f *fakeInvoker) Login(context.Context) (*eyesont.Session, error) {
	f.logins++
	return &eyesont.Session{}, nil
}

func (f *fakeInvoker) Invoke(_ context.Context, area, op string, payload map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, area+"/"+op)
	if op == f.reject {
		return json.RawMessage(`{"result":"REJECTED","message":"not allowed"}`), &eyesont.ResultError{Op: op, Result: models.ResultRejected}
	}
	switch op {
	case KeyParameterList:
		return json.RawMessage(parameterFixture), nil
	case KeyData:
		return json.RawMessage(dataFixture), nil
	}
	return json.RawMessage(`{"result":"SUCCESS","count":0,"jobs":[]}`), nil
}

func seededStore(t *testing.T) cache.Store {
	t.Helper()
	store := cache.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, KeyParameterList, []byte(parameterFixture)))
	require.NoError(t, store.Put(ctx, KeyData, []byte(dataFixture)))
	return store
}

func TestCaptureStoresEveryResponse(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	client := &fakeInvoker{reject: KeyJobList}

	fetched, err := Capture(ctx, client, store, false)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, 1, client.logins)
	assert.Equal(t, []string{
		"provisioning/getProvisioningParameterList",
		"provisioning/getProvisioningData",
		"provisioning/getProvisioningJobList",
	}, client.calls)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeyParameterList, KeyData, KeyJobList}, keys)

	// the rejection is kept as observed
	raw, err := store.Get(ctx, KeyJobList)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "REJECTED")
}

func TestCaptureSkipsWhenCached(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, store.Put(ctx, KeyJobList, []byte(`{"result":"SUCCESS"}`)))
	client := &fakeInvoker{}

	fetched, err := Capture(ctx, client, store, false)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Zero(t, client.logins)
	assert.Empty(t, client.calls)

	fetched, err = Capture(ctx, client, store, true)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Len(t, client.calls, 3)
}

type failingInvoker struct{ fakeInvoker }

func (f *failingInvoker) Invoke(context.Context, string, string, map[string]any) (json.RawMessage, error) {
	return nil, errors.New("connection refused")
}

func TestCaptureFailsOnTransportError(t *testing.T) {
	_, err := Capture(context.Background(), &failingInvoker{}, cache.NewMemoryStore(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyParameterList)
}

func TestGenerateDerivesSubscriberSchema(t *testing.T) {
	doc, err := Generate(context.Background(), seededStore(t), "https://sim.local:8888")
	require.NoError(t, err)

	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.Equal(t, Version, doc.Info.Version)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "https://sim.local:8888", doc.Servers[0].URL)

	for _, op := range []string{models.OpLogin, models.OpLogout} {
		assert.NotNil(t, doc.Paths.Find(models.APIPath(models.AreaGeneral, op)), op)
	}
	for _, op := range []string{
		models.OpGetProvisioningParameterList,
		models.OpGetProvisioningData,
		models.OpGetProvisioningJobList,
		models.OpUpdateProvisioningData,
	} {
		item := doc.Paths.Find(models.APIPath(models.AreaProvisioning, op))
		require.NotNil(t, item, op)
		require.NotNil(t, item.Post, op)
		assert.Equal(t, op, item.Post.OperationID)
	}

	sub := doc.Components.Schemas["Subscriber"].Value
	require.NotNil(t, sub)

	status := sub.Properties["SIM_STATUS_CHANGE"].Value
	assert.Equal(t, "SIM Status", status.Description)
	assert.Equal(t, []any{"Activated", "Suspended"}, status.Enum)
	assert.True(t, status.Type.Is("string"))

	assert.True(t, sub.Properties["MONTHLY_USAGE_MB"].Value.Type.Is("integer"))
	assert.True(t, sub.Properties["PREPAID_DATA_BALANCE"].Value.Type.Is("number"))

	imei := sub.Properties["IMEI"].Value
	assert.True(t, imei.Type.Is("string"))
	assert.True(t, imei.Nullable)

	// undeclared fields still make it in
	extra := sub.Properties["EXTRA_COUNTER"].Value
	require.NotNil(t, extra)
	assert.True(t, extra.Type.Is("integer"))
	assert.True(t, extra.Nullable)

	result := doc.Components.Schemas["ResponseBase"].Value.Properties["result"].Value
	assert.Len(t, result.Enum, len(models.Results))
}

func TestGenerateWithEmptyCache(t *testing.T) {
	doc, err := Generate(context.Background(), cache.NewMemoryStore(), "http://localhost:8888")
	require.NoError(t, err)
	assert.Empty(t, doc.Components.Schemas["Subscriber"].Value.Properties)
}

func TestEncode(t *testing.T) {
	doc, err := Generate(context.Background(), seededStore(t), "http://localhost:8888")
	require.NoError(t, err)

	js, err := Encode(doc, FormatJSON)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js, &decoded))
	assert.Equal(t, "3.0.0", decoded["openapi"])

	ys, err := Encode(doc, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(ys), "\nopenapi: 3.0.0\n")
	assert.Contains(t, string(ys), "      summary: Get provisioning data (SIMs)\n")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(ys, &back))
	assert.Equal(t, decoded["info"], back["info"])

	_, err = Encode(doc, "xml")
	assert.Error(t, err)
}
