package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValueDecodesTaggedKinds(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{
		"CLI": "0500000001",
		"MONTHLY_USAGE_MB": 120,
		"PREPAID_DATA_BALANCE": 3.5,
		"IMEI": null,
		"IN_SESSION": true
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, KindString, rec["CLI"].Kind())
	assert.Equal(t, KindInt, rec["MONTHLY_USAGE_MB"].Kind())
	assert.Equal(t, KindFloat, rec["PREPAID_DATA_BALANCE"].Kind())
	assert.True(t, rec["IMEI"].IsNull())
	assert.Equal(t, "true", rec.Get("IN_SESSION"))
	assert.Equal(t, "0500000001", rec.CLI())

	usage, ok := rec["MONTHLY_USAGE_MB"].Int()
	require.True(t, ok)
	assert.EqualValues(t, 120, usage)
}

func TestFieldValueKeepsKindOnEncode(t *testing.T) {
	rec := Record{
		"A": FloatValue(5),
		"B": IntValue(5),
		"C": NullValue(),
		"D": StringValue("5"),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":5.0,"B":5,"C":null,"D":"5"}`, string(raw))

	var back Record
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, KindFloat, back["A"].Kind())
	assert.Equal(t, KindInt, back["B"].Kind())
}

func TestFieldValueRejectsNested(t *testing.T) {
	var v FieldValue
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &v))
}

func TestFieldValueTime(t *testing.T) {
	ts, ok := IntValue(1700000000).Time()
	require.True(t, ok)
	assert.EqualValues(t, 1700000000, ts.Unix())

	ts, ok = StringValue("2024-01-02 03:04:05").Time()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, ok = NullValue().Time()
	assert.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SimStatus
		want     bool
	}{
		{StatusPreActivated, StatusActivated, true},
		{StatusActivated, StatusSuspended, true},
		{StatusSuspended, StatusActivated, true},
		{StatusActivated, StatusTerminated, true},
		{StatusSuspended, StatusTerminated, true},
		{StatusSuspended, StatusSuspended, true},
		{StatusTerminated, StatusActivated, false},
		{StatusPreActivated, StatusSuspended, false},
		{StatusActivated, StatusPreActivated, false},
		{StatusActivated, SimStatus("Deleted"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseSimStatus(t *testing.T) {
	s, ok := ParseSimStatus("suspended")
	require.True(t, ok)
	assert.Equal(t, StatusSuspended, s)

	s, ok = ParseSimStatus("Pre-Active")
	require.True(t, ok)
	assert.Equal(t, StatusPreActivated, s)

	_, ok = ParseSimStatus("Frozen")
	assert.False(t, ok)
}

func TestNormalizeMSISDN(t *testing.T) {
	assert.Equal(t, "0502686545", NormalizeMSISDN("972502686545"))
	assert.Equal(t, "0502686545", NormalizeMSISDN("0502686545"))
	assert.Equal(t, "97250", NormalizeMSISDN("97250"))
}

func TestValidateProvisioningData(t *testing.T) {
	good := &GetProvisioningDataResponse{
		ResponseBase: ResponseBase{Result: ResultSuccess},
		Count:        1,
		FieldNames:   []string{FieldCLI, FieldSimStatus, FieldPrepaidDataBalance},
		Data: []Record{{
			FieldCLI:                StringValue("0500000000"),
			FieldSimStatus:          StringValue("Activated"),
			FieldPrepaidDataBalance: FloatValue(1.5),
		}},
	}
	require.NoError(t, ValidateProvisioningData(good))

	bad := &GetProvisioningDataResponse{
		Count:      1,
		FieldNames: []string{FieldCLI, FieldSimStatus},
		Data: []Record{{
			FieldCLI:       StringValue("0500000000"),
			FieldSimStatus: StringValue("Frozen"),
			"EXTRA":        IntValue(1),
			"AAA":          NullValue(),
		}},
	}
	err := ValidateProvisioningData(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared fields AAA,EXTRA")
	assert.Contains(t, err.Error(), `unknown SIM_STATUS_CHANGE "Frozen"`)
}

func TestJobStateAndDone(t *testing.T) {
	var job Job
	require.NoError(t, json.Unmarshal([]byte(`{"jobId":7,"jobStatus":"COMPLETED","requestTime":1700000000,"actions":[{"neId":"050","status":"SUCCESS","requestType":"SIM_STATE_CHANGE","targetValue":"Suspended"}]}`), &job))
	assert.Equal(t, "COMPLETED", job.State())
	assert.True(t, job.Done())
	assert.Equal(t, ActionSimStateChange, job.Actions[0].Type())

	job = Job{Status: string(JobPending)}
	assert.False(t, job.Done())
}

func TestNewStatusChange(t *testing.T) {
	a := NewStatusChange(StatusSuspended, "0500000000", "0500000001")
	assert.Equal(t, ActionSimStateChange, a.ActionType)
	assert.Equal(t, "Suspended", a.TargetValue)
	assert.Len(t, a.Subscribers, 2)
}

func TestRecordKeysSorted(t *testing.T) {
	rec := Record{FieldSimStatus: StringValue("Activated"), FieldCLI: StringValue("0500000000"), "IMEI": NullValue()}
	assert.Equal(t, []string{FieldCLI, "IMEI", FieldSimStatus}, rec.Keys())
	assert.Empty(t, Record{}.Keys())
}
