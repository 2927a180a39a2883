package simulator

import (
	"strconv"
	"strings"
	"time"

	"github.com/alexgavs/eyeson-go/internal/models"
)

const (
	permReadOnly       = "READ-ONLY"
	permReadWrite      = "READ-WRITE"
	permReadWriteList  = "READ-WRITE_FROM_LIST"
	lastSessionLayout  = "2006-01-02 15:04:05"
	defaultDataLimit   = 500
	defaultJobsLimit   = 100
	requestedAppName   = "Pelephone API Simulator"
	defaultAllocatedMB = 5120
)

// RatePlans is the closed list accepted by RATE_PLAN_CHANGE.
var RatePlans = []string{"5GB Plan", "10GB Plan", "20GB Plan", "Unlimited", "1GB Basic"}

// field describes one key of a subscriber record. The table below drives the
// parameter list, the record shape, search filters and sorting.
type field struct {
	Name       string
	Alias      string
	Permission string
	Column     string // empty when the field cannot be searched or sorted
	Values     []string
	Value      func(*models.SimCard) models.FieldValue
	Arg        func(string) (any, bool) // search argument, raw string when nil
}

var fields = []field{
	{Name: models.FieldCLI, Alias: "CLI", Permission: permReadOnly, Column: "cli",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.CLI) }},
	{Name: models.FieldMSISDN, Alias: "MSISDN", Permission: permReadOnly, Column: "msisdn",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.MSISDN) }},
	{Name: models.FieldSimStatus, Alias: "SIM Status", Permission: permReadWriteList, Column: "status", Values: statusNames(),
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.Status) }},
	{Name: "RATE_PLAN_FULL_NAME", Alias: "Rate Plan", Permission: permReadWriteList, Column: "rate_plan", Values: RatePlans,
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.RatePlan) }},
	{Name: "CUSTOMER_LABEL_1", Alias: "Customer Label 1", Permission: permReadWrite, Column: "customer_label_1",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.CustomerLabel1) }},
	{Name: "CUSTOMER_LABEL_2", Alias: "Customer Label 2", Permission: permReadWrite, Column: "customer_label_2",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.CustomerLabel2) }},
	{Name: "CUSTOMER_LABEL_3", Alias: "Customer Label 3", Permission: permReadWrite, Column: "customer_label_3",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.CustomerLabel3) }},
	{Name: "SIM_SWAP", Alias: "ICCID", Permission: permReadOnly, Column: "sim_swap",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.SimSwap) }},
	{Name: "IMSI", Alias: "IMSI", Permission: permReadOnly, Column: "imsi",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.IMSI) }},
	{Name: "IMEI", Alias: "IMEI", Permission: permReadOnly, Column: "imei",
		Value: func(s *models.SimCard) models.FieldValue { return optionalString(s.IMEI) }},
	{Name: "APN_NAME", Alias: "APN", Permission: permReadOnly, Column: "apn_name",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.APNName) }},
	{Name: "IP1", Alias: "IP Address", Permission: permReadOnly, Column: "ip1",
		Value: func(s *models.SimCard) models.FieldValue { return models.StringValue(s.IP1) }},
	{Name: "MONTHLY_USAGE_MB", Alias: "Monthly Usage (MB)", Permission: permReadOnly, Column: "monthly_usage_mb",
		Value: func(s *models.SimCard) models.FieldValue { return models.IntValue(s.MonthlyUsageMB) }, Arg: intArg},
	{Name: "ALLOCATED_MB", Alias: "Allocated (MB)", Permission: permReadOnly, Column: "allocated_mb",
		Value: func(s *models.SimCard) models.FieldValue { return models.IntValue(s.AllocatedMB) }, Arg: intArg},
	{Name: models.FieldPrepaidDataBalance, Alias: "Prepaid Data Balance", Permission: permReadOnly, Column: "prepaid_data_balance",
		Value: func(s *models.SimCard) models.FieldValue { return models.FloatValue(s.PrepaidDataBalance) }, Arg: floatArg},
	{Name: "LAST_SESSION_TIME", Alias: "Last Session", Permission: permReadOnly, Column: "last_session_time",
		Value: func(s *models.SimCard) models.FieldValue {
			if s.LastSessionTime == nil {
				return models.NullValue()
			}
			return models.StringValue(s.LastSessionTime.Format(lastSessionLayout))
		}, Arg: timeArg},
	{Name: "IN_SESSION", Alias: "In Session", Permission: permReadOnly, Column: "in_session",
		Value: func(s *models.SimCard) models.FieldValue {
			if s.InSession == nil {
				return models.NullValue()
			}
			return models.StringValue(strconv.FormatBool(*s.InSession))
		}, Arg: boolArg},
}

func statusNames() []string {
	out := make([]string, 0, len(models.SimStatuses))
	for _, s := range models.SimStatuses {
		out = append(out, string(s))
	}
	return out
}

func optionalString(v string) models.FieldValue {
	if v == "" {
		return models.NullValue()
	}
	return models.StringValue(v)
}

func intArg(v string) (any, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return n, err == nil
}

func floatArg(v string) (any, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}

// timeArg matches the whole second the rendered value names.
func timeArg(v string) (any, bool) {
	t, err := time.ParseInLocation(lastSessionLayout, strings.TrimSpace(v), time.Local)
	if err != nil {
		return nil, false
	}
	return secondRange{from: t, to: t.Add(time.Second)}, true
}

func boolArg(v string) (any, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return b, err == nil
}

func lookupField(name string) (field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return field{}, false
}

// FieldNames returns the record keys in publication order.
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// Parameters renders the field table as getProvisioningParameterList entries.
func Parameters() []models.Parameter {
	params := make([]models.Parameter, 0, len(fields))
	for _, f := range fields {
		p := models.Parameter{
			FieldName:       f.Name,
			PermissionLevel: f.Permission,
			Alias:           f.Alias,
		}
		for i, v := range f.Values {
			p.AvailableValues = append(p.AvailableValues, models.AvailableValue{Value: i + 1, Name: v, Desc: v})
		}
		params = append(params, p)
	}
	return params
}

func toRecord(card *models.SimCard) models.Record {
	rec := make(models.Record, len(fields))
	for _, f := range fields {
		rec[f.Name] = f.Value(card)
	}
	return rec
}
