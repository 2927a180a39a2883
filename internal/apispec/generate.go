package apispec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/alexgavs/eyeson-go/internal/cache"
	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	Title       = "EyesOnT Pelephone API"
	Description = "API documentation for EyesOnT Pelephone Integration"
	Version     = "1.5.2"

	refRequestBase  = "#/components/schemas/RequestBase"
	refResponseBase = "#/components/schemas/ResponseBase"
	refSubscriber   = "#/components/schemas/Subscriber"
)

// observed value kinds of one field across all captured records
type kinds struct {
	ints, floats, strs, nulls bool
}

// Generate builds the OpenAPI document from whatever Capture stored.
// Missing responses only make the derived schemas poorer.
func Generate(ctx context.Context, store cache.Store, baseURL string) (*openapi3.T, error) {
	var params models.GetProvisioningParameterListResponse
	if err := load(ctx, store, KeyParameterList, &params); err != nil {
		return nil, err
	}
	var data struct {
		Data []models.Record `json:"data"`
	}
	if err := load(ctx, store, KeyData, &data); err != nil {
		return nil, err
	}

	requestBase := openapi3.NewObjectSchema().
		WithProperty("username", openapi3.NewStringSchema()).
		WithProperty("password", openapi3.NewStringSchema())
	requestBase.Required = []string{"username", "password"}

	results := make([]any, 0, len(models.Results))
	for _, r := range models.Results {
		results = append(results, string(r))
	}
	responseBase := openapi3.NewObjectSchema().
		WithProperty("result", openapi3.NewStringSchema().WithEnum(results...)).
		WithProperty("message", openapi3.NewStringSchema().WithNullable())

	subscriber := subscriberSchema(params.Parameters, data.Data)

	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info: &openapi3.Info{
			Title:       Title,
			Description: Description,
			Version:     Version,
		},
		Servers: openapi3.Servers{
			&openapi3.Server{URL: baseURL, Description: "Production Server"},
		},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"RequestBase":  openapi3.NewSchemaRef("", requestBase),
				"ResponseBase": openapi3.NewSchemaRef("", responseBase),
				"Subscriber":   openapi3.NewSchemaRef("", subscriber),
			},
		},
		Paths: openapi3.NewPaths(),
	}

	reqRef := openapi3.NewSchemaRef(refRequestBase, requestBase)
	respRef := openapi3.NewSchemaRef(refResponseBase, responseBase)
	subRef := openapi3.NewSchemaRef(refSubscriber, subscriber)

	addOperation(doc, models.AreaGeneral, models.OpLogin, "Login to the system",
		allOf(reqRef, nil),
		"Successful login",
		openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
			WithProperty("result", openapi3.NewStringSchema()).
			WithProperty("sessionId", openapi3.NewStringSchema()).
			WithProperty("jwtToken", openapi3.NewStringSchema())))

	addOperation(doc, models.AreaGeneral, models.OpLogout, "Logout from the system",
		allOf(reqRef, nil), "Logout response", respRef)

	availableValue := openapi3.NewObjectSchema().
		WithProperty("value", openapi3.NewIntegerSchema()).
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("desc", openapi3.NewStringSchema())
	parameter := openapi3.NewObjectSchema().
		WithProperty("fieldName", openapi3.NewStringSchema()).
		WithProperty("permissionLevel", openapi3.NewStringSchema()).
		WithProperty("alias", openapi3.NewStringSchema()).
		WithProperty("availableValues", openapi3.NewArraySchema().WithItems(availableValue))
	addOperation(doc, models.AreaProvisioning, models.OpGetProvisioningParameterList,
		"Get list of provisioning parameters",
		reqRef, "List of parameters",
		allOf(respRef, openapi3.NewObjectSchema().
			WithProperty("parameters", openapi3.NewArraySchema().WithItems(parameter))))

	searchParam := openapi3.NewObjectSchema().
		WithProperty("fieldName", openapi3.NewStringSchema()).
		WithProperty("fieldValue", openapi3.NewStringSchema())
	start := openapi3.NewIntegerSchema().WithDefault(float64(0))
	limit := openapi3.NewIntegerSchema().WithDefault(float64(50))
	records := openapi3.NewArraySchema()
	records.Items = subRef
	addOperation(doc, models.AreaProvisioning, models.OpGetProvisioningData,
		"Get provisioning data (SIMs)",
		allOf(reqRef, openapi3.NewObjectSchema().
			WithProperty("start", start).
			WithProperty("limit", limit).
			WithProperty("sortBy", openapi3.NewStringSchema()).
			WithProperty("sortDirection", openapi3.NewStringSchema().WithEnum(models.SortAsc, models.SortDesc)).
			WithProperty("search", openapi3.NewArraySchema().WithItems(searchParam))),
		"List of subscriber data",
		allOf(respRef, openapi3.NewObjectSchema().
			WithProperty("count", openapi3.NewIntegerSchema()).
			WithProperty("fieldNames", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
			WithProperty("data", records)))

	jobAction := openapi3.NewObjectSchema().
		WithProperty("neId", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("actionType", openapi3.NewStringSchema()).
		WithProperty("requestType", openapi3.NewStringSchema()).
		WithProperty("targetValue", openapi3.NewStringSchema()).
		WithProperty("initialValue", openapi3.NewStringSchema().WithNullable()).
		WithProperty("errorMsg", openapi3.NewStringSchema().WithNullable()).
		WithProperty("errorDesc", openapi3.NewStringSchema().WithNullable())
	job := openapi3.NewObjectSchema().
		WithProperty("jobId", openapi3.NewIntegerSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("jobStatus", openapi3.NewStringSchema()).
		WithProperty("requestTime", openapi3.NewFloat64Schema()).
		WithProperty("completionTime", openapi3.NewFloat64Schema().WithNullable()).
		WithProperty("actions", openapi3.NewArraySchema().WithItems(jobAction))
	addOperation(doc, models.AreaProvisioning, models.OpGetProvisioningJobList,
		"Get provisioning jobs",
		allOf(reqRef, openapi3.NewObjectSchema().
			WithProperty("start", openapi3.NewIntegerSchema()).
			WithProperty("limit", openapi3.NewIntegerSchema()).
			WithProperty("jobId", openapi3.NewIntegerSchema()).
			WithProperty("jobStatus", openapi3.NewStringSchema())),
		"List of jobs",
		allOf(respRef, openapi3.NewObjectSchema().
			WithProperty("count", openapi3.NewIntegerSchema()).
			WithProperty("jobs", openapi3.NewArraySchema().WithItems(job))))

	actionType := openapi3.NewStringSchema()
	actionType.Description = "e.g. SIM_STATE_CHANGE, RATE_PLAN_CHANGE"
	neID := openapi3.NewStringSchema()
	neID.Description = "MSISDN/CLI"
	action := openapi3.NewObjectSchema().
		WithProperty("actionType", actionType).
		WithProperty("targetValue", openapi3.NewStringSchema()).
		WithProperty("targetId", openapi3.NewStringSchema()).
		WithProperty("subscribers", openapi3.NewArraySchema().WithItems(
			openapi3.NewObjectSchema().WithProperty("neId", neID)))
	action.Required = []string{"actionType", "targetValue", "subscribers"}
	addOperation(doc, models.AreaProvisioning, models.OpUpdateProvisioningData,
		"Update subscriber provisioning",
		allOf(reqRef, openapi3.NewObjectSchema().
			WithProperty("actions", openapi3.NewArraySchema().WithItems(action))),
		"Update request accepted",
		allOf(respRef, openapi3.NewObjectSchema().
			WithProperty("requestId", openapi3.NewIntegerSchema())))

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("generated document is invalid: %w", err)
	}
	return doc, nil
}

func addOperation(doc *openapi3.T, area, op, summary string, request *openapi3.SchemaRef, description string, response *openapi3.SchemaRef) {
	operation := openapi3.NewOperation()
	operation.Summary = summary
	operation.OperationID = op
	operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(request),
	}
	operation.Responses = openapi3.NewResponses(openapi3.WithStatus(200, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription(description).WithJSONSchemaRef(response),
	}))
	doc.AddOperation(models.APIPath(area, op), "POST", operation)
}

// allOf joins a component reference with an optional inline extension.
func allOf(base *openapi3.SchemaRef, ext *openapi3.Schema) *openapi3.SchemaRef {
	refs := openapi3.SchemaRefs{base}
	if ext != nil {
		refs = append(refs, openapi3.NewSchemaRef("", ext))
	}
	return openapi3.NewSchemaRef("", &openapi3.Schema{AllOf: refs})
}

// subscriberSchema starts from the declared parameters and refines the types
// with what the records actually carried.
func subscriberSchema(params []models.Parameter, records []models.Record) *openapi3.Schema {
	seen := make(map[string]*kinds)
	for _, rec := range records {
		for name, v := range rec {
			k := seen[name]
			if k == nil {
				k = &kinds{}
				seen[name] = k
			}
			switch v.Kind() {
			case models.KindInt:
				k.ints = true
			case models.KindFloat:
				k.floats = true
			case models.KindString:
				k.strs = true
			default:
				k.nulls = true
			}
		}
	}

	schema := openapi3.NewObjectSchema()
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		if p.FieldName == "" {
			continue
		}
		declared[p.FieldName] = true
		prop := propertySchema(seen[p.FieldName])
		prop.Description = p.Alias
		if names := p.ValueNames(); len(names) > 0 {
			enum := make([]any, 0, len(names))
			for _, n := range names {
				enum = append(enum, n)
			}
			prop.Enum = enum
		}
		schema.WithProperty(p.FieldName, prop)
	}

	extra := make([]string, 0)
	for name := range seen {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		schema.WithProperty(name, propertySchema(seen[name]))
	}
	return schema
}

func propertySchema(k *kinds) *openapi3.Schema {
	switch {
	case k == nil || k.strs || (!k.ints && !k.floats):
		return openapi3.NewStringSchema().WithNullable()
	case k.floats:
		s := openapi3.NewFloat64Schema()
		if k.nulls {
			s = s.WithNullable()
		}
		return s
	default:
		s := openapi3.NewIntegerSchema()
		if k.nulls {
			s = s.WithNullable()
		}
		return s
	}
}

func load(ctx context.Context, store cache.Store, key string, out any) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
