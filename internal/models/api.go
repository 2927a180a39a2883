package models

// Result is the discriminant carried by every API response envelope.
type Result string

const (
	ResultSuccess       Result = "SUCCESS"
	ResultRejected      Result = "REJECTED"
	ResultInvalidReq    Result = "INVALID_REQ"
	ResultMissingEntity Result = "MISSING_ENTITY"
	ResultFailed        Result = "FAILED"
)

// Results lists the full envelope vocabulary.
var Results = []Result{ResultSuccess, ResultRejected, ResultInvalidReq, ResultMissingEntity, ResultFailed}

const (
	AreaGeneral      = "general"
	AreaProvisioning = "provisioning"

	OpLogin                        = "login"
	OpLogout                       = "logout"
	OpGetProvisioningParameterList = "getProvisioningParameterList"
	OpGetProvisioningData          = "getProvisioningData"
	OpGetProvisioningJobList       = "getProvisioningJobList"
	OpUpdateProvisioningData       = "updateProvisioningData"
)

// APIPath builds /ipa/apis/json/<area>/<operation>.
func APIPath(area, op string) string {
	return "/ipa/apis/json/" + area + "/" + op
}

// Field names used by the contract. Everything else is discovered at runtime.
const (
	FieldCLI                = "CLI"
	FieldMSISDN             = "MSISDN"
	FieldSimStatus          = "SIM_STATUS_CHANGE"
	FieldPrepaidDataBalance = "PREPAID_DATA_BALANCE"
)

const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

type ResponseBase struct {
	Result  Result `json:"result"`
	Message string `json:"message,omitempty"`
}

func (r ResponseBase) OK() bool { return r.Result == ResultSuccess }

// Envelope exposes the common part of any response that embeds ResponseBase.
func (r ResponseBase) Envelope() ResponseBase { return r }

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest = Credentials

type LoginResponse struct {
	ResponseBase
	SessionId   string `json:"sessionId,omitempty"`
	JwtToken    string `json:"jwtToken,omitempty"`
	UserId      int    `json:"userId,omitempty"`
	UserType    string `json:"userType,omitempty"`
	UserGroupId int    `json:"userGroupId,omitempty"`
	UserLevel   string `json:"userLevel,omitempty"`
}

type LogoutResponse = ResponseBase

type AvailableValue struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

type Parameter struct {
	FieldName       string           `json:"fieldName"`
	PermissionLevel string           `json:"permissionLevel"`
	Alias           string           `json:"alias"`
	AvailableValues []AvailableValue `json:"availableValues,omitempty"`
}

// ValueNames returns the enumerated names, or nil for free-form fields.
func (p Parameter) ValueNames() []string {
	if len(p.AvailableValues) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.AvailableValues))
	for _, v := range p.AvailableValues {
		names = append(names, v.Name)
	}
	return names
}

type GetProvisioningParameterListResponse struct {
	ResponseBase
	Parameters []Parameter `json:"parameters"`
}

// Parameter looks a parameter up by field name.
func (r *GetProvisioningParameterListResponse) Parameter(fieldName string) (Parameter, bool) {
	for _, p := range r.Parameters {
		if p.FieldName == fieldName {
			return p, true
		}
	}
	return Parameter{}, false
}

type SearchParam struct {
	FieldName  string `json:"fieldName"`
	FieldValue string `json:"fieldValue"`
}

// ProvisioningDataQuery is the caller-side part of a getProvisioningData request.
type ProvisioningDataQuery struct {
	Start         int           `json:"start"`
	Limit         int           `json:"limit,omitempty"`
	SortBy        string        `json:"sortBy,omitempty"`
	SortDirection string        `json:"sortDirection,omitempty"`
	Search        []SearchParam `json:"search,omitempty"`
}

type GetProvisioningDataRequest struct {
	Credentials
	ProvisioningDataQuery
}

type GetProvisioningDataResponse struct {
	ResponseBase
	Count      int      `json:"count"`
	FieldNames []string `json:"fieldNames"`
	Data       []Record `json:"data"`
}

type Subscriber struct {
	NeId string `json:"neId" validate:"required"`
}

type ProvisioningAction struct {
	ActionType  string       `json:"actionType" validate:"required"`
	TargetValue string       `json:"targetValue"`
	TargetId    string       `json:"targetId"`
	Subscribers []Subscriber `json:"subscribers" validate:"required,min=1,dive"`
}

// NewStatusChange builds a SIM_STATE_CHANGE action for the given subscribers.
func NewStatusChange(status SimStatus, neIds ...string) ProvisioningAction {
	subs := make([]Subscriber, 0, len(neIds))
	for _, id := range neIds {
		subs = append(subs, Subscriber{NeId: id})
	}
	return ProvisioningAction{
		ActionType:  ActionSimStateChange,
		TargetValue: string(status),
		Subscribers: subs,
	}
}

type UpdateProvisioningDataRequest struct {
	Credentials
	Actions []ProvisioningAction `json:"actions" validate:"required,min=1,dive"`
}

type UpdateProvisioningDataResponse struct {
	ResponseBase
	RequestId int `json:"requestId"`
}

// JobQuery filters getProvisioningJobList.
type JobQuery struct {
	Start     int    `json:"start,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	JobId     int    `json:"jobId,omitempty"`
	JobStatus string `json:"jobStatus,omitempty"`
}

type GetJobsRequest struct {
	Credentials
	JobQuery
}

// JobAction is one per-subscriber outcome inside a job. The upstream uses
// requestType where the swagger-shaped servers use actionType; both are kept.
type JobAction struct {
	NeId           string     `json:"neId"`
	Status         string     `json:"status"`
	ActionType     string     `json:"actionType,omitempty"`
	RequestType    string     `json:"requestType,omitempty"`
	TargetId       string     `json:"targetId,omitempty"`
	InitialValue   string     `json:"initialValue,omitempty"`
	TargetValue    string     `json:"targetValue"`
	CompletionTime FieldValue `json:"completionTime"`
	ErrorMsg       string     `json:"errorMsg,omitempty"`
	ErrorDesc      string     `json:"errorDesc,omitempty"`
}

// Type returns whichever action type field the server filled.
func (a JobAction) Type() string {
	if a.ActionType != "" {
		return a.ActionType
	}
	return a.RequestType
}

type Job struct {
	JobId                int         `json:"jobId"`
	Status               string      `json:"status,omitempty"`
	JobStatus            string      `json:"jobStatus,omitempty"`
	RequestTime          FieldValue  `json:"requestTime"`
	LastActionTime       FieldValue  `json:"lastActionTime"`
	RequestedApplication string      `json:"requestedApplication,omitempty"`
	Actions              []JobAction `json:"actions"`
}

// State returns whichever job status field the server filled.
func (j Job) State() string {
	if j.JobStatus != "" {
		return j.JobStatus
	}
	return j.Status
}

// Done reports whether the job reached a terminal state.
func (j Job) Done() bool {
	switch JobStatus(j.State()) {
	case JobCompleted, JobFailed, JobPartialSuccess, JobStatus("SUCCESS"):
		return true
	}
	return false
}

type GetJobsResponse struct {
	ResponseBase
	Count int   `json:"count"`
	Jobs  []Job `json:"jobs"`
}

type JobStatus string

const (
	JobPending        JobStatus = "PENDING"
	JobCompleted      JobStatus = "COMPLETED"
	JobPartialSuccess JobStatus = "PARTIAL_SUCCESS"
	JobFailed         JobStatus = "FAILED"
)

type ActionStatus string

const (
	ActionPending  ActionStatus = "PENDING"
	ActionSuccess  ActionStatus = "SUCCESS"
	ActionRejected ActionStatus = "REJECTED"
	ActionFailed   ActionStatus = "FAILED"
)

// Action vocabulary understood by the provisioning backend.
const (
	ActionSimStateChange      = "SIM_STATE_CHANGE"
	ActionSimStatusChange     = "SIM_STATUS_CHANGE"
	ActionRatePlanChange      = "RATE_PLAN_CHANGE"
	ActionCustomerLabelUpdate = "CUSTOMER_LABEL_UPDATE"
)
