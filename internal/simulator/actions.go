package simulator

import (
	"fmt"
	"strings"

	"github.com/alexgavs/eyeson-go/internal/models"
)

// apiError is a business failure reported through the result envelope.
type apiError struct {
	result  models.Result
	message string
}

func (e *apiError) Error() string { return string(e.result) + ": " + e.message }

func invalidReq(format string, args ...any) *apiError {
	return &apiError{result: models.ResultInvalidReq, message: fmt.Sprintf(format, args...)}
}

var labelColumns = map[string]string{
	"CUSTOMER_LABEL_1": "customer_label_1",
	"CUSTOMER_LABEL_2": "customer_label_2",
	"CUSTOMER_LABEL_3": "customer_label_3",
}

// change is an action resolved against the vocabulary: which column it
// writes and the canonical value it writes there.
type change struct {
	requestType string
	targetID    string
	column      string
	value       string
	status      models.SimStatus // set for status changes only
}

func (ch change) isStatus() bool { return ch.status != "" }

func resolveAction(a models.ProvisioningAction) (change, error) {
	actionType := strings.ToUpper(strings.TrimSpace(a.ActionType))
	ch := change{requestType: actionType, targetID: strings.TrimSpace(a.TargetId), value: a.TargetValue}

	switch {
	case actionType == models.ActionSimStateChange || actionType == models.ActionSimStatusChange:
		status, ok := models.ParseSimStatus(a.TargetValue)
		if !ok {
			return change{}, invalidReq("Unsupported targetValue %q for %s", a.TargetValue, actionType)
		}
		ch.column = "status"
		ch.status = status
		ch.value = string(status)

	case actionType == models.ActionRatePlanChange:
		plan, ok := matchRatePlan(a.TargetValue)
		if !ok {
			return change{}, invalidReq("Unsupported rate plan %q", a.TargetValue)
		}
		ch.column = "rate_plan"
		ch.value = plan

	case actionType == models.ActionCustomerLabelUpdate:
		target := strings.ToUpper(ch.targetID)
		if target == "" {
			target = "CUSTOMER_LABEL_1"
		}
		col, ok := labelColumns[target]
		if !ok {
			return change{}, invalidReq("Unsupported targetId %q for %s", ch.targetID, actionType)
		}
		ch.targetID = target
		ch.column = col

	default:
		col, ok := labelColumns[actionType]
		if !ok {
			return change{}, invalidReq("Unsupported actionType %q", a.ActionType)
		}
		ch.column = col
	}
	return ch, nil
}

func matchRatePlan(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, p := range RatePlans {
		if strings.EqualFold(p, v) {
			return p, true
		}
	}
	return "", false
}

// currentValue reads the column a change writes, for initialValue.
func currentValue(card *models.SimCard, column string) string {
	switch column {
	case "status":
		return card.Status
	case "rate_plan":
		return card.RatePlan
	case "customer_label_1":
		return card.CustomerLabel1
	case "customer_label_2":
		return card.CustomerLabel2
	case "customer_label_3":
		return card.CustomerLabel3
	}
	return ""
}

func checkTransition(neID string, from string, ch change) error {
	if !ch.isStatus() {
		return nil
	}
	cur, ok := models.ParseSimStatus(from)
	if !ok || !models.CanTransition(cur, ch.status) {
		return &apiError{
			result:  models.ResultRejected,
			message: fmt.Sprintf("Illegal status transition %s -> %s for %s", from, ch.status, neID),
		}
	}
	return nil
}
