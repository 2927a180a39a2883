package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NormalizeMSISDN конвертирует 972xxx в 0xxx для Pelephone API
func NormalizeMSISDN(msisdn string) string {
	msisdn = strings.TrimSpace(msisdn)
	if strings.HasPrefix(msisdn, "972") && len(msisdn) == 12 {
		return "0" + msisdn[3:]
	}
	return msisdn
}

// ShapeError describes a getProvisioningData response that breaks the contract.
type ShapeError struct {
	Index  int
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return "provisioning data: " + e.Reason
	}
	return fmt.Sprintf("provisioning data record %d: %s", e.Index, e.Reason)
}

// ValidateProvisioningData checks that every record exposes exactly the
// declared fieldNames and carries a status from the closed status domain.
// All violations are joined into the returned error.
func ValidateProvisioningData(resp *GetProvisioningDataResponse) error {
	if resp == nil {
		return &ShapeError{Index: -1, Reason: "nil response"}
	}

	var errs []error
	if len(resp.Data) > resp.Count {
		errs = append(errs, &ShapeError{Index: -1, Reason: fmt.Sprintf("count %d is smaller than page size %d", resp.Count, len(resp.Data))})
	}

	declared := make(map[string]struct{}, len(resp.FieldNames))
	for _, f := range resp.FieldNames {
		declared[f] = struct{}{}
	}
	_, hasStatus := declared[FieldSimStatus]

	for i, rec := range resp.Data {
		var missing, extra []string
		for f := range declared {
			if _, ok := rec[f]; !ok {
				missing = append(missing, f)
			}
		}
		for _, f := range rec.Keys() {
			if _, ok := declared[f]; !ok {
				extra = append(extra, f)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			errs = append(errs, &ShapeError{Index: i, Reason: "missing fields " + strings.Join(missing, ",")})
		}
		if len(extra) > 0 {
			errs = append(errs, &ShapeError{Index: i, Reason: "undeclared fields " + strings.Join(extra, ",")})
		}
		if hasStatus && !rec.Status().Valid() {
			errs = append(errs, &ShapeError{Index: i, Reason: fmt.Sprintf("unknown %s %q", FieldSimStatus, rec.Get(FieldSimStatus))})
		}
	}

	return errors.Join(errs...)
}
