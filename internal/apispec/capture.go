// Package apispec captures live responses of the provisioning API and derives
// an OpenAPI document from what it observed.
package apispec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/alexgavs/eyeson-go/internal/cache"
	"github.com/alexgavs/eyeson-go/internal/eyesont"
	"github.com/alexgavs/eyeson-go/internal/models"
)

// Invoker is the part of the client binding capture needs.
type Invoker interface {
	Login(ctx context.Context) (*eyesont.Session, error)
	Invoke(ctx context.Context, area, op string, payload map[string]any) (json.RawMessage, error)
}

type captureCall struct {
	area    string
	op      string
	payload map[string]any
}

// Cache keys double as file names in the file backend.
const (
	KeyParameterList = models.OpGetProvisioningParameterList
	KeyData          = models.OpGetProvisioningData
	KeyJobList       = models.OpGetProvisioningJobList
)

var captureCalls = []captureCall{
	{area: models.AreaProvisioning, op: KeyParameterList},
	{area: models.AreaProvisioning, op: KeyData, payload: map[string]any{
		"start":         0,
		"limit":         10,
		"sortDirection": models.SortDesc,
		"search":        []models.SearchParam{},
	}},
	{area: models.AreaProvisioning, op: KeyJobList, payload: map[string]any{
		"start": 0,
		"limit": 10,
	}},
}

// Capture stores the raw responses the generator reads. When every response is
// already cached and refresh is false nothing is fetched and false is returned.
func Capture(ctx context.Context, client Invoker, store cache.Store, refresh bool) (bool, error) {
	if !refresh {
		cached, err := allCached(ctx, store)
		if err != nil {
			return false, err
		}
		if cached {
			log.Println("[Capture] Using cached API responses")
			return false, nil
		}
	}

	if _, err := client.Login(ctx); err != nil {
		return false, fmt.Errorf("login: %w", err)
	}

	for _, call := range captureCalls {
		raw, err := client.Invoke(ctx, call.area, call.op, call.payload)
		var resErr *eyesont.ResultError
		switch {
		case errors.As(err, &resErr) && len(raw) > 0:
			// Rejections are part of the observed contract too.
			log.Printf("[Capture] %s answered %s, storing anyway", call.op, resErr.Result)
		case err != nil:
			return false, fmt.Errorf("%s: %w", call.op, err)
		}
		if err := store.Put(ctx, call.op, raw); err != nil {
			return false, fmt.Errorf("store %s: %w", call.op, err)
		}
		log.Printf("[Capture] Saved %s response", call.op)
	}
	return true, nil
}

func allCached(ctx context.Context, store cache.Store) (bool, error) {
	for _, call := range captureCalls {
		_, err := store.Get(ctx, call.op)
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
