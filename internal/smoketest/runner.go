// Package smoketest drives the client binding through the contract scenario
// against a live server or the simulator.
package smoketest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/alexgavs/eyeson-go/internal/eyesont"
	"github.com/alexgavs/eyeson-go/internal/models"
)

const unknownCLI = "0599999999"

type Options struct {
	// WaitForJobs polls the job list after each update until it is terminal.
	// Needed when the server applies updates asynchronously.
	WaitForJobs  bool
	PollInterval time.Duration
	// JobTimeout bounds one WaitForJobs poll loop, 30s when zero.
	JobTimeout time.Duration
	// Restore puts the touched SIM back to its original status at the end.
	Restore bool
}

type Step struct {
	Name     string
	Duration time.Duration
	Detail   string
	Err      error
}

type Report struct {
	Steps []Step
}

func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return len(r.Steps) > 0
}

func (r *Report) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (r *Report) String() string {
	var b strings.Builder
	for _, s := range r.Steps {
		state := "PASS"
		if s.Err != nil {
			state = "FAIL"
		}
		fmt.Fprintf(&b, "%-4s %-22s %8s  %s", state, s.Name, s.Duration.Round(time.Millisecond), s.Detail)
		if s.Err != nil {
			fmt.Fprintf(&b, " (%v)", s.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type Runner struct {
	client *eyesont.Client
	opts   Options

	// picked by the data step, used by the update steps
	cli      string
	original models.SimStatus
}

func NewRunner(client *eyesont.Client, opts Options) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	return &Runner{client: client, opts: opts}
}

// Run executes the scenario. It stops at the first failing step but still
// logs out when the login went through.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{}
	steps := []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{"login", r.login},
		{"parameter_list", r.parameterList},
		{"provisioning_data", r.provisioningData},
		{"status_round_trip", r.roundTrip},
		{"idempotent_repeat", r.idempotentRepeat},
		{"missing_entity_update", r.missingEntityUpdate},
		{"unknown_cli_query", r.unknownCLIQuery},
	}
	if r.opts.Restore {
		steps = append(steps, struct {
			name string
			fn   func(context.Context) (string, error)
		}{"restore", r.restore})
	}

	loggedIn := false
	for _, st := range steps {
		step := run(ctx, st.name, st.fn)
		report.Steps = append(report.Steps, step)
		if step.Err != nil {
			break
		}
		if st.name == "login" {
			loggedIn = true
		}
	}
	if loggedIn {
		report.Steps = append(report.Steps, run(ctx, "logout", r.logout))
	}
	return report
}

func run(ctx context.Context, name string, fn func(context.Context) (string, error)) Step {
	started := time.Now()
	detail, err := fn(ctx)
	step := Step{Name: name, Duration: time.Since(started), Detail: detail, Err: err}
	if err != nil {
		log.Printf("[Smoke] %s FAILED: %v", name, err)
	} else {
		log.Printf("[Smoke] %s ok (%s) %s", name, step.Duration.Round(time.Millisecond), detail)
	}
	return step
}

func (r *Runner) login(ctx context.Context) (string, error) {
	s, err := r.client.Login(ctx)
	if err != nil {
		return "", err
	}
	return "session " + s.ID, nil
}

func (r *Runner) logout(ctx context.Context) (string, error) {
	return "", r.client.Logout(ctx)
}

func (r *Runner) parameterList(ctx context.Context) (string, error) {
	resp, err := r.client.GetProvisioningParameterList(ctx)
	if err != nil {
		return "", err
	}
	p, ok := resp.Parameter(models.FieldSimStatus)
	if !ok {
		return "", fmt.Errorf("parameter %s missing", models.FieldSimStatus)
	}
	if len(p.ValueNames()) == 0 {
		return "", fmt.Errorf("parameter %s has no available values", models.FieldSimStatus)
	}
	return fmt.Sprintf("%d parameters", len(resp.Parameters)), nil
}

func (r *Runner) provisioningData(ctx context.Context) (string, error) {
	resp, err := r.client.GetProvisioningData(ctx, models.ProvisioningDataQuery{Limit: 10})
	if err != nil {
		return "", err
	}
	if err := models.ValidateProvisioningData(resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", errors.New("no subscribers returned")
	}
	for _, rec := range resp.Data {
		if _, ok := rec[models.FieldPrepaidDataBalance]; !ok {
			return "", fmt.Errorf("record %s has no %s", rec.CLI(), models.FieldPrepaidDataBalance)
		}
	}

	for _, rec := range resp.Data {
		if models.CanTransition(rec.Status(), models.StatusSuspended) {
			r.cli, r.original = rec.CLI(), rec.Status()
			break
		}
	}
	if r.cli == "" {
		return "", errors.New("no subscriber in the first page can be suspended")
	}
	return fmt.Sprintf("count=%d, picked %s (%s)", resp.Count, r.cli, r.original), nil
}

// changeStatus submits one status change and, when asked, waits for its job.
func (r *Runner) changeStatus(ctx context.Context, status models.SimStatus, neID string) (int, error) {
	id, err := r.client.ChangeStatus(ctx, status, neID)
	if err != nil {
		return 0, err
	}
	if !r.opts.WaitForJobs {
		return id, nil
	}

	wctx, cancel := context.WithTimeout(ctx, r.opts.JobTimeout)
	defer cancel()
	job, err := r.client.WaitForJob(wctx, id, r.opts.PollInterval)
	if err != nil {
		return id, fmt.Errorf("job %d: %w", id, err)
	}
	if job.State() != string(models.JobCompleted) {
		return id, fmt.Errorf("job %d ended %s", id, job.State())
	}
	return id, nil
}

func (r *Runner) expectStatus(ctx context.Context, want models.SimStatus) error {
	rec, found, err := r.client.FindByCLI(ctx, r.cli)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s vanished", r.cli)
	}
	if got := rec.Status(); got != want {
		return fmt.Errorf("%s is %s, want %s", r.cli, got, want)
	}
	return nil
}

func (r *Runner) roundTrip(ctx context.Context) (string, error) {
	id, err := r.changeStatus(ctx, models.StatusSuspended, r.cli)
	if err != nil {
		return "", err
	}
	if err := r.expectStatus(ctx, models.StatusSuspended); err != nil {
		return "", err
	}
	return fmt.Sprintf("job %d", id), nil
}

func (r *Runner) idempotentRepeat(ctx context.Context) (string, error) {
	id, err := r.changeStatus(ctx, models.StatusSuspended, r.cli)
	if err != nil {
		return "", err
	}
	if err := r.expectStatus(ctx, models.StatusSuspended); err != nil {
		return "", err
	}
	return fmt.Sprintf("job %d", id), nil
}

func (r *Runner) missingEntityUpdate(ctx context.Context) (string, error) {
	_, err := r.client.ChangeStatus(ctx, models.StatusSuspended, unknownCLI)
	if errors.Is(err, eyesont.ErrMissingEntity) {
		return "MISSING_ENTITY", nil
	}
	if err == nil {
		return "", fmt.Errorf("update of %s was accepted", unknownCLI)
	}
	return "", fmt.Errorf("want MISSING_ENTITY, got %w", err)
}

func (r *Runner) unknownCLIQuery(ctx context.Context) (string, error) {
	resp, err := r.client.GetProvisioningData(ctx, models.ProvisioningDataQuery{
		Search: []models.SearchParam{{FieldName: models.FieldCLI, FieldValue: unknownCLI}},
	})
	if err != nil {
		return "", err
	}
	if resp.Count != 0 || len(resp.Data) != 0 {
		return "", fmt.Errorf("unknown CLI returned count=%d, data=%d", resp.Count, len(resp.Data))
	}
	return "empty", nil
}

func (r *Runner) restore(ctx context.Context) (string, error) {
	if r.original == models.StatusSuspended {
		return "unchanged", nil
	}
	if _, err := r.changeStatus(ctx, r.original, r.cli); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s back to %s", r.cli, r.original), nil
}
