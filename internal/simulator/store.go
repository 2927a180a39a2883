// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System - Pelephone API Simulator

package simulator

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alexgavs/eyeson-go/internal/events"
	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings are the admin panel switches persisted in system_settings.
type Settings struct {
	SimCount int  `json:"sim_count"`
	Enabled  bool `json:"enabled"`
}

const (
	settingSimCount = "sim_count"
	settingEnabled  = "enabled"
)

// Store owns every read and write the simulator makes against its database.
type Store struct {
	db     *gorm.DB
	events *events.Broadcaster

	mu       sync.RWMutex
	settings Settings
}

func NewStore(db *gorm.DB, broadcaster *events.Broadcaster) *Store {
	return &Store{db: db, events: broadcaster, settings: Settings{Enabled: true}}
}

// Init loads persisted settings and seeds SIMs when the table is empty.
func (s *Store) Init(defaultSimCount int) error {
	settings := Settings{SimCount: defaultSimCount, Enabled: true}

	var rows []models.SystemSetting
	if err := s.db.Where("`key` IN ?", []string{settingSimCount, settingEnabled}).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	for _, row := range rows {
		switch row.Key {
		case settingSimCount:
			if n, err := strconv.Atoi(row.Value); err == nil {
				settings.SimCount = n
			}
		case settingEnabled:
			settings.Enabled = row.Value == "true"
		}
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	count, err := s.CountSims()
	if err != nil {
		return err
	}
	if count == 0 && settings.SimCount > 0 {
		if err := s.Generate(settings.SimCount); err != nil {
			return err
		}
	}

	log.Printf("[Simulator] Config loaded: %d SIMs, enabled=%v", settings.SimCount, settings.Enabled)
	return nil
}

func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) SaveSettings(settings Settings) error {
	rows := []models.SystemSetting{
		{Key: settingSimCount, Value: strconv.Itoa(settings.SimCount)},
		{Key: settingEnabled, Value: strconv.FormatBool(settings.Enabled)},
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// ========== Sessions ==========

func (s *Store) CreateSession(username string, ttl time.Duration) (models.APISession, error) {
	now := time.Now()
	session := models.APISession{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.db.Create(&session).Error; err != nil {
		return models.APISession{}, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *Store) DeleteSessions(username string) (int64, error) {
	res := s.db.Where("username = ?", username).Delete(&models.APISession{})
	return res.RowsAffected, res.Error
}

// ========== Subscriber data ==========

func (s *Store) CountSims() (int64, error) {
	var count int64
	err := s.db.Model(&models.SimCard{}).Count(&count).Error
	return count, err
}

type condition struct {
	column string
	arg    any
}

type secondRange struct {
	from, to time.Time
}

func withConditions(conds []condition) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		for _, c := range conds {
			if r, ok := c.arg.(secondRange); ok {
				tx = tx.Where(c.column+" >= ? AND "+c.column+" < ?", r.from, r.to)
				continue
			}
			tx = tx.Where(c.column+" = ?", c.arg)
		}
		return tx
	}
}

// Query answers getProvisioningData. Filters are exact equality on known
// fields, AND-combined.
func (s *Store) Query(q models.ProvisioningDataQuery) (int64, []models.Record, error) {
	conds := make([]condition, 0, len(q.Search))
	for _, p := range q.Search {
		name := strings.TrimSpace(p.FieldName)
		if name == "" {
			continue
		}
		f, ok := lookupField(name)
		if !ok || f.Column == "" {
			return 0, nil, invalidReq("Unknown search field %q", p.FieldName)
		}
		var arg any = p.FieldValue
		if f.Arg != nil {
			v, ok := f.Arg(p.FieldValue)
			if !ok {
				return 0, nil, invalidReq("Invalid value %q for %s", p.FieldValue, f.Name)
			}
			arg = v
		}
		conds = append(conds, condition{column: f.Column, arg: arg})
	}

	sortCol := "cli"
	if by := strings.TrimSpace(q.SortBy); by != "" {
		f, ok := lookupField(by)
		if !ok || f.Column == "" {
			return 0, nil, invalidReq("Unknown sortBy field %q", q.SortBy)
		}
		sortCol = f.Column
	}
	sortDir := models.SortAsc
	switch dir := strings.TrimSpace(q.SortDirection); {
	case dir == "":
	case strings.EqualFold(dir, models.SortAsc):
	case strings.EqualFold(dir, models.SortDesc):
		sortDir = models.SortDesc
	default:
		return 0, nil, invalidReq("Invalid sortDirection %q", q.SortDirection)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultDataLimit
	}
	start := q.Start
	if start < 0 {
		start = 0
	}

	var total int64
	if err := s.db.Model(&models.SimCard{}).Scopes(withConditions(conds)).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	order := sortCol + " " + sortDir
	if sortCol != "cli" {
		order += ", cli ASC"
	}
	var cards []models.SimCard
	err := s.db.Model(&models.SimCard{}).
		Scopes(withConditions(conds)).
		Order(order).
		Limit(limit).
		Offset(start).
		Find(&cards).Error
	if err != nil {
		return 0, nil, err
	}

	records := make([]models.Record, 0, len(cards))
	for i := range cards {
		records = append(records, toRecord(&cards[i]))
	}
	return total, records, nil
}

// findSubscriber resolves a neId against CLI or MSISDN, accepting the 972 form.
func findSubscriber(tx *gorm.DB, neID string) (*models.SimCard, error) {
	raw := strings.TrimSpace(neID)
	norm := models.NormalizeMSISDN(raw)
	var card models.SimCard
	err := tx.Where("cli IN ? OR msisdn IN ?", []string{raw, norm}, []string{raw, norm}).
		Order("id ASC").
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ========== Provisioning jobs ==========

// Submit validates a batch and records it as a PENDING job. Nothing is written
// when any action fails validation.
func (s *Store) Submit(username string, actions []models.ProvisioningAction) (*models.ProvisioningJob, error) {
	if len(actions) == 0 {
		return nil, invalidReq("Missing actions")
	}

	changes := make([]change, len(actions))
	for i, a := range actions {
		if len(a.Subscribers) == 0 {
			return nil, invalidReq("Action %d has no subscribers", i)
		}
		ch, err := resolveAction(a)
		if err != nil {
			return nil, err
		}
		changes[i] = ch
	}

	var job *models.ProvisioningJob
	err := s.db.Transaction(func(tx *gorm.DB) error {
		type target struct {
			neID string
			card *models.SimCard
			ch   change
		}
		var targets []target
		for i, a := range actions {
			for _, sub := range a.Subscribers {
				neID := strings.TrimSpace(sub.NeId)
				card, err := findSubscriber(tx, neID)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &apiError{result: models.ResultMissingEntity, message: fmt.Sprintf("Subscriber %s not found", neID)}
				}
				if err != nil {
					return err
				}
				targets = append(targets, target{neID: neID, card: card, ch: changes[i]})
			}
		}

		// Status changes inside one batch chain: the second sees the first's target.
		projected := make(map[uint]string)
		now := time.Now().Unix()
		rows := make([]models.ProvisioningJobAction, 0, len(targets))
		for _, t := range targets {
			initial := currentValue(t.card, t.ch.column)
			from := initial
			if t.ch.isStatus() {
				if p, ok := projected[t.card.ID]; ok {
					from = p
				}
				if err := checkTransition(t.neID, from, t.ch); err != nil {
					return err
				}
				projected[t.card.ID] = t.ch.value
			}
			rows = append(rows, models.ProvisioningJobAction{
				NeID:         t.neID,
				Status:       string(models.ActionPending),
				RequestType:  t.ch.requestType,
				TargetID:     t.ch.targetID,
				InitialValue: initial,
				TargetValue:  t.ch.value,
			})
		}

		job = &models.ProvisioningJob{
			Status:               string(models.JobPending),
			RequestTime:          now,
			LastActionTime:       now,
			RequestedApplication: requestedAppName,
			Username:             username,
			Actions:              rows,
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Simulator] UpdateProvisioningData: job=%d actions=%d", job.ID, len(job.Actions))
	s.events.Emit(events.EventJobCreated, map[string]any{"jobId": job.ID, "actions": len(job.Actions)})
	return job, nil
}

type simUpdate struct {
	CLI    string `json:"cli"`
	Column string `json:"field"`
	Value  string `json:"value"`
}

// ApplyJob executes a PENDING job. Transitions are re-checked against the
// current data, so an action can still end up REJECTED.
func (s *Store) ApplyJob(id uint) (*models.ProvisioningJob, error) {
	var job models.ProvisioningJob
	var updates []simUpdate
	applied := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			First(&job, id).Error
		if err != nil {
			return err
		}
		if job.Status != string(models.JobPending) {
			return nil
		}

		now := time.Now().Unix()
		succeeded := 0
		for i := range job.Actions {
			a := &job.Actions[i]
			upd, ok := applyAction(tx, a, now)
			if ok {
				succeeded++
				updates = append(updates, upd)
			}
			if err := tx.Save(a).Error; err != nil {
				return err
			}
		}

		switch {
		case succeeded == len(job.Actions):
			job.Status = string(models.JobCompleted)
		case succeeded == 0:
			job.Status = string(models.JobFailed)
		default:
			job.Status = string(models.JobPartialSuccess)
		}
		job.LastActionTime = now
		applied = true
		return tx.Model(&models.ProvisioningJob{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":           job.Status,
			"last_action_time": job.LastActionTime,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if applied {
		log.Printf("[Simulator] Job %d applied: %s", job.ID, job.Status)
		for _, u := range updates {
			s.events.Emit(events.EventSimUpdated, u)
		}
		s.events.Emit(events.EventJobCompleted, map[string]any{"jobId": job.ID, "status": job.Status})
	}
	return &job, nil
}

func applyAction(tx *gorm.DB, a *models.ProvisioningJobAction, now int64) (simUpdate, bool) {
	a.CompletionTime = now
	fail := func(status models.ActionStatus, msg, desc string) (simUpdate, bool) {
		a.Status = string(status)
		a.ErrorMsg = msg
		a.ErrorDesc = desc
		return simUpdate{}, false
	}

	ch, err := resolveAction(models.ProvisioningAction{ActionType: a.RequestType, TargetValue: a.TargetValue, TargetId: a.TargetID})
	if err != nil {
		return fail(models.ActionRejected, string(models.ResultInvalidReq), err.Error())
	}
	card, err := findSubscriber(tx, a.NeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(models.ActionFailed, string(models.ResultMissingEntity), "SIM not found")
		}
		return fail(models.ActionFailed, string(models.ResultFailed), err.Error())
	}
	if err := checkTransition(a.NeID, card.Status, ch); err != nil {
		return fail(models.ActionRejected, string(models.ResultRejected), err.(*apiError).message)
	}
	if err := tx.Model(&models.SimCard{}).Where("id = ?", card.ID).Update(ch.column, ch.value).Error; err != nil {
		return fail(models.ActionFailed, string(models.ResultFailed), err.Error())
	}

	a.Status = string(models.ActionSuccess)
	return simUpdate{CLI: card.CLI, Column: ch.column, Value: ch.value}, true
}

// PendingJobIDs lists jobs that were accepted but never applied.
func (s *Store) PendingJobIDs() ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.ProvisioningJob{}).
		Where("status = ?", string(models.JobPending)).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) ListJobs(q models.JobQuery) (int64, []models.ProvisioningJob, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultJobsLimit
	}
	start := q.Start
	if start < 0 {
		start = 0
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if q.JobId > 0 {
			tx = tx.Where("id = ?", q.JobId)
		}
		if st := strings.TrimSpace(q.JobStatus); st != "" {
			tx = tx.Where("status = ?", strings.ToUpper(st))
		}
		return tx
	}

	var total int64
	if err := s.db.Model(&models.ProvisioningJob{}).Scopes(filter).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var jobs []models.ProvisioningJob
	err := s.db.Scopes(filter).
		Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id DESC").
		Limit(limit).
		Offset(start).
		Find(&jobs).Error
	return total, jobs, err
}

func toJob(j *models.ProvisioningJob) models.Job {
	out := models.Job{
		JobId:                int(j.ID),
		Status:               j.Status,
		JobStatus:            j.Status,
		RequestTime:          models.IntValue(j.RequestTime),
		LastActionTime:       models.IntValue(j.LastActionTime),
		RequestedApplication: j.RequestedApplication,
		Actions:              make([]models.JobAction, 0, len(j.Actions)),
	}
	for _, a := range j.Actions {
		completion := models.NullValue()
		if a.CompletionTime > 0 {
			completion = models.IntValue(a.CompletionTime)
		}
		out.Actions = append(out.Actions, models.JobAction{
			NeId:           a.NeID,
			Status:         a.Status,
			ActionType:     a.RequestType,
			RequestType:    a.RequestType,
			TargetId:       a.TargetID,
			InitialValue:   a.InitialValue,
			TargetValue:    a.TargetValue,
			CompletionTime: completion,
			ErrorMsg:       a.ErrorMsg,
			ErrorDesc:      a.ErrorDesc,
		})
	}
	return out
}

// ========== Admin operations ==========

// seedStatus spreads statuses deterministically; index 0 is always Activated.
func seedStatus(i int) models.SimStatus {
	switch i % 10 {
	case 6, 7:
		return models.StatusSuspended
	case 8:
		return models.StatusPreActivated
	case 9:
		return models.StatusTerminated
	}
	return models.StatusActivated
}

func seedCard(i int, now time.Time) models.SimCard {
	cli := fmt.Sprintf("05%08d", i)
	status := seedStatus(i)
	usage := int64(rand.Intn(5000))

	card := models.SimCard{
		CLI:                cli,
		MSISDN:             cli,
		Status:             string(status),
		RatePlan:           RatePlans[i%len(RatePlans)],
		CustomerLabel1:     fmt.Sprintf("Device %d", i),
		SimSwap:            fmt.Sprintf("8997201%012d", i),
		IMSI:               fmt.Sprintf("42501%010d", i),
		APNName:            "internet.apn",
		IP1:                fmt.Sprintf("10.0.%d.%d", rand.Intn(256), rand.Intn(256)),
		MonthlyUsageMB:     usage,
		AllocatedMB:        defaultAllocatedMB,
		PrepaidDataBalance: math.Round(float64(defaultAllocatedMB-usage)/1024*100) / 100,
	}
	if status != models.StatusPreActivated {
		card.IMEI = fmt.Sprintf("35%013d", i)
		last := now.Add(-time.Duration(rand.Intn(720)) * time.Hour).Truncate(time.Second)
		card.LastSessionTime = &last
		inSession := status == models.StatusActivated && rand.Intn(2) == 0
		card.InSession = &inSession
	}
	return card
}

// Generate replaces every SIM with count freshly generated ones.
func (s *Store) Generate(count int) error {
	now := time.Now()
	cards := make([]models.SimCard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, seedCard(i, now))
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SimCard{}).Error; err != nil {
			return err
		}
		if len(cards) == 0 {
			return nil
		}
		return tx.CreateInBatches(cards, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to generate SIMs: %w", err)
	}

	log.Printf("[Simulator] Generated %d SIM cards", count)
	s.events.Emit(events.EventSimsReset, map[string]any{"count": count})
	return nil
}

// Clear removes all SIMs. Jobs stay for inspection.
func (s *Store) Clear() error {
	if err := s.db.Where("1 = 1").Delete(&models.SimCard{}).Error; err != nil {
		return err
	}
	log.Println("[Simulator] All SIM cards cleared")
	s.events.Emit(events.EventSimsReset, map[string]any{"count": 0})
	return nil
}

// Import writes cards, upserting on CLI. With replace, SIMs and jobs are wiped
// first.
func (s *Store) Import(cards []models.SimCard, replace bool) (int, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if replace {
			for _, m := range []any{&models.ProvisioningJobAction{}, &models.ProvisioningJob{}, &models.SimCard{}} {
				if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
					return err
				}
			}
		}
		if len(cards) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cli"}},
			UpdateAll: true,
		}).CreateInBatches(cards, 100).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import SIMs: %w", err)
	}

	log.Printf("[Simulator] Imported %d SIM cards (replace=%v)", len(cards), replace)
	s.events.Emit(events.EventSimsReset, map[string]any{"count": len(cards), "replace": replace})
	return len(cards), nil
}

// SimFilter narrows the admin SIM listing.
type SimFilter struct {
	Limit  int    `schema:"limit"`
	Status string `schema:"status"`
	CLI    string `schema:"cli"`
}

func (s *Store) ListSims(f SimFilter) ([]models.SimCard, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	tx := s.db.Model(&models.SimCard{})
	if st := strings.TrimSpace(f.Status); st != "" {
		tx = tx.Where("status = ?", st)
	}
	if cli := strings.TrimSpace(f.CLI); cli != "" {
		tx = tx.Where("cli LIKE ?", "%"+cli+"%")
	}
	var cards []models.SimCard
	err := tx.Order("cli ASC").Limit(limit).Find(&cards).Error
	return cards, err
}

// SetStatus is the admin override: any status in the domain, no transition check.
func (s *Store) SetStatus(cli string, status models.SimStatus) error {
	res := s.db.Model(&models.SimCard{}).Where("cli = ?", cli).Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	log.Printf("[Simulator] Admin changed SIM %s status to %s", cli, status)
	s.events.Emit(events.EventSimUpdated, simUpdate{CLI: cli, Column: "status", Value: string(status)})
	return nil
}

// JobStats counts jobs per status.
func (s *Store) JobStats() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.Model(&models.ProvisioningJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
