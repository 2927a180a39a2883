package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ========== Admin Panel Handlers ==========

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	count, err := s.store.CountSims()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	settings := s.store.Settings()
	return c.JSON(fiber.Map{
		"sim_count":    settings.SimCount,
		"enabled":      settings.Enabled,
		"actual_count": count,
		"apply_mode":   s.opts.ApplyMode,
	})
}

func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var req Settings
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.SimCount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sim_count must not be negative"})
	}
	if err := s.store.SaveSettings(req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleGetSims(c *fiber.Ctx) error {
	var filter SimFilter
	query := make(map[string][]string)
	for k, v := range c.Queries() {
		query[k] = []string{v}
	}
	if err := s.decoder.Decode(&filter, query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cards, err := s.store.ListSims(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(cards)
}

// ImportSim is one row of an admin import. Numbers may arrive quoted.
type ImportSim struct {
	CLI                string      `json:"cli"`
	MSISDN             string      `json:"msisdn"`
	Status             string      `json:"status"`
	RatePlan           string      `json:"rate_plan"`
	Label1             string      `json:"label1"`
	Label2             string      `json:"label2"`
	Label3             string      `json:"label3"`
	ICCID              string      `json:"iccid"`
	IMSI               string      `json:"imsi"`
	IMEI               string      `json:"imei"`
	APN                string      `json:"apn"`
	IP                 string      `json:"ip"`
	UsageMB            json.Number `json:"usage_mb"`
	AllocatedMB        json.Number `json:"allocated_mb"`
	PrepaidDataBalance json.Number `json:"prepaid_data_balance"`
	LastSession        string      `json:"last_session"`
	InSession          *bool       `json:"in_session"`
}

type ImportRequest struct {
	Replace *bool       `json:"replace"`
	SIMs    []ImportSim `json:"sims"`
}

func (in ImportSim) toCard() (models.SimCard, error) {
	status := models.StatusActivated
	if strings.TrimSpace(in.Status) != "" {
		st, ok := models.ParseSimStatus(in.Status)
		if !ok {
			return models.SimCard{}, fmt.Errorf("sim %s: unknown status %q", in.CLI, in.Status)
		}
		status = st
	}

	usage, err := numberOr(in.UsageMB, 0)
	if err != nil {
		return models.SimCard{}, fmt.Errorf("sim %s: usage_mb: %w", in.CLI, err)
	}
	allocated, err := numberOr(in.AllocatedMB, defaultAllocatedMB)
	if err != nil {
		return models.SimCard{}, fmt.Errorf("sim %s: allocated_mb: %w", in.CLI, err)
	}
	balance := math.Round((allocated-usage)/1024*100) / 100
	if in.PrepaidDataBalance != "" {
		if balance, err = in.PrepaidDataBalance.Float64(); err != nil {
			return models.SimCard{}, fmt.Errorf("sim %s: prepaid_data_balance: %w", in.CLI, err)
		}
	}

	card := models.SimCard{
		CLI:                strings.TrimSpace(in.CLI),
		MSISDN:             strings.TrimSpace(in.MSISDN),
		Status:             string(status),
		RatePlan:           in.RatePlan,
		CustomerLabel1:     in.Label1,
		CustomerLabel2:     in.Label2,
		CustomerLabel3:     in.Label3,
		SimSwap:            in.ICCID,
		IMSI:               in.IMSI,
		IMEI:               in.IMEI,
		APNName:            in.APN,
		IP1:                in.IP,
		MonthlyUsageMB:     int64(usage),
		AllocatedMB:        int64(allocated),
		PrepaidDataBalance: balance,
		InSession:          in.InSession,
	}
	if ls := strings.TrimSpace(in.LastSession); ls != "" {
		t, err := time.ParseInLocation(lastSessionLayout, ls, time.Local)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, ls); err != nil {
				return models.SimCard{}, fmt.Errorf("sim %s: last_session %q", in.CLI, ls)
			}
		}
		card.LastSessionTime = &t
	}
	return card, nil
}

func numberOr(n json.Number, fallback float64) (float64, error) {
	if strings.TrimSpace(string(n)) == "" {
		return fallback, nil
	}
	return n.Float64()
}

func (s *Server) handleImportSims(c *fiber.Ctx) error {
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	// Replace is the default; partial merges must ask for it.
	replace := req.Replace == nil || *req.Replace

	cards := make([]models.SimCard, 0, len(req.SIMs))
	for _, in := range req.SIMs {
		if strings.TrimSpace(in.CLI) == "" || strings.TrimSpace(in.MSISDN) == "" {
			continue
		}
		card, err := in.toCard()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		cards = append(cards, card)
	}

	inserted, err := s.store.Import(cards, replace)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	settings := s.store.Settings()
	settings.SimCount = inserted
	if err := s.store.SaveSettings(settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "count": inserted})
}

func (s *Server) handleGenerateSims(c *fiber.Ctx) error {
	var req struct {
		Count int `json:"count"`
	}
	settings := s.store.Settings()
	if err := c.BodyParser(&req); err != nil || req.Count <= 0 {
		req.Count = settings.SimCount
	}

	if err := s.store.Generate(req.Count); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	settings.SimCount = req.Count
	if err := s.store.SaveSettings(settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   req.Count,
	})
}

func (s *Server) handleClearSims(c *fiber.Ctx) error {
	if err := s.store.Clear(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleChangeSingleSimStatus(c *fiber.Ctx) error {
	cli := c.Params("cli")
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	status, ok := models.ParseSimStatus(req.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("Unknown status %q", req.Status)})
	}

	if err := s.store.SetStatus(cli, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "SIM not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	sims, err := s.store.CountSims()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	jobs, err := s.store.JobStats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	stats := fiber.Map{
		"sims":   sims,
		"jobs":   jobs,
		"events": s.events.Stats(),
	}
	if s.worker != nil {
		stats["worker_processed"] = s.worker.Processed()
	}
	return c.JSON(stats)
}
