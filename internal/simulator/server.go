// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System - Pelephone API Simulator

package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"github.com/alexgavs/eyeson-go/internal/config"
	"github.com/alexgavs/eyeson-go/internal/database"
	"github.com/alexgavs/eyeson-go/internal/events"
	"github.com/alexgavs/eyeson-go/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/schema"
	"gorm.io/gorm"
)

const msgInvalidCredentials = "Invalid Username or password"

type Options struct {
	SimCount         int
	ApplyMode        string
	ApplyDelay       time.Duration
	JwtSecret        string
	CorsAllowOrigins string
	SessionTTL       time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SimCount:         cfg.SimCount,
		ApplyMode:        cfg.ApplyMode,
		ApplyDelay:       time.Duration(cfg.ApplyDelayMs) * time.Millisecond,
		JwtSecret:        cfg.JwtSecret,
		CorsAllowOrigins: cfg.CorsAllowOrigins,
	}
}

// Server is the reference implementation of the provisioning API.
type Server struct {
	app      *fiber.App
	db       *gorm.DB
	store    *Store
	events   *events.Broadcaster
	queue    *JobQueue
	worker   *Worker
	opts     Options
	validate *validator.Validate
	decoder  *schema.Decoder
}

// New builds the fiber app, loads settings and seeds SIMs when the database is empty.
func New(db *gorm.DB, opts Options) (*Server, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.JwtSecret == "" {
		opts.JwtSecret = "change-me-in-prod"
	}
	if opts.ApplyMode != config.ApplyModeAsync {
		opts.ApplyMode = config.ApplyModeSync
	}

	broadcaster := events.NewBroadcaster()
	store := NewStore(db, broadcaster)
	if err := store.Init(opts.SimCount); err != nil {
		return nil, err
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		db:       db,
		store:    store,
		events:   broadcaster,
		opts:     opts,
		validate: validator.New(),
		decoder:  decoder,
	}
	if opts.ApplyMode == config.ApplyModeAsync {
		s.queue = NewJobQueue(100)
		s.worker = NewWorker(store, s.queue, opts.ApplyDelay)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "Pelephone API Simulator",
		DisableStartupMessage: true,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())

	allowOrigins := strings.TrimSpace(s.opts.CorsAllowOrigins)
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	s.app.Use(logger.New())

	// Pelephone API simulation
	api := s.app.Group("/ipa/apis/json")
	api.Use(s.requireEnabled)
	api.Post("/"+models.AreaGeneral+"/"+models.OpLogin, s.handleLogin)
	api.Post("/"+models.AreaGeneral+"/"+models.OpLogout, s.handleLogout)
	api.Post("/"+models.AreaProvisioning+"/"+models.OpGetProvisioningParameterList, s.handleGetProvisioningParameterList)
	api.Post("/"+models.AreaProvisioning+"/"+models.OpGetProvisioningData, s.handleGetProvisioningData)
	api.Post("/"+models.AreaProvisioning+"/"+models.OpGetProvisioningJobList, s.handleGetProvisioningJobList)
	api.Post("/"+models.AreaProvisioning+"/"+models.OpUpdateProvisioningData, s.handleUpdateProvisioningData)

	// Admin panel
	admin := s.app.Group("/web/api")
	admin.Get("/config", s.handleGetConfig)
	admin.Post("/config", s.handleSetConfig)
	admin.Get("/sims", s.handleGetSims)
	admin.Post("/import", s.handleImportSims)
	admin.Post("/generate", s.handleGenerateSims)
	admin.Post("/clear", s.handleClearSims)
	admin.Post("/sim/:cli/status", s.handleChangeSingleSimStatus)
	admin.Get("/events", s.events.Handler)
	admin.Get("/stats", s.handleStats)
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Store() *Store { return s.store }

func (s *Server) Worker() *Worker { return s.worker }

// Start launches the async worker when the server applies jobs in the background.
func (s *Server) Start(ctx context.Context) {
	if s.worker != nil {
		s.worker.Start(ctx)
	}
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Listener(ln net.Listener) error { return s.app.Listener(ln) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }

// ========== Pelephone API Handlers ==========

func (s *Server) requireEnabled(c *fiber.Ctx) error {
	if !s.store.Settings().Enabled {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ResponseBase{
			Result:  models.ResultFailed,
			Message: "Simulator is disabled",
		})
	}
	return c.Next()
}

// decodeBody parses the JSON body regardless of Content-Type. An empty body
// decodes to the zero request; false means the 400 reply was already written.
func decodeBody(c *fiber.Ctx, out any) (bool, error) {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(models.ResponseBase{
			Result:  models.ResultInvalidReq,
			Message: "Invalid JSON",
		})
	}
	return true, nil
}

// authorize reports false after having written the REJECTED reply.
func (s *Server) authorize(c *fiber.Ctx, creds models.Credentials) (bool, error) {
	ok, err := database.CheckAPICredentials(s.db, strings.TrimSpace(creds.Username), creds.Password)
	if err != nil {
		return false, s.replyError(c, err)
	}
	if !ok {
		return false, c.JSON(models.ResponseBase{Result: models.ResultRejected, Message: msgInvalidCredentials})
	}
	return true, nil
}

func (s *Server) replyError(c *fiber.Ctx, err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return c.JSON(models.ResponseBase{Result: apiErr.result, Message: apiErr.message})
	}
	log.Printf("[Simulator] Internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ResponseBase{
		Result:  models.ResultFailed,
		Message: err.Error(),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	if ok, err := s.authorize(c, req); !ok {
		return err
	}

	session, err := s.store.CreateSession(req.Username, s.opts.SessionTTL)
	if err != nil {
		return s.replyError(c, err)
	}
	claims := jwt.MapClaims{
		"sid":      session.ID,
		"username": session.Username,
		"iat":      session.CreatedAt.Unix(),
		"exp":      session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JwtSecret))
	if err != nil {
		return s.replyError(c, err)
	}

	log.Printf("[Simulator] Login: %s", req.Username)
	return c.JSON(models.LoginResponse{
		ResponseBase: models.ResponseBase{Result: models.ResultSuccess},
		SessionId:    session.ID,
		JwtToken:     token,
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	var req models.Credentials
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if ok, err := s.authorize(c, req); !ok {
		return err
	}

	n, err := s.store.DeleteSessions(req.Username)
	if err != nil {
		return s.replyError(c, err)
	}
	log.Printf("[Simulator] Logout: %s (%d sessions closed)", req.Username, n)
	return c.JSON(models.LogoutResponse{Result: models.ResultSuccess})
}

func (s *Server) handleGetProvisioningParameterList(c *fiber.Ctx) error {
	var req models.Credentials
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if ok, err := s.authorize(c, req); !ok {
		return err
	}

	return c.JSON(models.GetProvisioningParameterListResponse{
		ResponseBase: models.ResponseBase{Result: models.ResultSuccess},
		Parameters:   Parameters(),
	})
}

func (s *Server) handleGetProvisioningData(c *fiber.Ctx) error {
	var req models.GetProvisioningDataRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if ok, err := s.authorize(c, req.Credentials); !ok {
		return err
	}

	total, records, err := s.store.Query(req.ProvisioningDataQuery)
	if err != nil {
		return s.replyError(c, err)
	}

	log.Printf("[Simulator] GetProvisioningData: returning %d SIMs (total: %d)", len(records), total)
	return c.JSON(models.GetProvisioningDataResponse{
		ResponseBase: models.ResponseBase{Result: models.ResultSuccess},
		Count:        int(total),
		FieldNames:   FieldNames(),
		Data:         records,
	})
}

func (s *Server) handleGetProvisioningJobList(c *fiber.Ctx) error {
	var req models.GetJobsRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if ok, err := s.authorize(c, req.Credentials); !ok {
		return err
	}

	total, rows, err := s.store.ListJobs(req.JobQuery)
	if err != nil {
		return s.replyError(c, err)
	}
	jobs := make([]models.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, toJob(&rows[i]))
	}

	return c.JSON(models.GetJobsResponse{
		ResponseBase: models.ResponseBase{Result: models.ResultSuccess},
		Count:        int(total),
		Jobs:         jobs,
	})
}

func (s *Server) handleUpdateProvisioningData(c *fiber.Ctx) error {
	var req models.UpdateProvisioningDataRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if ok, err := s.authorize(c, req.Credentials); !ok {
		return err
	}

	if err := s.validate.Struct(req); err != nil {
		return c.JSON(models.ResponseBase{Result: models.ResultInvalidReq, Message: validationMessage(err)})
	}

	job, err := s.store.Submit(req.Username, req.Actions)
	if err != nil {
		return s.replyError(c, err)
	}

	if s.queue != nil {
		if err := s.queue.Push(c.UserContext(), job.ID); err != nil {
			return s.replyError(c, err)
		}
	} else if _, err := s.store.ApplyJob(job.ID); err != nil {
		return s.replyError(c, err)
	}

	return c.JSON(models.UpdateProvisioningDataResponse{
		ResponseBase: models.ResponseBase{Result: models.ResultSuccess},
		RequestId:    int(job.ID),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
