package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/repository"
	"github.com/sgsec-dev/titus-simulator/internal/simulator"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	simulator   *simulator.Simulator
	redisClient *redis.Client
	loc         *time.Location

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, sim *simulator.Simulator, rdb *redis.Client, loc *time.Location) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		simulator:   sim,
		redisClient: rdb,
		loc:         loc,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/health", h.Health)
	h.Mux.Get("/stats", h.GetStats)

	// 手动触发一次拉取加模拟，方便联调
	h.Mux.Post("/run-once", h.RunOnce)

	h.Mux.Route("/rosters", func(r chi.Router) {
		r.Post("/", h.UploadRoster)
		r.Get("/", h.GetRosterLogs)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.rosterFile)
			r.Get("/", h.GetRosterFile)
			r.Post("/simulate", h.SimulateRosterFile)
		})
	})
}
