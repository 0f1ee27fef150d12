package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventform/internal/dto"
	"eventform/internal/export"
	"eventform/internal/metrics"
	"eventform/internal/model"
	"eventform/internal/repo"
	"eventform/pkg/validator"
)

type Service interface {
	Submit(ctx *ginext.Context)
	PaymentCallback(ctx *ginext.Context)
	ExportCSV(ctx *ginext.Context)
	ExportExcel(ctx *ginext.Context)
}

// Notifier starts delivery of the submission mails without waiting for them.
type Notifier interface {
	Dispatch(ctx context.Context, app model.Application)
}

type Exporter interface {
	ToCSV(ctx context.Context, records []model.Application) (*export.Artifact, error)
	ToSpreadsheet(ctx context.Context, records []model.Application) (*export.Artifact, error)
}

type PaymentConfig struct {
	BaseURL string
	Amount  int
}

type service struct {
	repo     repo.Repository
	notifier Notifier
	exporter Exporter
	payment  PaymentConfig
	log      *zerolog.Logger
	metrics  *metrics.Metrics
}

func NewService(repo repo.Repository, notifier Notifier, exporter Exporter, payment PaymentConfig, logger *zerolog.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
		exporter: exporter,
		payment:  payment,
		log:      logger,
		metrics:  m,
	}
}

func (s *service) Submit(ctx *ginext.Context) {
	var req dto.SubmitApplicationRequest
	if err := ctx.ShouldBind(&req); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse submit request")
		s.metrics.ObserveSubmission("malformed")
		dto.ValidationError(ctx, []dto.FieldError{{Field: "body", Message: dto.MalformedPayload}})
		return
	}

	if errs := validator.ValidateApplication(ctx.Request.Context(), &req); len(errs) > 0 {
		s.log.Info().Int("errors", len(errs)).Msg("submission rejected by validation")
		s.metrics.ObserveSubmission("invalid")
		dto.ValidationError(ctx, errs)
		return
	}

	// the redirect target is checked before anything is stored or sent
	checkout, err := url.Parse(s.payment.BaseURL)
	if err != nil {
		s.log.Error().Err(err).Str("base_url", s.payment.BaseURL).Msg("invalid payment base url")
		s.metrics.ObserveSubmission("failed")
		dto.InternalServerError(ctx)
		return
	}

	app, err := s.repo.Save(ctx.Request.Context(), validator.ToDraft(&req))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to save application")
		s.metrics.ObserveSubmission("failed")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Str("application_id", app.ID).
		Str("application_type", string(app.ApplicationType)).
		Msg("application received")

	s.notifier.Dispatch(context.WithoutCancel(ctx.Request.Context()), app)

	s.metrics.ObserveSubmission("accepted")
	dto.SubmitSuccess(ctx, app.ID, s.redirectURL(*checkout, app.ID))
}

func (s *service) redirectURL(checkout url.URL, id string) string {
	q := checkout.Query()
	q.Set("order_id", id)
	q.Set("amount", strconv.Itoa(s.payment.Amount))
	checkout.RawQuery = q.Encode()
	return checkout.String()
}

func (s *service) PaymentCallback(ctx *ginext.Context) {
	var req dto.PaymentCallbackRequest
	if err := ctx.ShouldBind(&req); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse payment callback")
		s.metrics.ObserveCallback("malformed")
		dto.BadPayloadError(ctx)
		return
	}

	if req.Status != dto.PaymentStatusSuccess {
		s.log.Info().Str("order_id", req.OrderID).Str("status", req.Status).Msg("payment reported as failed")
		s.metrics.ObserveCallback("payment_failed")
		dto.PaymentFailedError(ctx)
		return
	}

	app, err := s.repo.UpdateStatus(ctx.Request.Context(), req.OrderID, model.StatusCompleted)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrApplicationNotFound):
			s.log.Warn().Str("order_id", req.OrderID).Msg("payment callback for unknown application")
			s.metrics.ObserveCallback("not_found")
			dto.NotFoundError(ctx)
		default:
			s.log.Error().Err(err).Str("order_id", req.OrderID).Msg("failed to complete application")
			s.metrics.ObserveCallback("failed")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().Str("application_id", app.ID).Msg("✅ payment completed")
	s.metrics.ObserveCallback("completed")
	dto.SuccessResponse(ctx)
}

func (s *service) ExportCSV(ctx *ginext.Context) {
	s.export(ctx, export.FormatCSV, s.exporter.ToCSV)
}

func (s *service) ExportExcel(ctx *ginext.Context) {
	s.export(ctx, export.FormatXLSX, s.exporter.ToSpreadsheet)
}

func (s *service) export(ctx *ginext.Context, format string, render func(context.Context, []model.Application) (*export.Artifact, error)) {
	records, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Str("format", format).Msg("failed to read applications for export")
		s.metrics.ObserveExport(format, "failed")
		dto.ExportFailedError(ctx)
		return
	}

	artifact, err := render(ctx.Request.Context(), records)
	if err != nil {
		s.log.Error().Err(err).Str("format", format).Msg("Export error")
		s.metrics.ObserveExport(format, "failed")
		dto.ExportFailedError(ctx)
		return
	}
	defer artifact.Cleanup()

	ctx.Header("Content-Type", artifact.ContentType)
	ctx.FileAttachment(artifact.Path, artifact.Filename)

	s.log.Info().Str("format", format).Int("records", len(records)).Msg("export served")
	s.metrics.ObserveExport(format, "ok")
}
