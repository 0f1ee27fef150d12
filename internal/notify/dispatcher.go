package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventform/internal/mailer"
	"eventform/internal/metrics"
	"eventform/internal/model"
	"eventform/internal/projection"
)

var (
	ErrNoRecipient = errors.New("application has no email address")
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Queue accepts messages for delivery at some later point. Enqueue must not
// wait for delivery.
type Queue interface {
	Enqueue(ctx context.Context, msg mailer.Message) error
}

type Office struct {
	Name  string
	Phone string
	Email string
}

type Config struct {
	From         string
	StaffAddress string
	Office       Office
	Location     *time.Location
}

type Dispatcher struct {
	queue   Queue
	cfg     Config
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(queue Queue, cfg Config, log *zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{queue: queue, cfg: cfg, log: log, metrics: m}
}

type mailView struct {
	projection.Row
	Individual bool
	StaffView  bool
	Office     Office
}

func (v mailView) DepartmentOrNone() string { return orNone(v.Department) }
func (v mailView) NotesOrNone() string      { return orNone(v.Notes) }

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

func (d *Dispatcher) view(app model.Application, staff bool) mailView {
	return mailView{
		Row:        projection.Project(app, d.cfg.Location),
		Individual: app.ApplicationType == model.Individual,
		StaffView:  staff,
		Office:     d.cfg.Office,
	}
}

// Confirmation renders the applicant-facing acknowledgement.
func (d *Dispatcher) Confirmation(app model.Application) (mailer.Message, error) {
	if app.Email == "" {
		return mailer.Message{}, ErrNoRecipient
	}

	v := d.view(app, false)
	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, v); err != nil {
		return mailer.Message{}, fmt.Errorf("render confirmation text: %w", err)
	}
	if err := confirmationHTML.Execute(&html, v); err != nil {
		return mailer.Message{}, fmt.Errorf("render confirmation html: %w", err)
	}

	return mailer.Message{
		Kind:     KindConfirmation,
		FromName: confirmationFromName,
		From:     d.cfg.From,
		To:       app.Email,
		Subject:  confirmationSubject,
		Text:     text.String(),
		HTML:     html.String(),
		RefID:    app.ID,
	}, nil
}

// StaffNotice renders the internal notice sent to the operations address.
func (d *Dispatcher) StaffNotice(app model.Application) (mailer.Message, error) {
	var text bytes.Buffer
	if err := staffNoticeText.Execute(&text, d.view(app, true)); err != nil {
		return mailer.Message{}, fmt.Errorf("render staff notice: %w", err)
	}

	return mailer.Message{
		Kind:     KindStaffNotice,
		FromName: staffNoticeFromName,
		From:     d.cfg.From,
		To:       d.cfg.StaffAddress,
		Subject:  staffNoticeSubject,
		Text:     text.String(),
		RefID:    app.ID,
	}, nil
}

// Dispatch hands both messages to the queue and returns without waiting for
// delivery. Failures are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, app model.Application) {
	if msg, err := d.Confirmation(app); err != nil {
		d.log.Error().Err(err).Str("application_id", app.ID).Msg("confirmation email skipped")
		d.metrics.ObserveNotification(KindConfirmation, "skipped")
	} else {
		d.enqueue(ctx, msg)
	}

	if msg, err := d.StaffNotice(app); err != nil {
		d.log.Error().Err(err).Str("application_id", app.ID).Msg("staff notice skipped")
		d.metrics.ObserveNotification(KindStaffNotice, "skipped")
	} else {
		d.enqueue(ctx, msg)
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, msg mailer.Message) {
	if err := d.queue.Enqueue(ctx, msg); err != nil {
		d.log.Error().Err(err).
			Str("kind", msg.Kind).
			Str("application_id", msg.RefID).
			Msg("failed to enqueue notification")
		d.metrics.ObserveNotification(msg.Kind, "enqueue_failed")
		return
	}
	d.metrics.ObserveNotification(msg.Kind, "enqueued")
}
