package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portalproxy-backend/internal/components/assert"
	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
)

const (
	report_recorder_record = "recorder.record"
	report_recorder_alert  = "recorder.alert"
)

// operators hear about a degraded institution at most once per this interval
const alertInterval = 24 * time.Hour

const alertTimeout = 30 * time.Second

// Recorder stores attempts and alerts operators of degraded parses.
type Recorder struct {
	store  Store
	mailer Mailer
	tel    telemetry.API
	time   chrono.API

	// alerting serializes the throttle check with the send it guards
	alerting *sync.Mutex
	alerts   *sync.WaitGroup
}

// NewRecorder creates a Recorder, `mailer` may be nil to disable alerts.
func NewRecorder(store Store, mailer Mailer, tel telemetry.API, time chrono.API) Recorder {
	assert.NotNil(tel)
	assert.NotNil(time)

	return Recorder{
		store:  store,
		mailer: mailer,
		tel:    telemetry.NewScopedAPI("diagnostics", tel),
		time:   time,

		alerting: &sync.Mutex{},
		alerts:   &sync.WaitGroup{},
	}
}

// Record never fails the caller, problems are reported through telemetry. Alerts
// are sent in the background so the caller never waits on the mail server.
func (r Recorder) Record(ctx context.Context, a Attempt) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.time.Now()
	}

	err := r.store.Record(ctx, a)
	if err != nil {
		r.tel.ReportBroken(report_recorder_record, fmt.Errorf("store attempt: %w", err), a.Institution)
	}

	if !a.Degraded || r.mailer == nil {
		return
	}

	r.alerts.Add(1)
	go func() {
		defer r.alerts.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()

		err := r.alert(ctx, a)
		if err != nil {
			r.tel.ReportBroken(report_recorder_alert, err, a.Institution)
		}
	}()
}

// Wait blocks until every alert started by Record is done.
func (r Recorder) Wait() {
	r.alerts.Wait()
}

func (r Recorder) alert(ctx context.Context, a Attempt) error {
	r.alerting.Lock()
	defer r.alerting.Unlock()

	last, ok, err := r.store.LastAlert(ctx, a.Institution)
	if err != nil {
		return fmt.Errorf("read last alert: %w", err)
	}
	if ok && a.CreatedAt.Sub(last) < alertInterval {
		r.tel.ReportDebug(report_recorder_alert, "throttled", a.Institution, last)
		return nil
	}

	subject, body := formatAlert(a)
	err = r.mailer.Send(ctx, subject, body)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	err = r.store.MarkAlerted(ctx, a.Institution, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}
	return nil
}
