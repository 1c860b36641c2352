package expiry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/locauto/locauto/internal/account"
	"github.com/locauto/locauto/internal/metrics"
	"github.com/locauto/locauto/internal/model"
)

type mockAccountLister struct {
	listAllFn func(ctx context.Context) ([]model.Account, error)
}

func (m *mockAccountLister) ListAll(ctx context.Context) ([]model.Account, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

type gaugeSpy struct {
	metrics.Noop
	values []int
}

func (g *gaugeSpy) SetExpiringTomorrow(count int) { g.values = append(g.values, count) }

var brt = time.FixedZone("BRT", -3*60*60)

func date(y int, m time.Month, d int) *civil.Date {
	v := civil.Date{Year: y, Month: m, Day: d}
	return &v
}

func newJob(accounts []model.Account, listErr error, now time.Time, buf *bytes.Buffer) (*ReportJob, *gaugeSpy) {
	spy := &gaugeSpy{}
	lister := &mockAccountLister{
		listAllFn: func(ctx context.Context) ([]model.Account, error) {
			return accounts, listErr
		},
	}
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	job := NewReportJob(lister, account.ClockFunc(func() time.Time { return now }), spy, logger)
	return job, spy
}

func TestReportJob_Collect(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 10, 22, 30, 0, 0, brt)
	job, spy := newJob([]model.Account{
		{ID: 1, Email: "a@example.com"},
		{ID: 2, Email: "b@example.com", ExpiryDate: date(2024, 6, 11)},
		{ID: 3, Email: "c@example.com", ExpiryDate: date(2024, 6, 11), Frozen: true},
		{ID: 4, Email: "d@example.com", ExpiryDate: date(2024, 6, 9)},
		{ID: 5, Email: "e@example.com", ExpiryDate: date(2024, 6, 10)},
		{ID: 6, Email: "f@example.com", ExpiryDate: date(2024, 6, 12)},
	}, nil, now, &buf)

	report, err := job.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Today.String() != "2024-06-10" {
		t.Errorf("Today = %s, want 2024-06-10", report.Today)
	}
	if len(report.ExpiringTomorrow) != 1 || report.ExpiringTomorrow[0].ID != 2 {
		t.Errorf("ExpiringTomorrow = %+v, want only id 2", report.ExpiringTomorrow)
	}
	if report.ExpiredCount != 1 {
		t.Errorf("ExpiredCount = %d, want 1", report.ExpiredCount)
	}
	if len(spy.values) != 1 || spy.values[0] != 1 {
		t.Errorf("SetExpiringTomorrow = %v, want [1]", spy.values)
	}
	if !strings.Contains(buf.String(), "b@example.com") {
		t.Errorf("alerted account should be logged: %s", buf.String())
	}
	if strings.Contains(buf.String(), "c@example.com") {
		t.Error("frozen account should not be logged")
	}
}

func TestReportJob_Run_ListError(t *testing.T) {
	var buf bytes.Buffer
	job, spy := newJob(nil, errors.New("db down"), time.Now(), &buf)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(spy.values) != 0 {
		t.Error("gauge should not be updated on failure")
	}
}

func TestReportJob_Run_NoAccounts(t *testing.T) {
	var buf bytes.Buffer
	job, spy := newJob(nil, nil, time.Now(), &buf)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spy.values) != 1 || spy.values[0] != 0 {
		t.Errorf("SetExpiringTomorrow = %v, want [0]", spy.values)
	}
	if job.Name() != "expiry_report" {
		t.Errorf("Name() = %q", job.Name())
	}
}
