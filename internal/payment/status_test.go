package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusPoller_AutoResolves(t *testing.T) {
	rec := &recorder{}
	p := NewStatusPoller(testConfig(), "BSE-NPS-5555", decimal.NewFromInt(500), rec.notify, nil)
	defer p.Close()

	assert.Equal(t, StatusPending, p.Status())
	assert.Equal(t, "506.96", p.View().Amounts.Total.StringFixed(2))

	assert.Eventually(t, func() bool { return p.Status() == StatusSuccess }, time.Second, 5*time.Millisecond)
	assert.True(t, rec.has("payment.status_resolved"))
}

func TestStatusPoller_Refresh(t *testing.T) {
	cfg := testConfig()
	cfg.StatusAutoResolve = time.Hour
	p := NewStatusPoller(cfg, "R", decimal.NewFromInt(500), nil, nil)
	defer p.Close()

	p.Refresh()
	v := p.View()
	assert.Equal(t, StatusPending, v.Status)
	assert.True(t, v.Refreshing)

	assert.Eventually(t, func() bool { return p.Status() == StatusSuccess }, time.Second, 2*time.Millisecond)
	assert.False(t, p.View().Refreshing)

	// refreshing a resolved payment shows pending again
	p.Refresh()
	assert.Equal(t, StatusPending, p.Status())
	assert.Eventually(t, func() bool { return p.Status() == StatusSuccess }, time.Second, 2*time.Millisecond)
}

func TestStatusPoller_CloseStopsTimers(t *testing.T) {
	p := NewStatusPoller(testConfig(), "R", decimal.Zero, nil, nil)
	p.Close()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusPending, p.Status())
}

func TestStatusPoller_RefreshSupersedesAutoResolve(t *testing.T) {
	cfg := testConfig()
	cfg.StatusAutoResolve = 30 * time.Millisecond
	cfg.StatusRefreshDelay = 300 * time.Millisecond
	rec := &recorder{}
	p := NewStatusPoller(cfg, "BSE-NPS-7777", decimal.NewFromInt(500), rec.notify, nil)
	defer p.Close()

	p.Refresh()
	time.Sleep(100 * time.Millisecond)

	v := p.View()
	assert.Equal(t, StatusPending, v.Status)
	assert.True(t, v.Refreshing)
	assert.Equal(t, 0, rec.count("payment.status_resolved"))

	assert.Eventually(t, func() bool { return p.Status() == StatusSuccess }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count("payment.status_resolved"))
}
