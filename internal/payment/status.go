package payment

import (
	"sync"

	"github.com/shopspring/decimal"

	"pensionflow/internal/workflow"
	"pensionflow/pkg/logger"
)

// Status is the state shown by the payment-status poller.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
)

// StatusPoller tracks a payment made through a shared link. It starts
// pending, resolves to success after the auto-resolve delay, and can be
// refreshed, which shows pending again until the refresh delay elapses.
type StatusPoller struct {
	mu         sync.Mutex
	reference  string
	amounts    Amounts
	status     Status
	refreshing bool
	auto       *workflow.Timer
	refresh    *workflow.Timer
	cfg        Config
	notify     workflow.Notifier
	logger     logger.Logger
	closed     bool
	// gen invalidates timers scheduled before the latest refresh.
	gen uint64
}

// StatusView is a snapshot of the poller.
type StatusView struct {
	Reference  string  `json:"reference"`
	Status     Status  `json:"status"`
	Refreshing bool    `json:"refreshing"`
	Amounts    Amounts `json:"amounts"`
}

func NewStatusPoller(cfg Config, reference string, base decimal.Decimal, notify workflow.Notifier, log logger.Logger) *StatusPoller {
	if log == nil {
		log = logger.NewNop()
	}
	p := &StatusPoller{
		reference: reference,
		amounts:   cfg.Payable(base),
		status:    StatusPending,
		cfg:       cfg,
		notify:    notify,
		logger:    log,
	}
	p.auto = workflow.After(cfg.StatusAutoResolve, p.resolver(0))
	return p
}

func (p *StatusPoller) resolver(gen uint64) func() {
	return func() { p.resolve(gen) }
}

func (p *StatusPoller) resolve(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.status == StatusSuccess {
		p.mu.Unlock()
		return
	}
	p.status = StatusSuccess
	p.refreshing = false
	p.mu.Unlock()

	p.logger.Info("payment status resolved", map[string]interface{}{"reference": p.reference})
	p.notify.Emit(workflow.EventStatusResolved, map[string]interface{}{
		"reference": p.reference,
		"status":    StatusSuccess,
	})
}

// Refresh re-checks the status. It supersedes the auto-resolve timer and
// any earlier refresh, so the status stays pending for the full refresh
// delay.
func (p *StatusPoller) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.gen++
	p.status = StatusPending
	p.refreshing = true
	p.auto.Cancel()
	p.refresh.Cancel()
	p.refresh = workflow.After(p.cfg.StatusRefreshDelay, p.resolver(p.gen))
}

func (p *StatusPoller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *StatusPoller) View() StatusView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return StatusView{
		Reference:  p.reference,
		Status:     p.status,
		Refreshing: p.refreshing,
		Amounts:    p.amounts,
	}
}

// Close stops both timers.
func (p *StatusPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.auto.Cancel()
	p.refresh.Cancel()
}
