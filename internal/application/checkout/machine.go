// Package checkout runs MoMo checkout sessions: customer details, payment
// initiation and the status polling loop.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/cart"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payment results recorded in metrics
const (
	ResultSuccessful = "successful"
	ResultFailed     = "failed"
	ResultTimeout    = "timeout"
	ResultRejected   = "rejected"
)

// Config holds the polling bounds and the payment currency
type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	Currency     string
}

// DefaultConfig polls every 3 seconds for at most 5 minutes
func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		PollTimeout:  5 * time.Minute,
		Currency:     "ZMW",
	}
}

// CompletionFunc is called once per session after a successful payment
type CompletionFunc func(checkout.Snapshot)

// Machine creates checkout sessions sharing one gateway and configuration
type Machine struct {
	gateway    checkout.PaymentGateway
	validate   *validator.Validate
	cfg        Config
	logger     *zap.Logger
	metrics    *telemetry.StoreMetrics
	onComplete CompletionFunc
	now        func() time.Time
}

// Option configures a Machine
type Option func(*Machine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *telemetry.StoreMetrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithCompletion sets the callback run after a successful payment
func WithCompletion(fn CompletionFunc) Option {
	return func(m *Machine) {
		m.onComplete = fn
	}
}

// WithClock overrides the clock used for order ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a Machine
func NewMachine(gateway checkout.PaymentGateway, cfg Config, opts ...Option) *Machine {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaults.PollTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	m := &Machine{
		gateway:  gateway,
		validate: NewValidator(),
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session at the details step paying for c
func (m *Machine) Open(c *cart.Cart) *Session {
	s := &Session{
		id:      uuid.NewString(),
		machine: m,
		cart:    c,
	}
	s.resetLocked()
	return s
}

// NewOrderID returns ORD-<unix ms>-<8 hex chars>
func (m *Machine) NewOrderID() string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("ORD-%d-%s", m.now().UnixMilli(), suffix)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeTimeout
)

// pollTask is the handle of one polling loop. once guards the transition
// out of Verifying so the status path, the timeout path and Close never
// apply more than one of them.
type pollTask struct {
	transactionID string
	cancel        context.CancelFunc
	done          chan struct{}
	once          sync.Once
}

// Session is one checkout flow. All methods are safe for concurrent use.
type Session struct {
	id      string
	machine *Machine
	cart    *cart.Cart

	mu            sync.Mutex
	step          checkout.Step
	orderID       string
	transactionID string
	customer      checkout.CustomerDetails
	errMsg        string
	amount        string
	paid          []cart.Item
	updatedAt     time.Time
	closed        bool
	initiating    bool
	poll          *pollTask
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current state
func (s *Session) Snapshot() checkout.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SubmitDetails validates the customer details and moves to the payment
// step. Invalid details keep the session at the details step with Error
// set; that is not reported as a Go error.
func (s *Session) SubmitDetails(details checkout.CustomerDetails) (checkout.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked(), checkout.ErrSessionClosed
	}
	if s.step != checkout.StepDetails {
		return s.snapshotLocked(), checkout.ErrInvalidTransition
	}

	details = trimDetails(details)
	s.customer = details
	s.touchLocked()
	if msg := detailsMessage(s.machine.validate, details); msg != "" {
		s.errMsg = msg
		return s.snapshotLocked(), nil
	}

	s.errMsg = ""
	s.step = checkout.StepPayment
	return s.snapshotLocked(), nil
}

// Back returns from the payment step to the details step
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return checkout.ErrSessionClosed
	}
	if s.step != checkout.StepPayment || s.initiating {
		return checkout.ErrInvalidTransition
	}
	s.step = checkout.StepDetails
	s.errMsg = ""
	s.touchLocked()
	return nil
}

// Pay initiates the payment for the cart total and starts polling. A
// rejected initiation leaves the session at the payment step with Error set
// and returns the gateway error.
func (s *Session) Pay(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return checkout.ErrSessionClosed
	}
	if s.step != checkout.StepPayment || s.initiating {
		s.mu.Unlock()
		return checkout.ErrInvalidTransition
	}
	if s.cart == nil || s.cart.IsEmpty() {
		s.mu.Unlock()
		return checkout.ErrEmptyCart
	}

	m := s.machine
	paid := s.cart.Items()
	total := cart.Sum(paid)
	req := checkout.InitiateRequest{
		Amount:       total,
		PhoneNumber:  NormalizePhone(s.customer.Phone),
		OrderID:      m.NewOrderID(),
		CustomerName: s.customer.Name,
		Currency:     m.cfg.Currency,
	}
	s.orderID = req.OrderID
	s.amount = total.StringFixed(2)
	s.paid = paid
	s.errMsg = ""
	s.initiating = true
	s.touchLocked()
	s.mu.Unlock()

	m.logger.Info("initiating payment",
		zap.String("session_id", s.id),
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.String()))

	resp, err := m.gateway.Initiate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiating = false
	if s.closed {
		return checkout.ErrSessionClosed
	}
	if err != nil {
		s.errMsg = initiateMessage(err)
		s.touchLocked()
		m.metrics.RecordPayment(ResultRejected)
		m.logger.Warn("payment initiation failed",
			zap.String("session_id", s.id),
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return fmt.Errorf("failed to initiate payment: %w", err)
	}

	s.transactionID = resp.TransactionID
	s.step = checkout.StepVerifying
	s.touchLocked()
	s.startPollingLocked(resp.TransactionID)
	return nil
}

// Wait blocks until the current polling loop has stopped or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	task := s.poll
	s.mu.Unlock()
	if task == nil {
		return nil
	}
	select {
	case <-task.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops polling and clears every field of the session. It can be
// called in any step and more than once.
func (s *Session) Close() {
	s.mu.Lock()
	task := s.poll
	s.resetLocked()
	s.closed = true
	s.mu.Unlock()

	if task != nil {
		task.once.Do(func() {})
		task.cancel()
	}
}

func (s *Session) startPollingLocked(transactionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.machine.cfg.PollTimeout)
	task := &pollTask{
		transactionID: transactionID,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	s.poll = task
	go s.pollLoop(ctx, task)
}

func (s *Session) pollLoop(ctx context.Context, task *pollTask) {
	defer close(task.done)
	m := s.machine
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.settle(task, outcomeTimeout)
			}
			return
		case <-ticker.C:
		}

		resp, err := m.gateway.Verify(ctx, task.transactionID)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("payment status check failed",
					zap.String("session_id", s.id),
					zap.String("transaction_id", task.transactionID),
					zap.Error(err))
			}
			continue
		}

		switch resp.Status {
		case checkout.PaymentStatusSuccessful:
			s.settle(task, outcomeSuccess)
			return
		case checkout.PaymentStatusFailed:
			s.settle(task, outcomeFailed)
			return
		}
	}
}

// settle applies the single transition out of Verifying for task
func (s *Session) settle(task *pollTask, result outcome) {
	task.once.Do(func() {
		defer task.cancel()
		m := s.machine

		s.mu.Lock()
		if s.poll != task || s.closed {
			s.mu.Unlock()
			return
		}
		s.poll = nil
		switch result {
		case outcomeSuccess:
			s.step = checkout.StepSuccess
			s.errMsg = ""
		case outcomeFailed:
			s.step = checkout.StepPayment
			s.errMsg = checkout.MsgPaymentFailed
			s.transactionID = ""
		case outcomeTimeout:
			s.step = checkout.StepPayment
			s.errMsg = checkout.MsgPaymentTimeout
			s.transactionID = ""
		}
		paid := s.paid
		s.touchLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		switch result {
		case outcomeSuccess:
			m.metrics.RecordPayment(ResultSuccessful)
			m.logger.Info("payment successful",
				zap.String("session_id", s.id),
				zap.String("order_id", snap.OrderID),
				zap.String("transaction_id", snap.TransactionID))
			if s.cart != nil {
				s.cart.Deduct(paid)
			}
			if m.onComplete != nil {
				m.onComplete(snap)
			}
		case outcomeFailed:
			m.metrics.RecordPayment(ResultFailed)
			m.logger.Info("payment failed",
				zap.String("session_id", s.id),
				zap.String("order_id", snap.OrderID))
		case outcomeTimeout:
			m.metrics.RecordPayment(ResultTimeout)
			m.logger.Warn("payment verification timed out",
				zap.String("session_id", s.id),
				zap.String("order_id", snap.OrderID),
				zap.Duration("timeout", m.cfg.PollTimeout))
		}
	})
}

func (s *Session) resetLocked() {
	s.step = checkout.StepDetails
	s.orderID = ""
	s.transactionID = ""
	s.customer = checkout.CustomerDetails{}
	s.errMsg = ""
	s.amount = ""
	s.initiating = false
	s.poll = nil
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.updatedAt = s.machine.now()
}

func (s *Session) snapshotLocked() checkout.Snapshot {
	return checkout.Snapshot{
		ID:            s.id,
		Step:          s.step,
		OrderID:       s.orderID,
		TransactionID: s.transactionID,
		Customer:      s.customer,
		Error:         s.errMsg,
		Amount:        s.amount,
		UpdatedAt:     s.updatedAt,
		Closed:        s.closed,
	}
}

// initiateMessage is the payer-facing text for a failed initiation
func initiateMessage(err error) string {
	if errors.Is(err, checkout.ErrPaymentRejected) {
		if detail, ok := strings.CutPrefix(err.Error(), checkout.ErrPaymentRejected.Error()+": "); ok && detail != "" {
			return detail
		}
	}
	return checkout.MsgInitiateFailed
}
