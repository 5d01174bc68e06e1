package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

// Orchestrator 驱动订单从授权到证书落盘
type Orchestrator struct {
	orders    provider.OrderProvider
	responder *Responder
	domains   []string
	logger    *zap.Logger
}

// NewOrchestrator 创建编排器，domains[0] 为主域名
func NewOrchestrator(orders provider.OrderProvider, responder *Responder, domains []string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		orders:    orders,
		responder: responder,
		domains:   domains,
		logger:    logger,
	}
}

// IssueCertificate 申请证书，成功时磁盘上的证书已被替换，失败返回 *OrderError
func (o *Orchestrator) IssueCertificate(ctx context.Context) error {
	if len(o.domains) == 0 {
		return o.fail(StageOrder, errors.New("no domains"))
	}
	primary := o.domains[0]

	order, err := o.orders.GetOrCreateOrder(ctx, primary, o.domains)
	if err != nil {
		return o.fail(StageOrder, err)
	}
	o.logger.Info("processing order", zap.String("domain", primary), zap.Strings("domains", o.domains))

	state := &orderState{current: StateAuthorizationsPending}
	for !state.Done() {
		var stage Stage
		switch state.State() {
		case StateAuthorizationsPending:
			stage, err = StageAuthorization, o.authorize(ctx, order)
		case StateAuthorizationsValid:
			stage, err = StageFinalize, o.finalize(ctx, order)
		case StateFinalized:
			stage, err = StageCertificate, order.Certificate(ctx)
		default:
			return o.fail(StageOrder, fmt.Errorf("%w: unknown state %s", ErrIllegalTransition, state.State()))
		}
		if err != nil {
			return o.fail(stage, err)
		}

		next := transitions[state.State()]
		if err := state.advance(next); err != nil {
			return o.fail(stage, err)
		}
		o.logger.Debug("order state changed", zap.Stringer("state", next))
	}

	o.logger.Info("certificate issued", zap.String("domain", primary))
	return nil
}

// authorize 对待验证授权执行一轮验证
func (o *Orchestrator) authorize(ctx context.Context, order provider.Order) error {
	valid, err := order.AllAuthorizationsValid(ctx)
	if err != nil {
		return err
	}
	if valid {
		o.logger.Debug("all authorizations already valid")
		return nil
	}

	pending, err := order.PendingAuthorizations(ctx, provider.ChallengeHTTP01)
	if err != nil {
		return fmt.Errorf("list pending authorizations: %w", err)
	}
	o.logger.Info("answering challenges", zap.Int("pending", len(pending)))

	if err := o.responder.Respond(ctx, order, pending); err != nil {
		return err
	}

	valid, err = order.AllAuthorizationsValid(ctx)
	if err != nil {
		return err
	}
	if !valid {
		return ErrUnexpectedInvalid
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, order provider.Order) error {
	finalized, err := order.IsFinalized(ctx)
	if err != nil {
		return err
	}
	if finalized {
		o.logger.Debug("order already finalized")
		return nil
	}

	if err := order.Finalize(ctx); err != nil {
		return err
	}

	finalized, err = order.IsFinalized(ctx)
	if err != nil {
		return err
	}
	if !finalized {
		return ErrNotFinalized
	}
	return nil
}

func (o *Orchestrator) fail(stage Stage, err error) error {
	oe := &OrderError{Stage: stage, Err: err}
	o.logger.Error("certificate order failed", zap.String("stage", string(stage)), zap.Error(err))
	return oe
}
