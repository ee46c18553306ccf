package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dep2p/go-carrier/internal/core/subscription"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

// handleSubscribe 处理 subscribe 流
//
// 订阅先收到当前匹配的记录，然后按账本顺序收到后续变更。
// 被同一来源的新订阅取代时，最后一条变更是 Supersede。
func (s *Service) handleSubscribe(ctx context.Context, st *streams.Stream) error {
	var req pb.SubscribeRequest
	if err := st.ReadMsg(&req); err != nil {
		return err
	}
	filters := make([]types.Filter, 0, len(req.Filter))
	for _, f := range req.Filter {
		tf, err := pb.FilterToTypes(f)
		if err != nil {
			return err
		}
		filters = append(filters, tf)
	}
	b, _, err := s.boundRoute(st.Conn)
	if err != nil {
		return err
	}

	sub, err := s.deps.Ledger.Subscribe(subscription.Origin{
		Identity: b.Identity,
		Shadow:   string(req.Shadow),
	}, filters)
	if err != nil {
		return err
	}
	defer sub.Close()

	wctx, stop := watch(ctx, st)
	err = s.pump(wctx, st, sub)
	if serr := stop(); err == nil {
		err = serr
	}
	return err
}

// pump 把订阅队列中的事件写到流上，直到订阅结束
func (s *Service) pump(ctx context.Context, st *streams.Stream, sub *subscription.Subscription) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, subscription.ErrSuperseded):
				log.Debug("订阅被取代", "subscription", sub.ID.String())
				return nil
			case errors.Is(err, subscription.ErrOverflow):
				log.Warn("订阅队列溢出", "subscription", sub.ID.String(), "origin", sub.Origin.Identity.ShortString())
				return err
			case errors.Is(err, subscription.ErrClosed), ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
		change, err := pb.ChangeFromEvent(ev)
		if err != nil {
			return fmt.Errorf("encode change: %w", err)
		}
		if err := st.WriteMsg(change); err != nil {
			return err
		}
	}
}
