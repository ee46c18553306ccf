package federation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dep2p/go-carrier/pkg/types"
)

// worker 向一个对端按顺序投递公告
type worker struct {
	f    *Federator
	peer Peer

	mu      sync.Mutex
	pending map[types.Identity]Announcement
	order   []types.Identity
	wake    chan struct{}
}

func newWorker(f *Federator, p Peer) *worker {
	return &worker{
		f:       f,
		peer:    p,
		pending: make(map[types.Identity]Announcement),
		wake:    make(chan struct{}, 1),
	}
}

// enqueue 加入公告；同一身份未发出的公告被替换，保留原来的位置
func (w *worker) enqueue(a Announcement) {
	w.mu.Lock()
	if _, ok := w.pending[a.Identity]; !ok {
		w.order = append(w.order, a.Identity)
	}
	w.pending[a.Identity] = a
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) next() (Announcement, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return Announcement{}, false
	}
	id := w.order[0]
	w.order = w.order[1:]
	a := w.pending[id]
	delete(w.pending, id)
	return a, true
}

func (w *worker) has(id types.Identity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[id]
	return ok
}

func (w *worker) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *worker) run(ctx context.Context) error {
	for {
		a, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.wake:
				continue
			}
		}
		w.deliver(ctx, a)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *worker) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.f.cfg.InitialBackoff
	b.MaxInterval = w.f.cfg.MaxBackoff
	b.MaxElapsedTime = w.f.cfg.MaxElapsed
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// deliver 发送一条公告直到成功、被拒绝、被合并或放弃
func (w *worker) deliver(ctx context.Context, a Announcement) {
	attempts := 0
	op := func() error {
		if w.has(a.Identity) {
			return backoff.Permanent(errCoalesced)
		}
		attempts++
		err := w.send(ctx, w.f.current(a))
		if err != nil && !errors.Is(err, ErrPeerRejected) {
			w.f.cfg.Metrics.FederationFailure(w.peer.String())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("公告发送失败，稍后重试",
			"peer", w.peer.String(),
			"identity", a.Identity.ShortString(),
			"attempt", attempts,
			"retry_in", wait,
			"error", err)
	}

	err := backoff.RetryNotify(op, w.newBackOff(ctx), notify)
	switch {
	case err == nil:
		w.f.cfg.Metrics.FederationSent()
		log.Debug("公告已发送", "peer", w.peer.String(), "identity", a.Identity.ShortString(),
			"route", a.Route, "withdraw", a.Withdraw, "attempts", attempts)
	case errors.Is(err, errCoalesced):
		log.Debug("公告已被合并", "peer", w.peer.String(), "identity", a.Identity.ShortString())
	case ctx.Err() != nil:
	default:
		log.Warn("放弃公告", "peer", w.peer.String(), "identity", a.Identity.ShortString(),
			"attempts", attempts, "error", err)
	}
}

func (w *worker) send(ctx context.Context, a Announcement) error {
	ctx, cancel := context.WithTimeout(ctx, w.f.cfg.RequestTimeout)
	defer cancel()

	req := a.Request(uint64(w.f.cfg.Clock.Now().Unix()))
	resp, err := w.f.cfg.Sender.Send(ctx, w.peer, req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPeerUnreachable, w.peer, err)
	}
	if resp == nil || !resp.Ok {
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrPeerRejected, w.peer))
	}
	return nil
}
