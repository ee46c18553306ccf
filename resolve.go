package carrier

import (
	"context"

	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Resolution 身份的当前路由
type Resolution struct {
	Route uint64
	Paths []types.Path
}

// Resolve 查询身份在 broker（或其联邦对端）上的当前路由
//
// 身份没有路由时返回 ErrNotFound。
func (c *Client) Resolve(ctx context.Context, id Identity) (Resolution, error) {
	st, err := c.open(ctx, protocolids.BrokerResolve)
	if err != nil {
		return Resolution{}, err
	}
	defer st.interrupt()
	unbind := st.bind(ctx)
	defer unbind()

	if err := st.WriteMsg(&pb.ResolveRequest{Identity: id.Bytes()}); err != nil {
		return Resolution{}, err
	}
	var resp pb.ResolveResponse
	if err := st.ReadMsg(&resp); err != nil {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		return Resolution{}, err
	}
	if !resp.Ok {
		return Resolution{}, ErrNotFound
	}
	return Resolution{Route: resp.Route, Paths: pb.PathsToTypes(resp.Paths)}, nil
}
