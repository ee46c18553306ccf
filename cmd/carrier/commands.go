package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	carrier "github.com/dep2p/go-carrier"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ============================================================================
//                              公共参数
// ============================================================================

// brokerFlags 连接 broker 需要的参数
type brokerFlags struct {
	key      string
	addr     string
	brokerID string
	timeout  time.Duration
}

func (f *brokerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.key, "key", "device.key", "设备密钥文件（不存在时生成）")
	fs.StringVar(&f.addr, "broker", "", "broker 地址，tcp:// 前缀使用 TCP")
	fs.StringVar(&f.brokerID, "broker-id", "", "broker 身份（Base58）")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Second, "连接超时")
}

// dial 按参数连接 broker
func (f *brokerFlags) dial(ctx context.Context) (*carrier.Client, error) {
	if f.addr == "" || f.brokerID == "" {
		return nil, errors.New("-broker and -broker-id are required")
	}
	brokerID, err := carrier.ParseIdentity(f.brokerID)
	if err != nil {
		return nil, fmt.Errorf("invalid -broker-id: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return carrier.Dial(ctx, f.addr, brokerID, carrier.WithKeyFile(f.key))
}

// connect 连接 broker 并建立路由
func (f *brokerFlags) connect(ctx context.Context, opts ...carrier.ConnectOption) (*carrier.Client, *carrier.Route, error) {
	c, err := f.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	route, err := c.Connect(cctx, opts...)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, route, nil
}

// ============================================================================
//                              子命令
// ============================================================================

func runKeygen(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "device.key", "密钥输出路径")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := carrier.LoadKey(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	k, err := carrier.GenerateKey()
	if err != nil {
		return err
	}
	if err := carrier.SaveKey(k, *path); err != nil {
		return err
	}
	fmt.Fprintln(out, k.ID())
	return nil
}

func runID(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("id", flag.ContinueOnError)
	path := fs.String("key", "device.key", "设备密钥文件")
	if err := fs.Parse(args); err != nil {
		return err
	}
	k, err := carrier.LoadKey(*path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, k.ID())
	return nil
}

func runPublish(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	var bf brokerFlags
	bf.register(fs)
	xaddr := fs.String("xaddr", "", "要发布的地址")
	shadow := fs.String("shadow", "", "shadow 标签")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *xaddr == "" {
		return errors.New("-xaddr is required")
	}

	c, route, err := bf.connect(ctx, carrier.WithPublish([]byte(*xaddr), []byte(*shadow)))
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Fprintf(out, "已发布 %s route=%d\n", c.Identity(), route.Handle)
	for _, p := range route.Paths {
		fmt.Fprintf(out, "  %-12s %s\n", p.Category, p.Address)
	}

	select {
	case <-ctx.Done():
		return route.Close()
	case <-route.PublishSuperseded():
		fmt.Fprintln(out, "发布已被取代")
		return route.Close()
	case <-route.Done():
		return route.Err()
	}
}

func runSubscribe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	var bf brokerFlags
	bf.register(fs)
	shadow := fs.String("shadow", "", "shadow 标签")
	ids := fs.String("identity", "", "只订阅这些身份（逗号分隔），为空订阅全部")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filters, err := parseFilters(*ids)
	if err != nil {
		return err
	}

	c, _, err := bf.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sub, err := c.Subscribe(ctx, []byte(*shadow), filters...)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Run(ctx, carrier.Handlers{
		OnPublish: func(id carrier.Identity, xaddr []byte) {
			fmt.Fprintf(out, "publish   %s %s\n", id, xaddr)
		},
		OnUnpublish: func(id carrier.Identity) {
			fmt.Fprintf(out, "unpublish %s\n", id)
		},
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runResolve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	var bf brokerFlags
	bf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: carrier resolve [flags] <identity>")
	}
	target, err := carrier.ParseIdentity(fs.Arg(0))
	if err != nil {
		return err
	}

	c, err := bf.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	rctx, cancel := context.WithTimeout(ctx, bf.timeout)
	defer cancel()
	res, err := c.Resolve(rctx, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "route=%d\n", res.Route)
	for _, p := range res.Paths {
		fmt.Fprintf(out, "  %-12s %s\n", p.Category, p.Address)
	}
	return nil
}

// parseFilters 把逗号分隔的身份列表转换为过滤器，为空时返回 nil
func parseFilters(s string) ([]types.Filter, error) {
	var filters []types.Filter
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := carrier.ParseIdentity(part)
		if err != nil {
			return nil, fmt.Errorf("invalid identity %q: %w", part, err)
		}
		filters = append(filters, types.IdentityFilter{Identity: id})
	}
	return filters, nil
}
