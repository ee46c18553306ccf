// Package carrier 是 carrier broker 的设备端客户端库
//
// 设备用长期 Ed25519 身份连接 broker，经过带时间戳的 Noise 握手后获得路由句柄；
// 之后可以在同一连接上发布自己的可达性、订阅其他身份的发布状态、解析其他身份的路径。
//
// # 快速开始
//
//	id, _ := carrier.GenerateKey()
//	c, err := carrier.Dial(ctx, "broker.example.com:7443", brokerID, carrier.WithIdentity(id))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	route, err := c.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer route.Close()
//
//	pub, _ := c.Publish(ctx, []byte("xaddr"), nil)
//	<-pub.Superseded()
//
// # API 分层
//
//	┌─────────────────────────────────────────────┐
//	│  Client      Dial / Connect / Resolve       │
//	├─────────────────────────────────────────────┤
//	│  Route  Publication  Subscription           │
//	├─────────────────────────────────────────────┤
//	│  framing + noise + transport (QUIC / TCP)   │
//	└─────────────────────────────────────────────┘
//
// 发布与订阅都要求连接上已有一条建立完成的路由。
// 任何一方被取代时（同一身份的新路由、新发布、同一来源的新订阅），
// 旧的一方收到 Supersede 并结束。
package carrier
