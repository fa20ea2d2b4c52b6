package session

// 表示层与会话之间的消息定义
// Command 由表示层发出、会话消费，Event 反向传递，两者均为不可变值

// Command 表示一个会话操作请求
type Command interface {
	command()
}

// SubscribeCommand 订阅单个主题过滤器
type SubscribeCommand struct {
	Topic string
	QoS   byte
}

// UnsubscribeCommand 取消订阅单个主题过滤器
type UnsubscribeCommand struct {
	Topic string
}

// PublishCommand 发布一条消息
type PublishCommand struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

func (*SubscribeCommand) command()   {}
func (*UnsubscribeCommand) command() {}
func (*PublishCommand) command()     {}

// Event 表示会话产生的一个状态通知
type Event interface {
	event()
}

// StatusEvent 非错误的状态说明
type StatusEvent struct {
	Text string
}

// ErrorEvent 单个操作失败，会话保持连接
type ErrorEvent struct {
	Text string
}

// ConnectedEvent 握手成功
type ConnectedEvent struct{}

// DisconnectedEvent 会话结束及其原因
type DisconnectedEvent struct {
	Reason string
}

// SubscribedEvent 订阅已被服务端确认
type SubscribedEvent struct {
	Topic   string
	QoS     byte
	Details string
}

// UnsubscribedEvent 取消订阅已被服务端确认
type UnsubscribedEvent struct {
	Topic   string
	Details string
}

// PublishedEvent 发布完成
// QoS 0在发送后立即产生且不携带报文标识符
type PublishedEvent struct {
	Topic       string
	PacketID    uint16
	HasPacketID bool
}

// MessageReceivedEvent 收到服务端下发的消息
type MessageReceivedEvent struct {
	Topic   string
	QoS     byte
	Retain  bool
	Payload []byte
}

func (*StatusEvent) event()          {}
func (*ErrorEvent) event()           {}
func (*ConnectedEvent) event()       {}
func (*DisconnectedEvent) event()    {}
func (*SubscribedEvent) event()      {}
func (*UnsubscribedEvent) event()    {}
func (*PublishedEvent) event()       {}
func (*MessageReceivedEvent) event() {}
