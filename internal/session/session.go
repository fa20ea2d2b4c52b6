// Package session 实现了客户端侧的MQTT会话引擎
// 每个会话由一个专属工作协程驱动：完成握手后在关闭信号、
// 操作请求与入站控制包三个事件源之间循环，所有状态变化通过事件队列上报
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/endpoint"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/subscription"
)

// State 会话生命周期阶段
type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateConnected
	StateClosing
	StateClosed
)

var stateMap = map[State]string{
	StateConnecting:  "Connecting",
	StateHandshaking: "Handshaking",
	StateConnected:   "Connected",
	StateClosing:     "Closing",
	StateClosed:      "Closed",
}

func (s State) String() string {
	return stateMap[s]
}

// ErrSessionClosed 会话工作协程已退出，后续命令不再被处理
var ErrSessionClosed = errors.New("session closed")

// Options 会话的可选参数
type Options struct {
	ClientIDPrefix string
	KeepAlive      uint16        // 秒，0表示禁用心跳
	ConnectTimeout time.Duration // 建立连接的超时时间
}

const defaultConnectTimeout = 10 * time.Second

// Session 表示一次到服务端的连接尝试及其全部协议状态
// 可变状态仅由工作协程访问
type Session struct {
	clientID string
	login    *LoginData
	options  Options

	events   *EventQueue
	commands chan Command
	shutdown chan struct{}
	done     chan struct{}

	shutdownOnce sync.Once

	// 以下字段仅由工作协程访问
	state    State
	endpoint *endpoint.Endpoint
	pending  *pendingTable
	registry *subscription.Registry
}

type inboundResult struct {
	inbound packet.Inbound
	err     error
}

// Start 创建会话并启动其工作协程
func Start(login *LoginData, options Options) *Session {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = defaultConnectTimeout
	}
	s := &Session{
		clientID: NewClientID(options.ClientIDPrefix),
		login:    login,
		options:  options,
		events:   NewEventQueue(),
		commands: make(chan Command, 32),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateConnecting,
		pending:  newPendingTable(),
		registry: subscription.NewRegistry(),
	}
	go s.run()
	return s
}

// ClientID 返回本次会话使用的客户端标识符
func (s *Session) ClientID() string {
	return s.clientID
}

// Events 返回会话的事件队列，消费方周期性Drain
func (s *Session) Events() *EventQueue {
	return s.events
}

// Done 工作协程退出后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send 提交一个操作请求，工作协程已退出时返回ErrSessionClosed
func (s *Session) Send(command Command) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.commands <- command:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Shutdown 请求会话协作式关闭，工作协程在下一次循环观察到该信号
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}

func (s *Session) setState(state State) {
	logger.DebugF("[%s] Session state %s -> %s", s.clientID, s.state, state)
	s.state = state
}

// fail 发出终止事件并进入Closed状态，每个会话至多调用一次
func (s *Session) fail(format string, v ...interface{}) {
	reason := fmt.Sprintf(format, v...)
	logger.WarnF("[%s] Session failed: %s", s.clientID, reason)
	s.events.Push(&DisconnectedEvent{Reason: reason})
	s.setState(StateClosed)
}

func (s *Session) run() {
	defer close(s.done)

	s.events.Push(&StatusEvent{Text: "Connecting to broker..."})

	brokerURL, err := s.login.BrokerURL()
	if err != nil {
		s.fail("Address resolve failed: %v", err)
		return
	}

	ep, err := endpoint.Dial(brokerURL, s.options.ConnectTimeout)
	if err != nil {
		s.fail("Connect failed: %v", err)
		return
	}
	s.endpoint = ep
	// 所有退出路径均关闭连接
	defer func() {
		_ = ep.Close()
	}()

	s.setState(StateHandshaking)
	if !s.handshake() {
		return
	}

	s.setState(StateConnected)
	s.events.Push(&ConnectedEvent{})
	s.events.Push(&StatusEvent{Text: "Connected to " + brokerURL})

	s.loop()
}

// handshake 发送CONNECT并等待唯一的一个回复
// 任何构造、发送、接收失败或非CONNACK回复均为致命错误
func (s *Session) handshake() bool {
	connectPacket, err := packet.NewConnectPacket(&packet.ConnectOptions{
		ClientID:     s.clientID,
		KeepAlive:    s.options.KeepAlive,
		CleanSession: true,
		Username:     s.login.Username,
		Password:     s.login.Password,
		Will:         s.login.Will(),
	})
	if err != nil {
		s.fail("CONNECT build failed: %v", err)
		return false
	}

	if err := s.endpoint.Send(connectPacket); err != nil {
		s.fail("CONNECT send failed: %v", err)
		return false
	}

	reply, err := s.endpoint.Recv()
	if err != nil {
		s.fail("CONNACK recv failed: %v", err)
		return false
	}

	connack, ok := reply.(*packet.ConnAck)
	if !ok {
		s.fail("Expected CONNACK, got %s", inboundName(reply))
		return false
	}
	if connack.ReturnCode != packet.Accepted {
		s.fail("Connection refused: %s", connack.ReturnCode)
		return false
	}

	return true
}

// loop 会话事件循环，关闭信号具有严格优先级
func (s *Session) loop() {
	inboundCh := make(chan inboundResult)
	go s.receiveLoop(inboundCh)

	var keepAliveCh <-chan time.Time
	if s.options.KeepAlive > 0 {
		// 在Keep Alive周期的四分之三处发送心跳，留出传输余量
		interval := time.Duration(s.options.KeepAlive) * time.Second * 3 / 4
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		keepAliveCh = ticker.C
	}

	for {
		// 关闭信号不被命令或入站流量饿死
		select {
		case <-s.shutdown:
			s.close()
			return
		default:
		}

		select {
		case <-s.shutdown:
			s.close()
			return
		case command := <-s.commands:
			s.handleCommand(command)
		case result := <-inboundCh:
			if result.err != nil {
				var decodeErr *packet.DecodeError
				if errors.As(result.err, &decodeErr) {
					// 单个报文解码失败不影响会话
					s.events.Push(&ErrorEvent{Text: decodeErr.Error()})
					continue
				}
				s.fail("Receive loop failed: %v", result.err)
				return
			}
			if !s.handleInbound(result.inbound) {
				return
			}
		case <-keepAliveCh:
			if err := s.endpoint.Send(packet.NewPingReqPacket()); err != nil {
				s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PINGREQ: %v", err)})
			}
		}
	}
}

// receiveLoop 从连接读取并解码入站报文，仅做解码不触碰会话状态
func (s *Session) receiveLoop(inboundCh chan<- inboundResult) {
	for {
		inbound, err := s.endpoint.Recv()
		select {
		case inboundCh <- inboundResult{inbound: inbound, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			var decodeErr *packet.DecodeError
			if !errors.As(err, &decodeErr) {
				endpoint.HandleReadError(s.clientID, err)
				return
			}
		}
	}
}

// close 关闭信号触发的正常关闭路径
func (s *Session) close() {
	s.setState(StateClosing)
	if err := s.endpoint.Send(packet.NewDisconnectPacket()); err != nil {
		logger.WarnF("[%s] Fail to send DISCONNECT packet, details: %v", s.clientID, err)
	}
	_ = s.endpoint.Close()
	s.events.Push(&StatusEvent{Text: "Closed"})
	s.setState(StateClosed)
}
