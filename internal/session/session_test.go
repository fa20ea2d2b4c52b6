package session

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
)

const waitTimeout = 3 * time.Second

// stubBroker 测试用的服务端桩，直接以原始字节收发控制包
type stubBroker struct {
	t    *testing.T
	ln   net.Listener
	conn net.Conn
}

func newStubBroker(t *testing.T) *stubBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听失败: %v", err)
	}
	b := &stubBroker{t: t, ln: ln}
	t.Cleanup(b.close)
	return b
}

func (b *stubBroker) port() uint16 {
	return uint16(b.ln.Addr().(*net.TCPAddr).Port)
}

// acceptAndHandshake 接受连接，校验CONNECT并回复接受的CONNACK
func (b *stubBroker) acceptAndHandshake() {
	b.t.Helper()
	_ = b.ln.(*net.TCPListener).SetDeadline(time.Now().Add(waitTimeout))
	conn, err := b.ln.Accept()
	if err != nil {
		b.t.Fatalf("接受连接失败: %v", err)
	}
	b.conn = conn

	connect := b.readPacket()
	if connect.Header.Type != mqtt.CONNECT {
		b.t.Fatalf("期望CONNECT 实际=%s", connect.Header.Type)
	}
	b.send([]byte{0x20, 0x02, 0x00, 0x00})
}

func (b *stubBroker) readPacket() *mqtt.Packet {
	b.t.Helper()
	_ = b.conn.SetReadDeadline(time.Now().Add(waitTimeout))
	p, err := mqtt.ReadPacket(b.conn)
	if err != nil {
		b.t.Fatalf("读取报文失败: %v", err)
	}
	return p
}

func (b *stubBroker) send(raw []byte) {
	b.t.Helper()
	if _, err := b.conn.Write(raw); err != nil {
		b.t.Fatalf("发送失败: %v", err)
	}
}

func (b *stubBroker) close() {
	if b.conn != nil {
		_ = b.conn.Close()
	}
	_ = b.ln.Close()
}

// packetID 读取确认类、订阅类报文可变头开头的报文标识符
func packetID(p *mqtt.Packet) uint16 {
	return mqtt.ByteToUInt16(p.Payload.Context[:2])
}

// eventCollector 轮询会话事件队列并累积全部事件
type eventCollector struct {
	t       *testing.T
	session *Session
	events  []Event
	cursor  int
}

func newEventCollector(t *testing.T, s *Session) *eventCollector {
	return &eventCollector{t: t, session: s}
}

func (c *eventCollector) drain() {
	c.events = append(c.events, c.session.Events().Drain()...)
}

// waitFor 等待一个满足条件的事件，后续等待从其之后继续
func (c *eventCollector) waitFor(desc string, match func(Event) bool) Event {
	c.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		c.drain()
		for c.cursor < len(c.events) {
			ev := c.events[c.cursor]
			c.cursor++
			if match(ev) {
				return ev
			}
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("等待%s超时，已收到事件: %#v", desc, c.events)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// assertNone 断言目前为止未出现满足条件的事件
func (c *eventCollector) assertNone(desc string, match func(Event) bool) {
	c.t.Helper()
	c.drain()
	for _, ev := range c.events {
		if match(ev) {
			c.t.Fatalf("不应出现%s，实际: %#v", desc, ev)
		}
	}
}

func isConnected(ev Event) bool {
	_, ok := ev.(*ConnectedEvent)
	return ok
}

func startConnectedSession(t *testing.T) (*Session, *stubBroker, *eventCollector) {
	t.Helper()
	broker := newStubBroker(t)
	sess := Start(&LoginData{Host: "127.0.0.1", Port: broker.port()}, Options{
		ConnectTimeout: waitTimeout,
	})
	t.Cleanup(sess.Shutdown)
	broker.acceptAndHandshake()

	collector := newEventCollector(t, sess)
	collector.waitFor("Connected事件", isConnected)
	return sess, broker, collector
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("等待工作协程退出超时")
	}
}

func TestConnectFailure(t *testing.T) {
	// 占用端口后立即关闭，确保连接被拒绝
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听失败: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	_ = ln.Close()

	sess := Start(&LoginData{Host: "127.0.0.1", Port: port}, Options{
		ConnectTimeout: time.Second,
	})
	waitDone(t, sess)

	collector := newEventCollector(t, sess)
	ev := collector.waitFor("Disconnected事件", func(ev Event) bool {
		_, ok := ev.(*DisconnectedEvent)
		return ok
	})
	if !strings.Contains(ev.(*DisconnectedEvent).Reason, "Connect failed") {
		t.Errorf("期望原因包含Connect failed 实际=%s", ev.(*DisconnectedEvent).Reason)
	}
}

func TestHandshakeRejected(t *testing.T) {
	broker := newStubBroker(t)
	sess := Start(&LoginData{Host: "127.0.0.1", Port: broker.port()}, Options{
		ConnectTimeout: waitTimeout,
	})

	_ = broker.ln.(*net.TCPListener).SetDeadline(time.Now().Add(waitTimeout))
	conn, err := broker.ln.Accept()
	if err != nil {
		t.Fatalf("接受连接失败: %v", err)
	}
	broker.conn = conn
	broker.readPacket()
	// 返回码5：未授权
	broker.send([]byte{0x20, 0x02, 0x00, 0x05})

	waitDone(t, sess)
	collector := newEventCollector(t, sess)
	ev := collector.waitFor("Disconnected事件", func(ev Event) bool {
		_, ok := ev.(*DisconnectedEvent)
		return ok
	})
	if !strings.Contains(ev.(*DisconnectedEvent).Reason, "not authorized") {
		t.Errorf("期望原因包含not authorized 实际=%s", ev.(*DisconnectedEvent).Reason)
	}
	collector.assertNone("Connected事件", isConnected)
}

// 场景A：订阅在收到SUBACK后产生唯一一个Subscribed事件并更新订阅表
func TestSubscribeAck(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	if err := sess.Send(&SubscribeCommand{Topic: "sensors/temp", QoS: 1}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}

	subscribe := broker.readPacket()
	if subscribe.Header.Type != mqtt.SUBSCRIBE {
		t.Fatalf("期望SUBSCRIBE 实际=%s", subscribe.Header.Type)
	}
	id := packetID(subscribe)

	// 确认到达前不得产生Subscribed事件
	collector.assertNone("Subscribed事件", func(ev Event) bool {
		_, ok := ev.(*SubscribedEvent)
		return ok
	})

	broker.send([]byte{0x90, 0x03, byte(id >> 8), byte(id), 0x01})

	ev := collector.waitFor("Subscribed事件", func(ev Event) bool {
		_, ok := ev.(*SubscribedEvent)
		return ok
	})
	subscribed := ev.(*SubscribedEvent)
	if subscribed.Topic != "sensors/temp" || subscribed.QoS != 1 {
		t.Errorf("期望topic=sensors/temp qos=1 实际=%+v", subscribed)
	}

	if qos, ok := sess.registry.Get("sensors/temp"); !ok || qos != 1 {
		t.Errorf("订阅表未更新: qos=%d 存在=%v", qos, ok)
	}
}

// 场景B：QoS 2发布经过PUBREC/PUBREL/PUBCOMP后产生唯一一个Published事件
func TestPublishQoS2RoundTrip(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	if err := sess.Send(&PublishCommand{
		Topic:   "sensors/temp",
		Payload: []byte("22.5"),
		QoS:     2,
	}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}

	publish, err := packet.ParsePublishPacket(broker.readPacket())
	if err != nil {
		t.Fatalf("解析PUBLISH失败: %v", err)
	}
	id := publish.PacketID

	broker.send([]byte{0x50, 0x02, byte(id >> 8), byte(id)})

	pubrel := broker.readPacket()
	if pubrel.Header.Type != mqtt.PUBREL {
		t.Fatalf("期望PUBREL 实际=%s", pubrel.Header.Type)
	}
	if packetID(pubrel) != id {
		t.Fatalf("PUBREL报文标识符不一致: 期望=%d 实际=%d", id, packetID(pubrel))
	}

	// PUBCOMP之前不得产生Published事件
	collector.assertNone("Published事件", func(ev Event) bool {
		_, ok := ev.(*PublishedEvent)
		return ok
	})

	broker.send([]byte{0x70, 0x02, byte(id >> 8), byte(id)})

	ev := collector.waitFor("Published事件", func(ev Event) bool {
		_, ok := ev.(*PublishedEvent)
		return ok
	})
	published := ev.(*PublishedEvent)
	if !published.HasPacketID || published.PacketID != id {
		t.Errorf("期望报文标识符=%d 实际=%+v", id, published)
	}

	// 确认只产生一个Published事件
	time.Sleep(50 * time.Millisecond)
	collector.drain()
	count := 0
	for _, ev := range collector.events {
		if _, ok := ev.(*PublishedEvent); ok {
			count++
		}
	}
	if count != 1 {
		t.Errorf("期望Published事件数=1 实际=%d", count)
	}
}

// QoS 0发布同步完成，不携带报文标识符，不登记在途操作
func TestPublishQoS0(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	if err := sess.Send(&PublishCommand{Topic: "a/b", Payload: []byte("x")}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}

	publish, err := packet.ParsePublishPacket(broker.readPacket())
	if err != nil {
		t.Fatalf("解析PUBLISH失败: %v", err)
	}
	if publish.PacketID != 0 {
		t.Errorf("QoS 0不应携带报文标识符，实际=%d", publish.PacketID)
	}

	ev := collector.waitFor("Published事件", func(ev Event) bool {
		_, ok := ev.(*PublishedEvent)
		return ok
	})
	if ev.(*PublishedEvent).HasPacketID {
		t.Error("QoS 0的Published事件不应携带报文标识符")
	}
}

// 场景C：入站QoS 1消息产生MessageReceived事件并以原标识符应答PUBACK
func TestInboundPublishQoS1(t *testing.T) {
	_, broker, collector := startConnectedSession(t)

	raw, err := packet.NewPublishPacket(&packet.PublishPacketPayloads{
		PacketFlag: packet.PublishPacketFlag{QoS: 1},
		TopicName:  "sensors/temp",
		PacketID:   5,
		Payload:    []byte("hi"),
	})
	if err != nil {
		t.Fatalf("构造PUBLISH失败: %v", err)
	}
	broker.send(raw)

	ev := collector.waitFor("MessageReceived事件", func(ev Event) bool {
		_, ok := ev.(*MessageReceivedEvent)
		return ok
	})
	message := ev.(*MessageReceivedEvent)
	if message.Topic != "sensors/temp" || message.QoS != 1 || string(message.Payload) != "hi" {
		t.Errorf("消息内容错误: %+v", message)
	}

	puback := broker.readPacket()
	if puback.Header.Type != mqtt.PUBACK {
		t.Fatalf("期望PUBACK 实际=%s", puback.Header.Type)
	}
	if packetID(puback) != 5 {
		t.Errorf("期望报文标识符=5 实际=%d", packetID(puback))
	}
}

// 入站QoS 2消息应答PUBREC，收到PUBREL后应答PUBCOMP
func TestInboundPublishQoS2(t *testing.T) {
	_, broker, collector := startConnectedSession(t)

	raw, err := packet.NewPublishPacket(&packet.PublishPacketPayloads{
		PacketFlag: packet.PublishPacketFlag{QoS: 2},
		TopicName:  "sensors/temp",
		PacketID:   9,
		Payload:    []byte("22.5"),
	})
	if err != nil {
		t.Fatalf("构造PUBLISH失败: %v", err)
	}
	broker.send(raw)

	collector.waitFor("MessageReceived事件", func(ev Event) bool {
		_, ok := ev.(*MessageReceivedEvent)
		return ok
	})

	pubrec := broker.readPacket()
	if pubrec.Header.Type != mqtt.PUBREC || packetID(pubrec) != 9 {
		t.Fatalf("期望PUBREC(9) 实际=%s(%d)", pubrec.Header.Type, packetID(pubrec))
	}

	broker.send([]byte{0x62, 0x02, 0x00, 0x09})
	pubcomp := broker.readPacket()
	if pubcomp.Header.Type != mqtt.PUBCOMP || packetID(pubcomp) != 9 {
		t.Fatalf("期望PUBCOMP(9) 实际=%s(%d)", pubcomp.Header.Type, packetID(pubcomp))
	}
}

// 场景D：服务端主动断开，Disconnected为最后一个事件且工作协程退出
func TestBrokerDisconnect(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	broker.send([]byte{0xE0, 0x01, 0x8B})
	waitDone(t, sess)

	collector.drain()
	if len(collector.events) == 0 {
		t.Fatal("未收到任何事件")
	}
	last := collector.events[len(collector.events)-1]
	disconnected, ok := last.(*DisconnectedEvent)
	if !ok {
		t.Fatalf("期望最后一个事件为Disconnected 实际=%#v", last)
	}
	if !strings.Contains(disconnected.Reason, "server shutting down") {
		t.Errorf("期望原因包含server shutting down 实际=%s", disconnected.Reason)
	}

	if err := sess.Send(&PublishCommand{Topic: "a/b"}); err != ErrSessionClosed {
		t.Errorf("会话结束后Send应返回ErrSessionClosed 实际=%v", err)
	}
}

// 关闭信号后不再处理命令，最后一个事件为关闭状态
func TestShutdownOrdering(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	sess.Shutdown()
	waitDone(t, sess)

	disconnect := broker.readPacket()
	if disconnect.Header.Type != mqtt.DISCONNECT {
		t.Errorf("期望DISCONNECT 实际=%s", disconnect.Header.Type)
	}

	collector.drain()
	last := collector.events[len(collector.events)-1]
	status, ok := last.(*StatusEvent)
	if !ok || status.Text != "Closed" {
		t.Errorf("期望最后一个事件为Status(Closed) 实际=%#v", last)
	}

	if err := sess.Send(&SubscribeCommand{Topic: "a/b", QoS: 0}); err != ErrSessionClosed {
		t.Errorf("会话结束后Send应返回ErrSessionClosed 实际=%v", err)
	}
}

// 取消订阅从未订阅的主题：报文照常发送，错误标识符的确认只产生Status事件
func TestUnsubscribeUnknownTopic(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	if err := sess.Send(&UnsubscribeCommand{Topic: "never/subscribed"}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}

	unsubscribe := broker.readPacket()
	if unsubscribe.Header.Type != mqtt.UNSUBSCRIBE {
		t.Fatalf("期望UNSUBSCRIBE 实际=%s", unsubscribe.Header.Type)
	}
	id := packetID(unsubscribe)

	// 回复错误的报文标识符
	wrong := id + 1
	broker.send([]byte{0xB0, 0x02, byte(wrong >> 8), byte(wrong)})

	collector.waitFor("Status事件", func(ev Event) bool {
		status, ok := ev.(*StatusEvent)
		return ok && strings.Contains(status.Text, "unknown packet id")
	})
	collector.assertNone("Error事件", func(ev Event) bool {
		_, ok := ev.(*ErrorEvent)
		return ok
	})

	// 正确的确认仍然生效
	broker.send([]byte{0xB0, 0x02, byte(id >> 8), byte(id)})
	ev := collector.waitFor("Unsubscribed事件", func(ev Event) bool {
		_, ok := ev.(*UnsubscribedEvent)
		return ok
	})
	if ev.(*UnsubscribedEvent).Topic != "never/subscribed" {
		t.Errorf("期望topic=never/subscribed 实际=%+v", ev)
	}
}

// 非法QoS只产生Error事件，会话保持连接
func TestInvalidSubscribeQoS(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	if err := sess.Send(&SubscribeCommand{Topic: "a/b", QoS: 5}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}

	collector.waitFor("Error事件", func(ev Event) bool {
		errEvent, ok := ev.(*ErrorEvent)
		return ok && strings.Contains(errEvent.Text, "Invalid subscribe QoS")
	})

	// 会话仍可用
	if err := sess.Send(&PublishCommand{Topic: "a/b", Payload: []byte("x")}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}
	publish := broker.readPacket()
	if publish.Header.Type != mqtt.PUBLISH {
		t.Errorf("期望PUBLISH 实际=%s", publish.Header.Type)
	}
}

// 同一时刻所有在途操作的报文标识符互不相同
func TestPacketIDUniqueness(t *testing.T) {
	sess, broker, _ := startConnectedSession(t)

	commands := []Command{
		&SubscribeCommand{Topic: "a/1", QoS: 1},
		&SubscribeCommand{Topic: "a/2", QoS: 2},
		&UnsubscribeCommand{Topic: "a/3"},
		&PublishCommand{Topic: "a/4", Payload: []byte("x"), QoS: 1},
		&PublishCommand{Topic: "a/5", Payload: []byte("y"), QoS: 2},
	}
	for _, command := range commands {
		if err := sess.Send(command); err != nil {
			t.Fatalf("提交命令失败: %v", err)
		}
	}

	seen := make(map[uint16]bool)
	for range commands {
		p := broker.readPacket()
		var id uint16
		if p.Header.Type == mqtt.PUBLISH {
			publish, err := packet.ParsePublishPacket(p)
			if err != nil {
				t.Fatalf("解析PUBLISH失败: %v", err)
			}
			id = publish.PacketID
		} else {
			id = packetID(p)
		}
		if seen[id] {
			t.Fatalf("报文标识符%d重复发放", id)
		}
		seen[id] = true
	}
}

// 心跳按Keep Alive周期的四分之三发送，PINGRESP只产生Status事件
func TestKeepAlivePing(t *testing.T) {
	broker := newStubBroker(t)
	sess := Start(&LoginData{Host: "127.0.0.1", Port: broker.port()}, Options{
		KeepAlive:      1,
		ConnectTimeout: waitTimeout,
	})
	t.Cleanup(sess.Shutdown)
	broker.acceptAndHandshake()

	collector := newEventCollector(t, sess)
	collector.waitFor("Connected事件", isConnected)

	pingreq := broker.readPacket()
	if pingreq.Header.Type != mqtt.PINGREQ {
		t.Fatalf("期望PINGREQ 实际=%s", pingreq.Header.Type)
	}
	if pingreq.Header.RemainingLength != 0 {
		t.Errorf("PINGREQ剩余长度应为0 实际=%d", pingreq.Header.RemainingLength)
	}

	broker.send([]byte{0xD0, 0x00})
	collector.waitFor("Status事件", func(ev Event) bool {
		status, ok := ev.(*StatusEvent)
		return ok && strings.Contains(status.Text, "PINGRESP")
	})
	collector.assertNone("Error事件", func(ev Event) bool {
		_, ok := ev.(*ErrorEvent)
		return ok
	})

	// 心跳不影响会话的正常收发
	if err := sess.Send(&PublishCommand{Topic: "a/b", Payload: []byte("x")}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}
	for {
		p := broker.readPacket()
		if p.Header.Type == mqtt.PINGREQ {
			continue
		}
		if p.Header.Type != mqtt.PUBLISH {
			t.Errorf("期望PUBLISH 实际=%s", p.Header.Type)
		}
		break
	}
}

// 单个报文解码失败只产生Error事件，会话保持连接
func TestDecodeErrorRecoverable(t *testing.T) {
	sess, broker, collector := startConnectedSession(t)

	// 截断的SUBACK：剩余长度1，无法读出报文标识符
	broker.send([]byte{0x90, 0x01, 0x00})

	collector.waitFor("Error事件", func(ev Event) bool {
		errEvent, ok := ev.(*ErrorEvent)
		return ok && strings.Contains(errEvent.Text, "SUBACK")
	})

	select {
	case <-sess.Done():
		t.Fatal("解码失败不应终止会话")
	default:
	}

	// 会话仍可正常收发
	if err := sess.Send(&PublishCommand{Topic: "a/b", Payload: []byte("x")}); err != nil {
		t.Fatalf("提交命令失败: %v", err)
	}
	publish := broker.readPacket()
	if publish.Header.Type != mqtt.PUBLISH {
		t.Errorf("期望PUBLISH 实际=%s", publish.Header.Type)
	}
}
