package packet

// 入站控制包的封闭联合类型
// 会话层对解码结果做类型分发，新增报文类型只需扩展Decode与分发的默认分支

import (
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// Inbound 表示一个已解码的入站控制包
type Inbound interface {
	inbound()
}

// ConnAck 连接确认
type ConnAck struct {
	ConnAckPayloads
}

// Publish 服务端下发的消息
type Publish struct {
	PublishPacketPayloads
}

// SubAck 订阅确认
type SubAck struct {
	SubAckPayloads
}

// UnsubAck 取消订阅确认
type UnsubAck struct {
	UnsubAckPayloads
}

// PubAck QoS 1发布确认
type PubAck struct {
	AckPayloads
}

// PubRec QoS 2发布收到
type PubRec struct {
	AckPayloads
}

// PubRel QoS 2发布释放
type PubRel struct {
	AckPayloads
}

// PubComp QoS 2发布完成
type PubComp struct {
	AckPayloads
}

// PingResp 心跳响应
type PingResp struct{}

// Disconnect 服务端主动断开
type Disconnect struct {
	DisconnectPayloads
}

// Unknown 无法识别或客户端不处理的控制包类型
type Unknown struct {
	Type mqtt.PacketType
}

func (*ConnAck) inbound()  {}
func (*Publish) inbound()  {}
func (*SubAck) inbound()   {}
func (*UnsubAck) inbound() {}
func (*PubAck) inbound()   {}
func (*PubRec) inbound()   {}
func (*PubRel) inbound()   {}
func (*PubComp) inbound()  {}
func (*PingResp) inbound() {}
func (*Disconnect) inbound() {}
func (*Unknown) inbound()  {}

// DecodeError 表示单个控制包解码失败
// 帧本身已完整读出，连接仍然可用，与传输层错误区分
type DecodeError struct {
	PacketType mqtt.PacketType
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fail to decode %s packet, details: %v", e.PacketType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode 将已读出的原始报文解码为具体的入站类型
func Decode(raw *mqtt.Packet) (Inbound, error) {
	switch raw.Header.Type {
	case mqtt.CONNACK:
		payloads, err := ParseConnAckPacket(raw)
		if err != nil {
			return nil, &DecodeError{PacketType: raw.Header.Type, Err: err}
		}
		return &ConnAck{ConnAckPayloads: *payloads}, nil
	case mqtt.PUBLISH:
		payloads, err := ParsePublishPacket(raw)
		if err != nil {
			return nil, &DecodeError{PacketType: raw.Header.Type, Err: err}
		}
		return &Publish{PublishPacketPayloads: *payloads}, nil
	case mqtt.SUBACK:
		payloads, err := ParseSubAckPacket(raw)
		if err != nil {
			return nil, &DecodeError{PacketType: raw.Header.Type, Err: err}
		}
		return &SubAck{SubAckPayloads: *payloads}, nil
	case mqtt.UNSUBACK:
		payloads, err := ParseUnsubAckPacket(raw)
		if err != nil {
			return nil, &DecodeError{PacketType: raw.Header.Type, Err: err}
		}
		return &UnsubAck{UnsubAckPayloads: *payloads}, nil
	case mqtt.PUBACK, mqtt.PUBREC, mqtt.PUBREL, mqtt.PUBCOMP:
		payloads, err := ParseAckPacket(raw)
		if err != nil {
			return nil, &DecodeError{PacketType: raw.Header.Type, Err: err}
		}
		switch raw.Header.Type {
		case mqtt.PUBACK:
			return &PubAck{AckPayloads: *payloads}, nil
		case mqtt.PUBREC:
			return &PubRec{AckPayloads: *payloads}, nil
		case mqtt.PUBREL:
			return &PubRel{AckPayloads: *payloads}, nil
		default:
			return &PubComp{AckPayloads: *payloads}, nil
		}
	case mqtt.PINGRESP:
		return &PingResp{}, nil
	case mqtt.DISCONNECT:
		return &Disconnect{DisconnectPayloads: *ParseDisconnectPacket(raw)}, nil
	default:
		return &Unknown{Type: raw.Header.Type}, nil
	}
}
