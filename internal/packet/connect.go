package packet

// 控制包类型 CONNECT / CONNACK 相关函数

import (
	"errors"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type ConnectRespType byte

const (
	Accepted ConnectRespType = iota
	UnacceptableProtocol
	IdentifierRejected
	ServerUnavailable
	AuthenticationFailed
	NotAuthorized
)

var connectRespMap = map[ConnectRespType]string{
	Accepted:             "connection accepted",
	UnacceptableProtocol: "unacceptable protocol version",
	IdentifierRejected:   "identifier rejected",
	ServerUnavailable:    "server unavailable",
	AuthenticationFailed: "bad user name or password",
	NotAuthorized:        "not authorized",
}

func (resp ConnectRespType) String() string {
	if name, ok := connectRespMap[resp]; ok {
		return name
	}
	return fmt.Sprintf("unknown return code %d", byte(resp))
}

// WillMessage CONNECT控制包中携带的遗嘱消息
type WillMessage struct {
	Topic   string
	Content []byte
	QoS     byte
	Retain  bool
}

// ConnectOptions 构造CONNECT控制包所需的全部字段
type ConnectOptions struct {
	ClientID     string
	KeepAlive    uint16
	CleanSession bool
	Username     string
	Password     string
	Will         *WillMessage
}

// ConnAckPayloads CONNACK控制包的可变头内容
type ConnAckPayloads struct {
	SessionPresent bool
	ReturnCode     ConnectRespType
}

// NewConnectPacket 构造 CONNECT 控制包
func NewConnectPacket(options *ConnectOptions) ([]byte, error) {
	if len(options.ClientID) == 0 {
		return nil, errors.New("client identifier must not be empty")
	}
	if len(options.Username) == 0 && len(options.Password) != 0 {
		return nil, errors.New("password must not be set without username")
	}

	var connectFlag byte
	if options.CleanSession {
		connectFlag |= 0x02
	}
	if options.Will != nil {
		if err := ValidateTopicName(options.Will.Topic); err != nil {
			return nil, fmt.Errorf("will topic: %w", err)
		}
		if err := ValidateQoS(options.Will.QoS); err != nil {
			return nil, fmt.Errorf("will QoS: %w", err)
		}
		connectFlag |= 0x04
		connectFlag |= options.Will.QoS << 3
		if options.Will.Retain {
			connectFlag |= 0x20
		}
	}
	if len(options.Username) != 0 {
		connectFlag |= 0x80
		if len(options.Password) != 0 {
			connectFlag |= 0x40
		}
	}

	// 可变头：协议名、协议版本、连接标志位、Keep Alive
	payload := make([]byte, 0, 12+len(options.ClientID))
	payload = appendLengthPrefixed(payload, []byte("MQTT"))
	payload = append(payload, 0x04, connectFlag)
	payload = append(payload, mqtt.UInt16ToByte(options.KeepAlive)...)

	// 负载字段顺序由协议规定：客户端标识符、遗嘱主题、遗嘱内容、用户名、密码
	payload = appendLengthPrefixed(payload, []byte(options.ClientID))
	if options.Will != nil {
		payload = appendLengthPrefixed(payload, []byte(options.Will.Topic))
		payload = appendLengthPrefixed(payload, options.Will.Content)
	}
	if len(options.Username) != 0 {
		payload = appendLengthPrefixed(payload, []byte(options.Username))
		if len(options.Password) != 0 {
			payload = appendLengthPrefixed(payload, []byte(options.Password))
		}
	}

	return assemblePacket(mqtt.CONNECT, 0x00, payload), nil
}

// ParseConnAckPacket 解析 CONNACK 控制包的可变头
func ParseConnAckPacket(packet *mqtt.Packet) (*ConnAckPayloads, error) {
	result := &ConnAckPayloads{}

	if packet.Header.RemainingLength < 2 {
		return result, errors.New("insufficient bytes for connack variable header")
	}

	ackFlag, err := readPacketByte(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading connect acknowledge flags, details: %v", err)
	}
	if ackFlag&0xFE != 0 {
		return result, fmt.Errorf("reserved bits of connect acknowledge flags must be 0, got %08b", ackFlag)
	}
	result.SessionPresent = ackFlag&0x01 == 1

	returnCode, err := readPacketByte(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading connect return code, details: %v", err)
	}
	result.ReturnCode = ConnectRespType(returnCode)

	return result, nil
}
