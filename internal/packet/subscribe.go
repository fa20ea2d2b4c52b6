package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type SubscribeState byte

const (
	SuccessQos0 SubscribeState = iota
	SuccessQos1
	SuccessQos2
	Failure SubscribeState = 0x80
)

// SubAckPayloads SUBACK控制包内容
type SubAckPayloads struct {
	PacketID    uint16
	ReturnCodes []SubscribeState
}

// NewSubscribePacket 构造订阅单个主题过滤器的 SUBSCRIBE 控制包
func NewSubscribePacket(packetID uint16, topicFilter string, qos byte) ([]byte, error) {
	if err := ValidateTopicFilter(topicFilter); err != nil {
		return nil, err
	}
	if err := ValidateQoS(qos); err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 5+len(topicFilter))
	payload = append(payload, mqtt.UInt16ToByte(packetID)...)
	payload = appendLengthPrefixed(payload, []byte(topicFilter))
	payload = append(payload, qos)

	return assemblePacket(mqtt.SUBSCRIBE, 0x02, payload), nil
}

// ParseSubAckPacket 解析 SUBACK 控制包
func ParseSubAckPacket(packet *mqtt.Packet) (*SubAckPayloads, error) {
	result := &SubAckPayloads{}

	packetID, err := readPacketBytes(packet.Payload, 2)
	if err != nil {
		return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
	}
	result.PacketID = binary.BigEndian.Uint16(packetID)

	for packet.Payload.CheckRemainingLength() {
		code, err := readPacketByte(packet.Payload)
		if err != nil {
			return result, fmt.Errorf("error occured when reading return code, details: %v", err)
		}
		result.ReturnCodes = append(result.ReturnCodes, SubscribeState(code))
	}
	if len(result.ReturnCodes) == 0 {
		return result, fmt.Errorf("suback packet %d carries no return code", result.PacketID)
	}

	return result, nil
}

// GrantedQoS 返回首个过滤器被授予的QoS等级，订阅失败时返回错误
func (payloads *SubAckPayloads) GrantedQoS() (byte, error) {
	state := payloads.ReturnCodes[0]
	if state == Failure {
		return 0, fmt.Errorf("broker rejected subscription, packet ID %d", payloads.PacketID)
	}
	return byte(state), nil
}
