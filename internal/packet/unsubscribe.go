package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

// UnsubAckPayloads UNSUBACK控制包内容
type UnsubAckPayloads struct {
	PacketID uint16
}

// NewUnsubscribePacket 构造取消订阅单个主题过滤器的 UNSUBSCRIBE 控制包
func NewUnsubscribePacket(packetID uint16, topicFilter string) ([]byte, error) {
	if err := ValidateTopicFilter(topicFilter); err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 4+len(topicFilter))
	payload = append(payload, mqtt.UInt16ToByte(packetID)...)
	payload = appendLengthPrefixed(payload, []byte(topicFilter))

	return assemblePacket(mqtt.UNSUBSCRIBE, 0x02, payload), nil
}

// ParseUnsubAckPacket 解析 UNSUBACK 控制包
func ParseUnsubAckPacket(packet *mqtt.Packet) (*UnsubAckPayloads, error) {
	result := &UnsubAckPayloads{}

	packetID, err := readPacketBytes(packet.Payload, 2)
	if err != nil {
		return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
	}
	result.PacketID = binary.BigEndian.Uint16(packetID)

	return result, nil
}
