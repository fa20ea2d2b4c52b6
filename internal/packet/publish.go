package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/mqtt"
)

type PublishPacketFlag struct {
	RetryFlag bool
	QoS       byte
	Retain    bool
}

type PublishPacketPayloads struct {
	PacketFlag PublishPacketFlag
	TopicName  string
	PacketID   uint16
	Payload    []byte
}

// NewPublishPacket 构造 PUBLISH 控制包，QoS大于0时必须携带报文标识符
func NewPublishPacket(packetPayloads *PublishPacketPayloads) ([]byte, error) {
	if err := ValidateTopicName(packetPayloads.TopicName); err != nil {
		return nil, err
	}
	if err := ValidateQoS(packetPayloads.PacketFlag.QoS); err != nil {
		return nil, err
	}

	var flags byte
	if packetPayloads.PacketFlag.RetryFlag {
		flags |= 0x08
	}
	flags |= packetPayloads.PacketFlag.QoS << 1
	if packetPayloads.PacketFlag.Retain {
		flags |= 0x01
	}

	payload := make([]byte, 0, 4+len(packetPayloads.TopicName)+len(packetPayloads.Payload))
	payload = appendLengthPrefixed(payload, []byte(packetPayloads.TopicName))
	if packetPayloads.PacketFlag.QoS > 0 {
		if packetPayloads.PacketID == 0 {
			return nil, fmt.Errorf("publish packet with QoS %d requires a packet ID", packetPayloads.PacketFlag.QoS)
		}
		payload = append(payload, mqtt.UInt16ToByte(packetPayloads.PacketID)...)
	}
	payload = append(payload, packetPayloads.Payload...)

	return assemblePacket(mqtt.PUBLISH, flags, payload), nil
}

// ParsePublishPacket 解析 PUBLISH 控制包
func ParsePublishPacket(packet *mqtt.Packet) (*PublishPacketPayloads, error) {
	result := &PublishPacketPayloads{
		PacketFlag: PublishPacketFlag{
			RetryFlag: (packet.Header.Flags&0x08)>>3 == 1,
			QoS:       (packet.Header.Flags & 0x06) >> 1,
			Retain:    packet.Header.Flags&0x01 == 1,
		},
	}

	if result.PacketFlag.QoS == 0 && result.PacketFlag.RetryFlag {
		return result, fmt.Errorf("when QoS Level set to 0, retry flag must be set to 0 either")
	}

	if result.PacketFlag.QoS == 3 {
		return result, fmt.Errorf("the QoS Level must not set to 3")
	}

	payloadLength := packet.Header.RemainingLength

	topicName, err := readPacketPayload(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading topic name, details: %v", err)
	}
	result.TopicName = string(topicName.Payload)
	payloadLength -= 2 + topicName.PayloadLength

	if result.PacketFlag.QoS > 0 {
		packetId, err := readPacketBytes(packet.Payload, 2)
		if err != nil {
			return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
		}
		result.PacketID = binary.BigEndian.Uint16(packetId)
		payloadLength -= 2
	}

	// 消息内容允许为空
	if payloadLength > 0 {
		payload, err := readPacketBytes(packet.Payload, payloadLength)
		if err != nil {
			return result, fmt.Errorf("error occured when reading payload, details: %v", err)
		}
		result.Payload = payload
	}

	return result, nil
}
