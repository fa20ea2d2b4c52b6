package session

// 命令处理：校验、分配报文标识符、构造并发送控制包、登记在途操作
// 任何一步失败仅丢弃该命令并上报Error事件，会话保持连接

import (
	"fmt"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/packet"
)

func (s *Session) handleCommand(command Command) {
	switch cmd := command.(type) {
	case *SubscribeCommand:
		s.handleSubscribe(cmd)
	case *UnsubscribeCommand:
		s.handleUnsubscribe(cmd)
	case *PublishCommand:
		s.handlePublish(cmd)
	default:
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Unknown command type %T", command)})
	}
}

func (s *Session) handleSubscribe(cmd *SubscribeCommand) {
	if err := packet.ValidateQoS(cmd.QoS); err != nil {
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Invalid subscribe QoS %d: %v", cmd.QoS, err)})
		return
	}

	packetID, err := s.endpoint.AcquirePacketID()
	if err != nil {
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to acquire packet id: %v", err)})
		return
	}

	subscribePacket, err := packet.NewSubscribePacket(packetID, cmd.Topic, cmd.QoS)
	if err != nil {
		s.endpoint.ReleasePacketID(packetID)
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Invalid subscription topic %q: %v", cmd.Topic, err)})
		return
	}

	if err := s.endpoint.Send(subscribePacket); err != nil {
		s.endpoint.ReleasePacketID(packetID)
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send SUBSCRIBE: %v", err)})
		return
	}

	s.pending.addSubscribe(packetID, cmd.Topic, cmd.QoS)
}

func (s *Session) handleUnsubscribe(cmd *UnsubscribeCommand) {
	packetID, err := s.endpoint.AcquirePacketID()
	if err != nil {
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to acquire packet id: %v", err)})
		return
	}

	unsubscribePacket, err := packet.NewUnsubscribePacket(packetID, cmd.Topic)
	if err != nil {
		s.endpoint.ReleasePacketID(packetID)
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Invalid subscription topic %q: %v", cmd.Topic, err)})
		return
	}

	if err := s.endpoint.Send(unsubscribePacket); err != nil {
		s.endpoint.ReleasePacketID(packetID)
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send UNSUBSCRIBE: %v", err)})
		return
	}

	s.pending.addUnsubscribe(packetID, cmd.Topic)
}

func (s *Session) handlePublish(cmd *PublishCommand) {
	if err := packet.ValidateQoS(cmd.QoS); err != nil {
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Invalid publish QoS %d: %v", cmd.QoS, err)})
		return
	}

	payloads := &packet.PublishPacketPayloads{
		PacketFlag: packet.PublishPacketFlag{
			QoS:    cmd.QoS,
			Retain: cmd.Retain,
		},
		TopicName: cmd.Topic,
		Payload:   cmd.Payload,
	}

	// QoS 0不需要确认，发送即完成
	var packetID uint16
	if cmd.QoS > 0 {
		id, err := s.endpoint.AcquirePacketID()
		if err != nil {
			s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to acquire packet id: %v", err)})
			return
		}
		packetID = id
		payloads.PacketID = id
	}

	publishPacket, err := packet.NewPublishPacket(payloads)
	if err != nil {
		if cmd.QoS > 0 {
			s.endpoint.ReleasePacketID(packetID)
		}
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to build PUBLISH: %v", err)})
		return
	}

	if err := s.endpoint.Send(publishPacket); err != nil {
		if cmd.QoS > 0 {
			s.endpoint.ReleasePacketID(packetID)
		}
		s.events.Push(&ErrorEvent{Text: fmt.Sprintf("Failed to send PUBLISH: %v", err)})
		return
	}

	if cmd.QoS > 0 {
		s.pending.addPublish(packetID, cmd.Topic, cmd.QoS == 2)
	} else {
		s.events.Push(&PublishedEvent{Topic: cmd.Topic})
	}
}
