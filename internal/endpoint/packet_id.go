package endpoint

import (
	"errors"
	"sync"
)

// PacketIDManager 管理单条连接上的报文标识符分配
// 标识符在收到对应确认前不得重复发放
type PacketIDManager struct {
	mu        sync.Mutex
	currentID uint16
	inUse     map[uint16]struct{}
}

func NewPacketIDManager() *PacketIDManager {
	return &PacketIDManager{
		currentID: 1, // 起始值为1，0为非法标识符
		inUse:     make(map[uint16]struct{}),
	}
}

// NextID 获取下一个可用ID，全部65535个ID均在使用中时返回错误
func (m *PacketIDManager) NextID() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.inUse) >= 65535 {
		return 0, errors.New("all packet identifiers are in flight")
	}

	for {
		id := m.currentID
		m.currentID++
		if m.currentID == 0 { // 溢出处理
			m.currentID = 1
		}
		if _, used := m.inUse[id]; !used {
			m.inUse[id] = struct{}{}
			return id, nil
		}
	}
}

// ReleaseID 释放ID（收到确认后调用）
func (m *PacketIDManager) ReleaseID(id uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inUse, id)
}
