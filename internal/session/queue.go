package session

import "sync"

// EventQueue 无界事件队列
// 生产端（会话工作协程）永不阻塞，消费端周期性调用Drain取走全部事件
// 消费端停止轮询时事件仅随会话生命周期累积
type EventQueue struct {
	mu     sync.Mutex
	events []Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push 追加一个事件，永不阻塞
func (q *EventQueue) Push(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
}

// Drain 取走当前累积的全部事件，可能返回空切片
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}

// Len 返回当前未消费的事件数量
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
