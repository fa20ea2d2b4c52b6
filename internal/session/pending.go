package session

// 在途操作表：报文标识符到操作上下文的映射
// 仅由会话工作协程读写，无需同步原语

type pendingSubscribe struct {
	topic string
	qos   byte
}

type pendingPublish struct {
	topic string
	// QoS 2的发布需要PUBREC/PUBREL/PUBCOMP两阶段确认
	twoPhase bool
}

type pendingTable struct {
	subscribes   map[uint16]pendingSubscribe
	unsubscribes map[uint16]string
	publishes    map[uint16]pendingPublish
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		subscribes:   make(map[uint16]pendingSubscribe),
		unsubscribes: make(map[uint16]string),
		publishes:    make(map[uint16]pendingPublish),
	}
}

func (t *pendingTable) addSubscribe(id uint16, topic string, qos byte) {
	t.subscribes[id] = pendingSubscribe{topic: topic, qos: qos}
}

func (t *pendingTable) addUnsubscribe(id uint16, topic string) {
	t.unsubscribes[id] = topic
}

func (t *pendingTable) addPublish(id uint16, topic string, twoPhase bool) {
	t.publishes[id] = pendingPublish{topic: topic, twoPhase: twoPhase}
}

// takeSubscribe 取出并删除在途订阅，确认只消费一次
func (t *pendingTable) takeSubscribe(id uint16) (pendingSubscribe, bool) {
	entry, ok := t.subscribes[id]
	if ok {
		delete(t.subscribes, id)
	}
	return entry, ok
}

func (t *pendingTable) takeUnsubscribe(id uint16) (string, bool) {
	topic, ok := t.unsubscribes[id]
	if ok {
		delete(t.unsubscribes, id)
	}
	return topic, ok
}

func (t *pendingTable) takePublish(id uint16) (pendingPublish, bool) {
	entry, ok := t.publishes[id]
	if ok {
		delete(t.publishes, id)
	}
	return entry, ok
}

// getPublish 查询在途发布但保留条目，供PUBREC流程使用
func (t *pendingTable) getPublish(id uint16) (pendingPublish, bool) {
	entry, ok := t.publishes[id]
	return entry, ok
}

// has 检查标识符是否存在于任意一张表中
func (t *pendingTable) has(id uint16) bool {
	if _, ok := t.subscribes[id]; ok {
		return true
	}
	if _, ok := t.unsubscribes[id]; ok {
		return true
	}
	_, ok := t.publishes[id]
	return ok
}

func (t *pendingTable) size() int {
	return len(t.subscribes) + len(t.unsubscribes) + len(t.publishes)
}
