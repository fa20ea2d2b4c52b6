// Package subscription 维护客户端当前生效的订阅及其授予QoS
// 仅在收到SUBACK/UNSUBACK确认后更新，发送订阅请求时不做预写
package subscription

import (
	"slices"
	"strings"
)

// TopicTreeNode 主题订阅树节点
type TopicTreeNode struct {
	Level string // 当前层级名称（如 "football"）

	// 直接子节点（精确匹配）
	// 示例：sport/football 的直接子节点是 live（对应路径 sport/football/live）
	Children map[string]*TopicTreeNode // key=子层级名称

	// 通配符子节点
	WildcardPlus *TopicTreeNode // "+" 通配符子节点（单层）
	WildcardHash []string       // "#" 通配符过滤器列表（多层）

	// 终端过滤器（当前路径的精确匹配订阅）
	Terminals []string
}

func newNode(level string) *TopicTreeNode {
	return &TopicTreeNode{
		Level:    level,
		Children: map[string]*TopicTreeNode{},
	}
}

// Registry 客户端订阅注册表：主题过滤器到授予QoS的映射
// 由会话消费方持有，配合通配符树回答"入站主题命中了哪些过滤器"
type Registry struct {
	root    *TopicTreeNode
	granted map[string]byte
}

func NewRegistry() *Registry {
	return &Registry{
		root:    newNode(""),
		granted: make(map[string]byte),
	}
}

// Set 记录过滤器的授予QoS，过滤器已存在时仅更新QoS
func (r *Registry) Set(filter string, qos byte) {
	if _, exists := r.granted[filter]; exists {
		r.granted[filter] = qos
		return
	}
	r.granted[filter] = qos
	r.insert(filter)
}

// Remove 删除过滤器，返回其是否存在
func (r *Registry) Remove(filter string) bool {
	if _, exists := r.granted[filter]; !exists {
		return false
	}
	delete(r.granted, filter)
	r.remove(filter)
	return true
}

// Get 查询过滤器的授予QoS
func (r *Registry) Get(filter string) (byte, bool) {
	qos, ok := r.granted[filter]
	return qos, ok
}

func (r *Registry) Len() int {
	return len(r.granted)
}

// Snapshot 返回当前订阅表的副本
func (r *Registry) Snapshot() map[string]byte {
	result := make(map[string]byte, len(r.granted))
	for filter, qos := range r.granted {
		result[filter] = qos
	}
	return result
}

func (r *Registry) insert(filter string) {
	levels := strings.Split(filter, "/")
	currentNode := r.root

	for i, level := range levels {
		if level == "#" {
			// 协议保证 # 只出现在最后一级
			if !slices.Contains(currentNode.WildcardHash, filter) {
				currentNode.WildcardHash = append(currentNode.WildcardHash, filter)
			}
			return
		}

		var nextNode *TopicTreeNode
		if level == "+" {
			if currentNode.WildcardPlus == nil {
				currentNode.WildcardPlus = newNode(level)
			}
			nextNode = currentNode.WildcardPlus
		} else {
			child, ok := currentNode.Children[level]
			if !ok {
				child = newNode(level)
				currentNode.Children[level] = child
			}
			nextNode = child
		}

		if i == len(levels)-1 && !slices.Contains(nextNode.Terminals, filter) {
			nextNode.Terminals = append(nextNode.Terminals, filter)
		}
		currentNode = nextNode
	}
}

func (r *Registry) remove(filter string) {
	levels := strings.Split(filter, "/")
	currentNode := r.root

	for _, level := range levels {
		if level == "#" {
			currentNode.WildcardHash = slices.DeleteFunc(currentNode.WildcardHash, func(f string) bool {
				return f == filter
			})
			return
		}

		var nextNode *TopicTreeNode
		if level == "+" {
			nextNode = currentNode.WildcardPlus
		} else {
			nextNode = currentNode.Children[level]
		}
		if nextNode == nil {
			return
		}
		currentNode = nextNode
	}

	currentNode.Terminals = slices.DeleteFunc(currentNode.Terminals, func(f string) bool {
		return f == filter
	})
}

// Match 返回覆盖该发布主题的所有已订阅过滤器
func (r *Registry) Match(publishTopic string) []string {
	// 拆分发布主题为层级数组
	levels := strings.Split(publishTopic, "/")
	var results []string

	queue := []*TopicTreeNode{r.root}

	for _, currentLevel := range levels {
		var nextQueue []*TopicTreeNode

		// 遍历当前层所有可能匹配的节点
		for _, node := range queue {
			// 1. 收集当前节点的 # 通配符过滤器
			results = append(results, node.WildcardHash...)

			// 2. 精确匹配子节点
			if childNode, ok := node.Children[currentLevel]; ok {
				nextQueue = append(nextQueue, childNode)
			}

			// 3. 处理 + 通配符子节点
			if node.WildcardPlus != nil {
				nextQueue = append(nextQueue, node.WildcardPlus)
			}
		}

		// 4. 更新队列为下一层节点
		queue = nextQueue

		// 提前终止：队列为空时无需继续
		if len(queue) == 0 {
			break
		}
	}

	// 5. 收集终端节点的精确过滤器
	for _, node := range queue {
		results = append(results, node.Terminals...)
		// "sport/#" 同样匹配 "sport" 本身
		results = append(results, node.WildcardHash...)
	}

	// 6. 去重
	seen := make(map[string]bool)
	finalResults := make([]string, 0)
	for _, filter := range results {
		if !seen[filter] {
			finalResults = append(finalResults, filter)
			seen[filter] = true
		}
	}

	return finalResults
}
