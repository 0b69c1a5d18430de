package broker

// Broker is a topic membership index: which members currently listen on
// which topics. A topic exists only while it has members.
//
// Broker does no locking; the owner serialises access.
type Broker[T comparable, M comparable] struct {
	topics map[T]map[M]struct{}
}

func New[T comparable, M comparable]() *Broker[T, M] {
	return &Broker[T, M]{
		topics: make(map[T]map[M]struct{}),
	}
}

// Join adds member to topic and reports whether it was newly added.
func (b *Broker[T, M]) Join(topic T, member M) bool {
	members, ok := b.topics[topic]
	if !ok {
		members = make(map[M]struct{})
		b.topics[topic] = members
	}
	if _, exists := members[member]; exists {
		return false
	}
	members[member] = struct{}{}
	return true
}

// Leave removes member from topic and reports whether it was a member.
// Empty topics are dropped.
func (b *Broker[T, M]) Leave(topic T, member M) bool {
	members, ok := b.topics[topic]
	if !ok {
		return false
	}
	if _, exists := members[member]; !exists {
		return false
	}
	delete(members, member)
	if len(members) == 0 {
		delete(b.topics, topic)
	}
	return true
}

// Members returns a snapshot of the topic's members.
func (b *Broker[T, M]) Members(topic T) []M {
	members := b.topics[topic]
	out := make([]M, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out
}

// IsMember reports whether member currently listens on topic.
func (b *Broker[T, M]) IsMember(topic T, member M) bool {
	_, ok := b.topics[topic][member]
	return ok
}

// Has reports whether topic has at least one member.
func (b *Broker[T, M]) Has(topic T) bool {
	_, ok := b.topics[topic]
	return ok
}

// Len returns the number of live topics.
func (b *Broker[T, M]) Len() int {
	return len(b.topics)
}
