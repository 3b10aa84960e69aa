package kernel

// MsgQueue is a bounded FIFO of fixed-size items backed by a ring buffer.
// Send and Receive are safe from interrupt context only on their NoWait
// paths.
type MsgQueue struct {
	k            *Kernel
	producerWait taskQueue
	consumerWait taskQueue

	buf      []byte
	itemSize int
	length   int

	readIndex  int
	writeIndex int
	itemCount  int
}

// NewMsgQueue creates a message queue holding up to length items of itemSize
// bytes each.
func (k *Kernel) NewMsgQueue(length, itemSize int) *MsgQueue {
	if length <= 0 || itemSize <= 0 {
		panic("kernel: bad message queue geometry")
	}
	q := &MsgQueue{
		k:        k,
		buf:      make([]byte, length*itemSize),
		itemSize: itemSize,
		length:   length,
	}
	q.producerWait.class = classWait
	q.consumerWait.class = classWait
	return q
}

// write copies item into the ring and readies one waiting consumer.
// The caller holds the critical section.
func (q *MsgQueue) write(item []byte) {
	copy(q.buf[q.writeIndex:q.writeIndex+q.itemSize], item)
	q.writeIndex = (q.writeIndex + q.itemSize) % len(q.buf)
	q.itemCount++
	if c := q.consumerWait.pop(); c != nil {
		q.k.setReady(c, WakeQueueData)
	}
}

// read copies the oldest item out of the ring and readies one waiting
// producer. The caller holds the critical section.
func (q *MsgQueue) read(out []byte) {
	copy(out, q.buf[q.readIndex:q.readIndex+q.itemSize])
	q.readIndex = (q.readIndex + q.itemSize) % len(q.buf)
	q.itemCount--
	if p := q.producerWait.pop(); p != nil {
		q.k.setReady(p, WakeQueueSpace)
	}
}

// Send copies item into the queue, waiting up to waitTicks for space.
// len(item) must equal the queue's item size. Returns StatusFull when the
// queue is full and waitTicks is NoWait.
func (q *MsgQueue) Send(item []byte, waitTicks uint32) Status {
	if len(item) != q.itemSize {
		return StatusInvalid
	}
	k := q.k
	k.port.EnterCritical()
	if q.itemCount < q.length {
		q.write(item)
		k.port.ExitCritical()
		return StatusSuccess
	}
	if waitTicks == NoWait {
		k.port.ExitCritical()
		return StatusFull
	}
	cur := k.current
	q.producerWait.add(cur)
	k.port.ExitCritical()

	k.blockTask(cur, BlockQueueSpace, waitTicks)

	k.port.EnterCritical()
	st := StatusTimeout
	if cur.wakeReason == WakeQueueSpace && q.itemCount < q.length {
		q.write(item)
		st = StatusSuccess
	}
	k.port.ExitCritical()
	return st
}

// Receive copies the oldest item into out, waiting up to waitTicks for data.
// len(out) must equal the queue's item size. Returns StatusEmpty when the
// queue is empty and waitTicks is NoWait.
func (q *MsgQueue) Receive(out []byte, waitTicks uint32) Status {
	if len(out) != q.itemSize {
		return StatusInvalid
	}
	k := q.k
	k.port.EnterCritical()
	if q.itemCount > 0 {
		q.read(out)
		k.port.ExitCritical()
		return StatusSuccess
	}
	if waitTicks == NoWait {
		k.port.ExitCritical()
		return StatusEmpty
	}
	cur := k.current
	q.consumerWait.add(cur)
	k.port.ExitCritical()

	k.blockTask(cur, BlockQueueData, waitTicks)

	k.port.EnterCritical()
	st := StatusTimeout
	if cur.wakeReason == WakeQueueData && q.itemCount > 0 {
		q.read(out)
		st = StatusSuccess
	}
	k.port.ExitCritical()
	return st
}
