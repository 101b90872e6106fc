package gfx

type submission struct {
	serial uint64
	fence  *Fence
}

func newQueue(d *Device, name string, family uint32) *Queue {
	pool, err := d.native.CreateCommandPool(family)
	d.check(err, "gfx.CreateCommandPool()")

	return &Queue{
		device: d,
		name:   name,
		family: family,
		handle: d.native.Queue(family, 0),
		pool:   pool,
	}
}

// Queue is a hardware queue with the command pool its command buffers
// are allocated from. Every submission gets a serial number, and a
// submission is retired once its fence is observed signaled or the
// queue or device has idled.
type Queue struct {
	device *Device
	name   string
	family uint32
	handle Handle
	pool   Handle

	submitted uint64
	completed uint64
	pending   []submission
}

// Name returns "graphics" or "transfer".
func (q *Queue) Name() string {
	return q.name
}

// Family returns the queue family index.
func (q *Queue) Family() uint32 {
	return q.family
}

// Native returns the driver handle.
func (q *Queue) Native() Handle {
	return q.handle
}

// CreateCommandBuffer allocates a command buffer from the queue's pool.
func (q *Queue) CreateCommandBuffer(level CommandBufferLevel) *CommandBuffer {
	native, err := q.device.native.AllocateCommandBuffer(q.pool, level)
	q.device.check(err, "gfx.AllocateCommandBuffers()")

	cb := &CommandBuffer{
		pool:   q,
		native: native,
		level:  level,
	}
	cb.init(q.device, "command buffer")
	return cb
}

// Submit queues primary command buffers for execution in order. The
// fence, when not nil, is signaled once all of them complete.
// Submission order determines only the order execution starts in.
func (q *Queue) Submit(fence *Fence, buffers ...*CommandBuffer) {
	natives := make([]NativeCommandBuffer, 0, len(buffers))
	for _, cb := range buffers {
		if cb.level != LevelPrimary {
			q.device.assertf("gfx: secondary command buffers cannot be submitted directly")
		}
		if cb.state != stateExecutable {
			q.device.assertf("gfx: submitting a command buffer that is not ended")
		}
		natives = append(natives, cb.native)
	}

	q.submitted++
	serial := q.submitted
	if q.device.trackUsage {
		for _, cb := range buffers {
			cb.markUsed(q, serial)
		}
	}

	var fenceHandle Handle
	if fence != nil {
		fence.pending = q
		fence.serial = serial
		fence.used(q, serial)
		fenceHandle = fence.handle
	}
	q.pending = append(q.pending, submission{serial: serial, fence: fence})

	q.device.check(q.device.native.QueueSubmit(q.handle, natives, fenceHandle), "gfx.QueueSubmit()")
}

// WaitIdle blocks until every submission to the queue completes.
func (q *Queue) WaitIdle() {
	q.device.check(q.device.native.QueueWaitIdle(q.handle), "gfx.QueueWaitIdle()")
	q.retireAll()
}

// Submitted returns the serial of the latest submission.
func (q *Queue) Submitted() uint64 {
	return q.submitted
}

// Completed returns the serial up to which submissions are known
// to have completed.
func (q *Queue) Completed() uint64 {
	return q.completed
}

// retired reports whether submission serial has completed, polling
// the fences of outstanding submissions when needed.
func (q *Queue) retired(serial uint64) bool {
	if serial <= q.completed {
		return true
	}
	for _, s := range q.pending {
		f := s.fence
		if f == nil || f.pending != q || f.serial != s.serial {
			continue
		}
		if q.device.native.FenceStatus(f.handle) == Success {
			f.pending = nil
			q.retire(s.serial)
		}
	}
	return serial <= q.completed
}

// retire marks every submission up to serial as completed. Fences
// signal in submission order on a queue.
func (q *Queue) retire(serial uint64) {
	if serial > q.completed {
		q.completed = serial
	}
	idx := 0
	for idx < len(q.pending) && q.pending[idx].serial <= q.completed {
		idx++
	}
	q.pending = q.pending[idx:]
}

func (q *Queue) retireAll() {
	q.retire(q.submitted)
}

func (q *Queue) destroy() {
	q.device.native.DestroyCommandPool(q.pool)
	q.pending = nil
}
