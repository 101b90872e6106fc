package gfx

import "sync/atomic"

// resource is embedded by every reference counted GPU object. It holds
// a reference to the owning device and, per queue, the last submission
// that used the object. These are checked when the object is destroyed.
type resource struct {
	device *Device
	kind   string
	refs   int32

	usage usage
}

func (r *resource) init(d *Device, kind string) {
	r.device = d
	r.kind = kind
	r.refs = 1
	d.retain()
}

// Retain adds a reference. Each Retain must be paired with a Release.
func (r *resource) Retain() {
	if atomic.AddInt32(&r.refs, 1) <= 1 {
		r.device.assertf("gfx: retain of a destroyed %s", r.kind)
	}
}

// References returns the current reference count.
func (r *resource) References() int {
	return int(atomic.LoadInt32(&r.refs))
}

// drop releases a reference and reports whether it was the last one.
// On the last reference it verifies that no unretired submission
// still uses the object.
func (r *resource) drop() bool {
	n := atomic.AddInt32(&r.refs, -1)
	switch {
	case n < 0:
		r.device.assertf("gfx: %s released more often than retained", r.kind)
	case n > 0:
		return false
	}
	if !r.device.trackUsage {
		return true
	}
	if s, ok := r.usage.inFlight(); ok {
		r.device.assertf("gfx: %s destroyed while submission %d on the %s queue is in flight",
			r.kind, s.serial, s.queue.name)
	}
	return true
}

// finish releases the device reference after native destruction.
func (r *resource) finish() {
	d := r.device
	r.usage = nil
	d.release()
}

// used records that submission serial on q references the object.
func (r *resource) used(q *Queue, serial uint64) {
	r.usage.record(q, serial)
}

type queueSerial struct {
	queue  *Queue
	serial uint64
}

// usage holds the latest submission serial for each queue an object
// was submitted on. Serials only order submissions within one queue.
type usage []queueSerial

func (u *usage) record(q *Queue, serial uint64) {
	for i := range *u {
		if (*u)[i].queue == q {
			(*u)[i].serial = max((*u)[i].serial, serial)
			return
		}
	}
	*u = append(*u, queueSerial{queue: q, serial: serial})
}

// inFlight returns a submission that has not retired yet.
func (u usage) inFlight() (queueSerial, bool) {
	for _, s := range u {
		if !s.queue.retired(s.serial) {
			return s, true
		}
	}
	return queueSerial{}, false
}

// tracker is anything a command buffer can tag with a submission.
type tracker interface {
	used(q *Queue, serial uint64)
}
