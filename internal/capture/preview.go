package capture

import (
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Preview holds the most recent frame as JPEG for live viewers. Frames are
// only encoded while at least one viewer is watching.
type Preview struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	viewers atomic.Int32
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Update encodes frame when someone is watching.
func (p *Preview) Update(frame *gocv.Mat) {
	if p.viewers.Load() == 0 || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	defer buf.Close()

	p.Put(append([]byte(nil), buf.GetBytes()...))
}

// Put stores an already encoded JPEG.
func (p *Preview) Put(jpeg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = jpeg
	p.seq++
}

// Latest returns the newest JPEG and its sequence number. seq is 0 until
// the first frame arrives.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}

// Watch registers a viewer. Call the returned func to unregister.
func (p *Preview) Watch() func() {
	p.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { p.viewers.Add(-1) })
	}
}

// Viewers returns the number of registered viewers.
func (p *Preview) Viewers() int {
	return int(p.viewers.Load())
}
