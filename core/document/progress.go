package document

import "sync"

// Progress maps storage keys to a percentage. Only 0 (started) and 100 (recorded) are used.
type Progress struct {
	mu sync.RWMutex
	m  map[string]int
}

func NewProgress() *Progress {
	return &Progress{m: make(map[string]int)}
}

func (p *Progress) Start(key string) { p.set(key, 0) }
func (p *Progress) Done(key string)  { p.set(key, 100) }

func (p *Progress) set(key string, pct int) {
	p.mu.Lock()
	p.m[key] = pct
	p.mu.Unlock()
}

// Snapshot returns a copy of the map.
func (p *Progress) Snapshot() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make(map[string]int, len(p.m))
	for k, v := range p.m {
		cp[k] = v
	}
	return cp
}
