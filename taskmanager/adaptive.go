package taskmanager

import "time"

// adaptiveLoop periodically samples the load signal and resizes the
// concurrency limit between MinConcurrent and the manager's ceiling.
// Permits already checked out are never revoked: a decrease is absorbed
// the next time a permit is released (see releasePermit), and an increase
// simply adds a new permit to the pool.
func (m *Manager) adaptiveLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.AdjustInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.rootCtx.Done():
			return
		case <-ticker.C:
			m.adjustOnce()
		}
	}
}

func (m *Manager) adjustOnce() {
	load := m.LoadSignal()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case load > m.cfg.CPUThreshold && m.currentLimit-m.pendingDecrease > m.cfg.MinConcurrent:
		select {
		case <-m.sem:
			m.currentLimit--
		default:
			m.pendingDecrease++
		}
	case load < m.cfg.CPUThreshold-m.cfg.Hysteresis && m.currentLimit < m.ceiling:
		select {
		case m.sem <- struct{}{}:
			m.currentLimit++
		default:
			// ceiling channel capacity reached; nothing to do until a
			// permit frees up.
		}
	}
}
