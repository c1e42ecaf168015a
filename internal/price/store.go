package price

import (
	"sort"
	"sync"
)

// Store holds historical price tables in memory. Minute rows are keyed
// by their exact unix timestamp, hourly rows by the hour floor.
type Store struct {
	mu        sync.RWMutex
	ethMinute map[int64]float64
	ethHourly map[int64]float64
	btcHourly map[int64]float64

	// sorted minute keys, rebuilt lazily for nearest lookups
	minuteKeys []int64
	keysDirty  bool
}

func NewStore() *Store {
	return &Store{
		ethMinute: make(map[int64]float64),
		ethHourly: make(map[int64]float64),
		btcHourly: make(map[int64]float64),
	}
}

func hourFloor(ts int64) int64 {
	return ts - ts%3600
}

// AddEthMinute records a minute-resolution ETH price. The first record
// for a timestamp wins.
func (s *Store) AddEthMinute(ts int64, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ethMinute[ts]; !ok {
		s.ethMinute[ts] = price
		s.keysDirty = true
	}
}

func (s *Store) AddEthHourly(ts int64, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hourFloor(ts)
	if _, ok := s.ethHourly[key]; !ok {
		s.ethHourly[key] = price
	}
}

func (s *Store) AddBtcHourly(ts int64, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hourFloor(ts)
	if _, ok := s.btcHourly[key]; !ok {
		s.btcHourly[key] = price
	}
}

// EthHourly returns the ETH price for the hour containing ts.
func (s *Store) EthHourly(ts int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.ethHourly[hourFloor(ts)]
	return price, ok
}

// BtcHourly returns the BTC price for the hour containing ts.
func (s *Store) BtcHourly(ts int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.btcHourly[hourFloor(ts)]
	return price, ok
}

// EthMinuteNearest returns the minute-resolution ETH price closest to ts,
// as long as it is within 60 seconds.
func (s *Store) EthMinuteNearest(ts int64) (float64, bool) {
	s.mu.Lock()
	if s.keysDirty {
		// Build a fresh slice so callers holding the previous one never
		// observe an in-place rebuild.
		rebuilt := make([]int64, 0, len(s.ethMinute))
		for key := range s.ethMinute {
			rebuilt = append(rebuilt, key)
		}
		sort.Slice(rebuilt, func(i, j int) bool { return rebuilt[i] < rebuilt[j] })
		s.minuteKeys = rebuilt
		s.keysDirty = false
	}
	keys := s.minuteKeys
	s.mu.Unlock()

	if len(keys) == 0 {
		return 0, false
	}

	idx := searchInt64(keys, ts)
	best := int64(-1)
	bestDiff := int64(61)
	for _, candidate := range neighborKeys(keys, idx) {
		diff := ts - candidate
		if diff < 0 {
			diff = -diff
		}
		if diff <= 60 && diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}
	if best < 0 {
		return 0, false
	}

	s.mu.RLock()
	price := s.ethMinute[best]
	s.mu.RUnlock()
	return price, true
}

func neighborKeys(keys []int64, idx int) []int64 {
	var out []int64
	if idx > 0 {
		out = append(out, keys[idx-1])
	}
	if idx < len(keys) {
		out = append(out, keys[idx])
	}
	return out
}

func searchInt64(keys []int64, target int64) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= target })
}
