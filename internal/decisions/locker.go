package decisions

import "sync"

// KeyedLocker hands out one mutex per (cohort, repository) key.
type KeyedLocker struct {
	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLocker constructs an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the key's mutex and returns the matching unlock function.
func (locker *KeyedLocker) Lock(cohort string, repository string) func() {
	key := cohort + "\x00" + repository

	locker.mutex.Lock()
	keyLock, exists := locker.locks[key]
	if !exists {
		keyLock = &sync.Mutex{}
		locker.locks[key] = keyLock
	}
	locker.mutex.Unlock()

	keyLock.Lock()
	return keyLock.Unlock
}
