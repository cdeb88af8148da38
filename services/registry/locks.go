package registry

import "sync"

// SlugLocks serialises publishes per slug: at most one in-flight publish for
// a given component, while unrelated slugs proceed concurrently. A lock is
// never held across a render call.
type SlugLocks struct {
	mu    sync.Mutex
	slugs map[string]*slugLock
}

type slugLock struct {
	mu   sync.Mutex
	refs int
}

// NewSlugLocks returns an empty lock table.
func NewSlugLocks() *SlugLocks {
	return &SlugLocks{slugs: make(map[string]*slugLock)}
}

// Lock acquires the critical section for slug and returns its release
// function. Entries are reference-counted so the table does not grow with
// the number of slugs ever seen.
func (l *SlugLocks) Lock(slug string) func() {
	l.mu.Lock()
	entry, ok := l.slugs[slug]
	if !ok {
		entry = &slugLock{}
		l.slugs[slug] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.slugs, slug)
		}
		l.mu.Unlock()
	}
}
