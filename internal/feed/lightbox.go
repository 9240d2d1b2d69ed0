package feed

import (
	"sync"
)

// ScrollLock pins the page underneath an open modal. It is reference
// counted so nested holders release independently.
type ScrollLock struct {
	mu    sync.Mutex
	holds int
}

// Acquire takes a hold and returns its release func. Calling release more
// than once has no further effect.
func (l *ScrollLock) Acquire() (release func()) {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
		})
	}
}

// Locked reports whether any hold is outstanding.
func (l *ScrollLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holds > 0
}

// Key is a keyboard key delivered to the lightbox.
type Key string

const (
	KeyEscape     Key = "Escape"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
)

// Counter reports how many posts are loaded. *Session satisfies it.
type Counter interface {
	Len() int
}

// Lightbox is the detail view over the loaded posts. Navigation wraps
// modulo the number of posts loaded at the time of the move, so it never
// reaches posts that have not been paged in. Posts removed underneath an
// open lightbox pull the index back onto the last loaded post, and removing
// every post closes it.
type Lightbox struct {
	items Counter
	lock  *ScrollLock

	mu      sync.Mutex
	open    bool
	index   int
	release func()
}

func NewLightbox(items Counter, lock *ScrollLock) *Lightbox {
	return &Lightbox{items: items, lock: lock}
}

// Open shows the post at index. Opening an already open lightbox moves it
// without taking a second lock hold.
func (b *Lightbox) Open(index int) bool {
	n := b.items.Len()
	if index < 0 || index >= n {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		b.release = b.lock.Acquire()
		b.open = true
	}
	b.index = index
	return true
}

func (b *Lightbox) Next() { b.step(1) }

func (b *Lightbox) Prev() { b.step(-1) }

func (b *Lightbox) step(delta int) {
	n := b.items.Len()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fitLocked(n) {
		return
	}
	b.index = ((b.index+delta)%n + n) % n
}

// fitLocked keeps an open lightbox inside the n loaded posts and reports
// whether it is still open.
func (b *Lightbox) fitLocked(n int) bool {
	if !b.open {
		return false
	}
	if n == 0 {
		b.closeLocked()
		return false
	}
	if b.index >= n {
		b.index = n - 1
	}
	return true
}

// Close hides the lightbox and releases the scroll lock.
func (b *Lightbox) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

// Dispose is called when the view goes away underneath an open lightbox.
func (b *Lightbox) Dispose() {
	b.Close()
}

func (b *Lightbox) closeLocked() {
	if !b.open {
		return
	}
	b.open = false
	b.index = 0
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// HandleKey applies a keyboard binding and reports whether the key was used.
func (b *Lightbox) HandleKey(k Key) bool {
	if !b.IsOpen() {
		return false
	}
	switch k {
	case KeyEscape:
		b.Close()
	case KeyArrowLeft:
		b.Prev()
	case KeyArrowRight:
		b.Next()
	default:
		return false
	}
	return true
}

// IsOpen reports whether the lightbox is showing a post.
func (b *Lightbox) IsOpen() bool {
	n := b.items.Len()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fitLocked(n)
}

// Index is the position of the shown post, or -1 when closed.
func (b *Lightbox) Index() int {
	n := b.items.Len()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fitLocked(n) {
		return -1
	}
	return b.index
}
