package telemetry

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TimingCollector collects hierarchical timing data as a tree of timers.
type TimingCollector struct {
	root    *timerNode
	current *timerNode
	mu      sync.Mutex
}

type timerNode struct {
	name     string
	start    time.Time
	end      time.Time
	children []*timerNode
	parent   *timerNode
}

// NewTimingCollector creates an empty timing collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

// Start begins timing an operation. The first timer becomes the root;
// later timers nest under the currently running one.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := &timerNode{name: name, start: time.Now()}

	if c.root == nil {
		c.root = node
	} else {
		node.parent = c.current
		c.current.children = append(c.current.children, node)
	}
	c.current = node

	return &timingTimer{collector: c, node: node}
}

// Report writes the timing tree, one line per timer, indented by depth.
func (c *TimingCollector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.root == nil {
		return
	}
	writeNode(w, c.root, 0)
}

func writeNode(w io.Writer, node *timerNode, depth int) {
	end := node.end
	if end.IsZero() {
		end = time.Now()
	}
	_, _ = fmt.Fprintf(w, "%s%s: %s\n",
		strings.Repeat("  ", depth),
		node.name,
		end.Sub(node.start).Round(time.Microsecond),
	)
	for _, child := range node.children {
		writeNode(w, child, depth+1)
	}
}

// timingTimer records into a TimingCollector.
type timingTimer struct {
	collector *TimingCollector
	node      *timerNode
}

// End stops the timer and returns the cursor to the parent.
func (t *timingTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	t.node.end = time.Now()
	if t.node.parent != nil {
		t.collector.current = t.node.parent
	}
}

// Child creates a timer nested under this one.
func (t *timingTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	node := &timerNode{name: name, start: time.Now(), parent: t.node}
	t.node.children = append(t.node.children, node)

	return &timingTimer{collector: t.collector, node: node}
}
