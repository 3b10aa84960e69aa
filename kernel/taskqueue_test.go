package kernel

import "testing"

func testTask(name string, prio uint8) *Task {
	return &Task{name: name, priority: prio}
}

func popOrder(q *taskQueue) []string {
	var names []string
	for {
		t := q.pop()
		if t == nil {
			return names
		}
		names = append(names, t.name)
	}
}

func TestTaskQueuePriorityOrderFIFOTies(t *testing.T) {
	q := &taskQueue{class: classSched}
	for _, tk := range []*Task{
		testTask("c", 30),
		testTask("a1", 10),
		testTask("b", 20),
		testTask("a2", 10),
		testTask("top", 0),
	} {
		q.add(tk)
	}

	want := []string{"top", "a1", "a2", "b", "c"}
	got := popOrder(q)
	if len(got) != len(want) {
		t.Fatalf("pop count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !q.empty() {
		t.Fatal("queue not empty after draining")
	}
}

func TestTaskQueuePeekAndEmpty(t *testing.T) {
	q := &taskQueue{class: classSched}
	if q.peek() != nil || q.pop() != nil {
		t.Fatal("empty queue should peek/pop nil")
	}
	tk := testTask("only", 5)
	q.add(tk)
	if q.peek() != tk {
		t.Fatal("peek should return the single member")
	}
	if q.empty() {
		t.Fatal("queue with a member reported empty")
	}
}

func TestTaskQueueRemove(t *testing.T) {
	q := &taskQueue{class: classSched}
	a, b, c := testTask("a", 1), testTask("b", 2), testTask("c", 3)
	q.add(a)
	q.add(b)
	q.add(c)

	q.remove(b)
	got := popOrder(q)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("after removing middle, pop order = %v, want [a c]", got)
	}

	q.add(a)
	q.add(b)
	q.remove(a)
	q.remove(b)
	if !q.empty() {
		t.Fatal("queue not empty after removing all members")
	}
}

func TestTaskQueueAddFrontIgnoresPriority(t *testing.T) {
	q := &taskQueue{class: classSched}
	q.addFront(testTask("first", 1))
	q.addFront(testTask("second", 200))

	got := popOrder(q)
	if len(got) != 2 || got[0] != "second" || got[1] != "first" {
		t.Fatalf("addFront pop order = %v, want [second first]", got)
	}
}

func TestTaskQueueSeparateLinkClasses(t *testing.T) {
	sched := &taskQueue{class: classSched}
	wait := &taskQueue{class: classWait}
	tk := testTask("both", 7)

	sched.add(tk)
	wait.add(tk)

	wait.remove(tk)
	if sched.peek() != tk {
		t.Fatal("wait-queue removal must not disturb sched membership")
	}
	sched.remove(tk)
	if !sched.empty() || !wait.empty() {
		t.Fatal("both queues should be empty")
	}
}

func TestHandlerRingFIFOAndOverflow(t *testing.T) {
	var r handlerRing
	var got []int
	for i := 0; i < handlerQueueDepth; i++ {
		i := i
		if !r.push(func() { got = append(got, i) }) {
			t.Fatalf("push %d failed below capacity", i)
		}
	}
	if r.push(func() {}) {
		t.Fatal("push succeeded on a full ring")
	}
	for i := 0; i < handlerQueueDepth; i++ {
		h, ok := r.pop()
		if !ok {
			t.Fatalf("pop %d failed", i)
		}
		h()
	}
	if _, ok := r.pop(); ok {
		t.Fatal("pop succeeded on an empty ring")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("handler order[%d] = %d, want %d", i, v, i)
		}
	}
}
