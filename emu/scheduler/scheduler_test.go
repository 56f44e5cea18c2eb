package scheduler

/*
 * Latte - Scheduler tests
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import "testing"

type fakeRunner struct {
	name  string
	trace *[]string
	steps *[]int
	fail  bool
}

func (r *fakeRunner) Run(steps int) bool {
	*r.trace = append(*r.trace, r.name)
	*r.steps = append(*r.steps, steps)
	return !r.fail
}

// Participants run in insertion order with their own quantum, skipping
// the paused ones.
func TestRoundRobin(t *testing.T) {
	s := New()
	var trace []string
	var steps []int
	s.Add(&fakeRunner{name: "a", trace: &trace, steps: &steps}, 100)
	s.Add(&fakeRunner{name: "b", trace: &trace, steps: &steps}, 200)
	s.Add(&fakeRunner{name: "c", trace: &trace, steps: &steps}, 300)

	if err := s.Resume(0); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := s.Resume(2); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := s.Resume(5); err == nil {
		t.Errorf("Resume out of range succeeded")
	}

	sweeps := 0
	s.AddAlarm(2, func() bool {
		sweeps++
		if sweeps == 2 {
			s.Stop()
		}
		return true
	})

	if !s.Run() {
		t.Fatalf("Run failed")
	}

	// Four sweeps of (a, c) before the alarm stops the loop.
	want := []string{"a", "c", "a", "c", "a", "c", "a", "c"}
	if len(trace) != len(want) {
		t.Fatalf("trace got: %v expected: %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] got: %s expected: %s", i, trace[i], want[i])
		}
	}
	for i, n := range steps {
		want := 100
		if i%2 == 1 {
			want = 300
		}
		if n != want {
			t.Errorf("steps[%d] got: %d expected: %d", i, n, want)
		}
	}
}

// A failing participant stops the whole machine.
func TestRunnerFailure(t *testing.T) {
	s := New()
	var trace []string
	var steps []int
	s.Add(&fakeRunner{name: "a", trace: &trace, steps: &steps}, 10)
	s.Add(&fakeRunner{name: "b", trace: &trace, steps: &steps, fail: true}, 10)
	_ = s.Resume(0)
	_ = s.Resume(1)

	if s.Run() {
		t.Errorf("Run succeeded with a failing participant")
	}
	if len(trace) != 2 {
		t.Errorf("trace got: %v expected a then b", trace)
	}
}

// Stop before Run returns immediately.
func TestStop(t *testing.T) {
	s := New()
	var trace []string
	var steps []int
	s.Add(&fakeRunner{name: "a", trace: &trace, steps: &steps}, 10)
	_ = s.Resume(0)
	s.Stop()

	if !s.Run() {
		t.Errorf("stopped Run reported failure")
	}
	if len(trace) != 0 {
		t.Errorf("stopped Run executed a participant")
	}
}

// Suspend parks a participant mid-run.
func TestSuspend(t *testing.T) {
	s := New()
	var trace []string
	var steps []int
	s.Add(&fakeRunner{name: "a", trace: &trace, steps: &steps}, 10)
	_ = s.Resume(0)

	s.AddAlarm(1, func() bool {
		if len(trace) >= 1 {
			_ = s.Suspend(0)
		}
		if len(trace) >= 1 && s.Running(0) {
			t.Errorf("Suspend did not park the participant")
		}
		if len(trace) > 1 {
			t.Errorf("suspended participant kept running")
		}
		if len(trace) >= 1 {
			s.Stop()
		}
		return true
	})

	if !s.Run() {
		t.Fatalf("Run failed")
	}
}
