package scheduler

/*
 * Latte - Round-robin CPU scheduler
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

import (
	"fmt"
	"sync"
)

// Runner is one participant, normally a CPU interpreter. Run executes a
// quantum and reports false on an unrecovered fault.
type Runner interface {
	Run(steps int) bool
}

// AlarmFunc is a periodic callback serviced between sweeps.
type AlarmFunc func() bool

// Scheduler interleaves its participants cooperatively on one thread.
// Each runnable participant executes a fixed quantum per sweep; pause
// requests from the console are honored only at sweep boundaries, never
// inside an instruction.
type Scheduler struct {
	runners []Runner
	steps   []int
	running []bool
	index   int

	alarmIntervals []uint32
	alarmTimers    []uint32
	alarmFuncs     []AlarmFunc

	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool
}

func New() *Scheduler {
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Add registers a participant with its quantum size. Participants start
// paused.
func (s *Scheduler) Add(r Runner, steps int) {
	s.runners = append(s.runners, r)
	s.steps = append(s.steps, steps)
	s.running = append(s.running, false)
}

// Resume marks a participant runnable.
func (s *Scheduler) Resume(index int) error {
	if index < 0 || index >= len(s.running) {
		return fmt.Errorf("scheduler index %d out of range", index)
	}
	s.running[index] = true
	return nil
}

// Suspend marks a participant not runnable.
func (s *Scheduler) Suspend(index int) error {
	if index < 0 || index >= len(s.running) {
		return fmt.Errorf("scheduler index %d out of range", index)
	}
	s.running[index] = false
	return nil
}

// Running reports whether a participant is runnable.
func (s *Scheduler) Running(index int) bool {
	if index < 0 || index >= len(s.running) {
		return false
	}
	return s.running[index]
}

// CurrentIndex is the participant currently executing, for callbacks
// that attribute effects to a CPU.
func (s *Scheduler) CurrentIndex() int {
	return s.index
}

// AddAlarm installs a callback fired every interval sweeps.
func (s *Scheduler) AddAlarm(interval uint32, fn AlarmFunc) {
	s.alarmIntervals = append(s.alarmIntervals, interval)
	s.alarmTimers = append(s.alarmTimers, interval)
	s.alarmFuncs = append(s.alarmFuncs, fn)
}

// Pause asks the scheduler to hold at the next sweep boundary.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Continue releases a paused scheduler.
func (s *Scheduler) Continue() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Stop terminates Run at the next sweep boundary.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// checkpoint blocks while paused and reports whether to keep running.
func (s *Scheduler) checkpoint() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.stopped {
		s.cond.Wait()
	}
	return !s.stopped
}

// Run drives the participants until a fault or Stop. Returns false when a
// participant failed without recovery.
func (s *Scheduler) Run() bool {
	for {
		if !s.checkpoint() {
			return true
		}

		for s.index = 0; s.index < len(s.runners); s.index++ {
			if s.running[s.index] {
				if !s.runners[s.index].Run(s.steps[s.index]) {
					return false
				}
			}
		}
		s.index = 0

		for i := range s.alarmTimers {
			s.alarmTimers[i]--
			if s.alarmTimers[i] == 0 {
				s.alarmTimers[i] = s.alarmIntervals[i]
				if !s.alarmFuncs[i]() {
					return false
				}
			}
		}
	}
}
