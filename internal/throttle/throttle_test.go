package throttle

import (
	"sort"
	"testing"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (ft *fakeTimer) Stop() bool {
	active := !ft.stopped && !ft.fired
	ft.stopped = true
	return active
}

type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	ft := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, ft)
	return ft
}

// Advance moves time forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		var next *fakeTimer
		for _, ft := range c.timers {
			if !ft.fired && !ft.stopped && !ft.at.After(target) {
				next = ft
				break
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		next.f()
	}
	c.now = target
}

type sent struct {
	at  time.Time
	msg domain.Outbound
}

func newTestThrottle(c *fakeClock, log *[]sent, opts ...Option) *Throttle {
	opts = append([]Option{WithClock(c)}, opts...)
	return New(400*time.Millisecond, func(msg domain.Outbound) {
		*log = append(*log, sent{at: c.Now(), msg: msg})
	}, opts...)
}

func widget(v int) domain.Outbound {
	return domain.UpdateWidget{WidgetID: "slider", Value: v}
}

func TestThrottle_FirstSendIsImmediate(t *testing.T) {
	c := newFakeClock()
	var log []sent
	th := newTestThrottle(c, &log)

	th.Send("slider", widget(1))

	require.Len(t, log, 1)
	assert.Equal(t, widget(1), log[0].msg)
	assert.False(t, th.Pending("slider"))
}

func TestThrottle_BurstDeliversLastValueOnce(t *testing.T) {
	c := newFakeClock()
	var log []sent
	coalesced := 0
	th := newTestThrottle(c, &log, WithOnCoalesced(func(domain.Outbound) { coalesced++ }))

	th.Send("slider", widget(0))
	start := c.Now()
	for v := 1; v <= 5; v++ {
		c.Advance(50 * time.Millisecond)
		th.Send("slider", widget(v))
	}
	require.Len(t, log, 1, "burst is held")

	c.Advance(time.Second)

	require.Len(t, log, 2)
	assert.Equal(t, widget(5), log[1].msg)
	assert.Equal(t, start.Add(400*time.Millisecond), log[1].at)
	assert.Equal(t, 4, coalesced, "v1..v4 were overwritten, v5 was sent")
}

func TestThrottle_AtMostOnePerWindow(t *testing.T) {
	c := newFakeClock()
	var log []sent
	th := newTestThrottle(c, &log)

	for v := range 100 {
		th.Send("slider", widget(v))
		c.Advance(37 * time.Millisecond)
	}
	c.Advance(time.Second)

	require.NotEmpty(t, log)
	for i := 1; i < len(log); i++ {
		gap := log[i].at.Sub(log[i-1].at)
		assert.GreaterOrEqual(t, gap, 400*time.Millisecond, "sends %d and %d are too close", i-1, i)
	}
	assert.Equal(t, widget(99), log[len(log)-1].msg, "final value is delivered")
}

func TestThrottle_SendAfterQuietWindowIsImmediate(t *testing.T) {
	c := newFakeClock()
	var log []sent
	th := newTestThrottle(c, &log)

	th.Send("slider", widget(1))
	c.Advance(500 * time.Millisecond)
	th.Send("slider", widget(2))

	require.Len(t, log, 2)
	assert.Equal(t, widget(2), log[1].msg)
}

func TestThrottle_SourcesAreIndependent(t *testing.T) {
	c := newFakeClock()
	var log []sent
	th := newTestThrottle(c, &log)

	th.Send("a", domain.UpdateWidget{WidgetID: "a", Value: 1})
	th.Send("b", domain.UpdateWidget{WidgetID: "b", Value: 1})
	th.Send("a", domain.UpdateWidget{WidgetID: "a", Value: 2})
	th.Send("b", domain.UpdateWidget{WidgetID: "b", Value: 2})

	require.Len(t, log, 2, "each source sends its first value immediately")

	c.Advance(400 * time.Millisecond)
	require.Len(t, log, 4)
	assert.ElementsMatch(t, []domain.Outbound{
		domain.UpdateWidget{WidgetID: "a", Value: 2},
		domain.UpdateWidget{WidgetID: "b", Value: 2},
	}, []domain.Outbound{log[2].msg, log[3].msg})
}

func TestThrottle_PostSchedulesFire(t *testing.T) {
	c := newFakeClock()
	var log []sent
	var queued []func()
	th := newTestThrottle(c, &log, WithPost(func(f func()) { queued = append(queued, f) }))

	th.Send("slider", widget(1))
	th.Send("slider", widget(2))
	c.Advance(400 * time.Millisecond)

	require.Len(t, log, 1, "fire waits for the owner")
	require.Len(t, queued, 1)
	queued[0]()
	require.Len(t, log, 2)
	assert.Equal(t, widget(2), log[1].msg)
}

func TestThrottle_CloseAbandonsPending(t *testing.T) {
	c := newFakeClock()
	var log []sent
	th := newTestThrottle(c, &log)

	th.Send("slider", widget(1))
	th.Send("slider", widget(2))
	th.Close()
	c.Advance(time.Second)

	assert.Len(t, log, 1)
}

func TestNew_DefaultWindow(t *testing.T) {
	th := New(0, func(domain.Outbound) {})
	assert.Equal(t, DefaultWindow, th.Window())
}
