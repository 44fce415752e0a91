package proc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// fakeConn is an in-memory Connection that records submissions. With started
// and allow set, Submit signals started and blocks until allow is released,
// which lets tests hold a submission in flight.
type fakeConn struct {
	mu        sync.Mutex
	submitted []PlayableInput
	empty     bool
	closed    bool
	paused    bool
	skips     int
	stops     int
	submitErr error
	delay     time.Duration
	started   chan struct{}
	allow     chan struct{}
}

func (c *fakeConn) Submit(ctx context.Context, in PlayableInput) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.started != nil {
		c.started <- struct{}{}
		<-c.allow
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.submitErr != nil {
		return c.submitErr
	}
	c.submitted = append(c.submitted, in)
	return nil
}

func (c *fakeConn) setSubmitErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = err
}

func (c *fakeConn) QueueEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.empty
}

func (c *fakeConn) Skip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skips++
}

func (c *fakeConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *fakeConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *fakeConn) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *fakeConn) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func (c *fakeConn) setEmpty(empty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.empty = empty
}

func (c *fakeConn) inputs() []PlayableInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PlayableInput, len(c.submitted))
	copy(out, c.submitted)
	return out
}

// fakeProvider is an in-memory ConnectionProvider with countable joins.
type fakeProvider struct {
	mu        sync.Mutex
	conns     map[snowflake.ID]*fakeConn
	joins     atomic.Int32
	leaves    atomic.Int32
	joinErr   error
	joinDelay time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{conns: map[snowflake.ID]*fakeConn{}}
}

func (p *fakeProvider) Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error) {
	p.joins.Add(1)
	if p.joinDelay > 0 {
		time.Sleep(p.joinDelay)
	}
	if p.joinErr != nil {
		return nil, p.joinErr
	}
	c := &fakeConn{}
	p.mu.Lock()
	p.conns[guildID] = c
	p.mu.Unlock()
	return c, nil
}

func (p *fakeProvider) Get(guildID snowflake.ID) (Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[guildID]
	if !ok {
		return nil, false
	}
	return c, true
}

func (p *fakeProvider) Leave(ctx context.Context, guildID snowflake.ID) {
	p.leaves.Add(1)
	p.mu.Lock()
	delete(p.conns, guildID)
	p.mu.Unlock()
}

func (p *fakeProvider) conn(guildID snowflake.ID) *fakeConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[guildID]
}

func (p *fakeProvider) install(guildID snowflake.ID, c *fakeConn) {
	p.mu.Lock()
	p.conns[guildID] = c
	p.mu.Unlock()
}

type fakeResolver struct {
	res *Resolution
	err error
}

func (f fakeResolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	return f.res, f.err
}

// fakeSink records sent and deleted messages.
type fakeSink struct {
	mu      sync.Mutex
	sent    []Notification
	deleted []*MessageRef
	nextID  uint64
}

func (s *fakeSink) Send(ctx context.Context, channelID snowflake.ID, n Notification) (*MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	s.nextID++
	return &MessageRef{ChannelID: channelID, MessageID: snowflake.ID(s.nextID)}, nil
}

func (s *fakeSink) Delete(ctx context.Context, ref *MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *fakeSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSink) deletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deleted)
}

func (s *fakeSink) lastSent() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Notification{}, false
	}
	return s.sent[len(s.sent)-1], true
}

type fakePresence struct {
	count atomic.Int32
}

func (p *fakePresence) Listeners(guildID, channelID snowflake.ID) int {
	return int(p.count.Load())
}

func testTrack(title string) Track {
	return Track{Title: title, Artist: "artist", URL: "https://www.youtube.com/watch?v=" + title, Source: SourceYouTube}
}
