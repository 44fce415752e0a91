package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/ppalone/ytsearch"

	"github.com/leeineian/hibiki/src/sys"
)

const joinAttempts = 5

// VoiceProvider is the disgo-backed ConnectionProvider. One voiceConn per
// guild, each with its own playback worker.
type VoiceProvider struct {
	client *bot.Client
	proxy  string

	mu    sync.Mutex
	conns map[snowflake.ID]*voiceConn

	events PipelineEvents

	// OnForcedDisconnect fires when the bot is removed from voice by an
	// external actor.
	OnForcedDisconnect func(guildID snowflake.ID)
}

func NewVoiceProvider(client *bot.Client, proxy string) *VoiceProvider {
	return &VoiceProvider{
		client: client,
		proxy:  proxy,
		conns:  map[snowflake.ID]*voiceConn{},
	}
}

// SetEvents wires playback lifecycle callbacks. Must be called before the
// first Join.
func (vp *VoiceProvider) SetEvents(ev PipelineEvents) {
	vp.events = ev
}

func (vp *VoiceProvider) Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error) {
	vp.mu.Lock()
	if c, ok := vp.conns[guildID]; ok && !c.isClosed() {
		vp.mu.Unlock()
		return c, nil
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	c := &voiceConn{
		guildID:    guildID,
		conn:       vp.client.VoiceManager.CreateConn(guildID),
		proxy:      vp.proxy,
		events:     vp.events,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
		wake:       make(chan struct{}, 1),
	}
	vp.conns[guildID] = c
	vp.mu.Unlock()

	var lastErr error
	for i := range joinAttempts {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			sys.LogVoice(sys.MsgMusicJoinRetry, backoff, i+1, joinAttempts)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
		}
		if lastErr = c.conn.Open(ctx, channelID, false, false); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		c.conn.Close(ctx)
		vp.remove(guildID, c)
		c.close()
		return nil, lastErr
	}

	go c.worker()
	return c, nil
}

func (vp *VoiceProvider) Get(guildID snowflake.ID) (Connection, bool) {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	c, ok := vp.conns[guildID]
	if !ok || c.isClosed() {
		return nil, false
	}
	return c, true
}

func (vp *VoiceProvider) Leave(ctx context.Context, guildID snowflake.ID) {
	vp.mu.Lock()
	c, ok := vp.conns[guildID]
	if ok {
		delete(vp.conns, guildID)
	}
	vp.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	c.conn.Close(ctx)
}

func (vp *VoiceProvider) remove(guildID snowflake.ID, c *voiceConn) {
	vp.mu.Lock()
	if vp.conns[guildID] == c {
		delete(vp.conns, guildID)
	}
	vp.mu.Unlock()
}

// Shutdown closes every connection. Used by the daemon shutdown hook.
func (vp *VoiceProvider) Shutdown(ctx context.Context) {
	vp.mu.Lock()
	conns := make([]*voiceConn, 0, len(vp.conns))
	for id, c := range vp.conns {
		conns = append(conns, c)
		delete(vp.conns, id)
	}
	vp.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *voiceConn) {
			defer wg.Done()
			c.close()
			c.conn.Close(ctx)
		}(c)
	}
	wg.Wait()
}

// OnVoiceStateUpdate watches the bot's own voice state for external
// disconnects (kick, channel delete).
func (vp *VoiceProvider) OnVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.VoiceState.UserID != event.Client().ID() {
		return
	}
	if event.VoiceState.ChannelID != nil {
		return
	}
	if _, ok := vp.Get(event.VoiceState.GuildID); !ok {
		return
	}
	if vp.OnForcedDisconnect != nil {
		vp.OnForcedDisconnect(event.VoiceState.GuildID)
	}
}

// Listeners counts undeafened humans sharing the channel with the bot.
func (vp *VoiceProvider) Listeners(guildID, channelID snowflake.ID) int {
	count := 0
	for state := range vp.client.Caches.VoiceStates(guildID) {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == vp.client.ID() {
			continue
		}
		if state.SelfDeaf || state.GuildDeaf {
			continue
		}
		if m, ok := vp.client.Caches.Member(guildID, state.UserID); ok && m.User.Bot {
			continue
		}
		count++
	}
	return count
}

// voiceConn drives a single guild's ordered playback pipeline.
type voiceConn struct {
	guildID snowflake.ID
	conn    voice.Conn
	proxy   string
	events  PipelineEvents

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	wake       chan struct{}

	mu           sync.Mutex
	pending      []PlayableInput
	playing      bool
	paused       bool
	provider     *opusStreamProvider
	streamCancel context.CancelFunc
}

func (c *voiceConn) isClosed() bool {
	return c.cancelCtx.Err() != nil
}

func (c *voiceConn) close() {
	c.cancelFunc()
	c.mu.Lock()
	c.pending = nil
	if c.streamCancel != nil {
		c.streamCancel()
	}
	c.mu.Unlock()
}

func (c *voiceConn) Submit(ctx context.Context, input PlayableInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return ErrConnClosed
	}
	c.pending = append(c.pending, input)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *voiceConn) QueueEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) == 0 && !c.playing
}

func (c *voiceConn) Skip() {
	c.mu.Lock()
	cancel := c.streamCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause detaches the frame provider without stopping ffmpeg. The pipe
// backpressures and the stream continues from the same spot on Resume.
func (c *voiceConn) Pause() {
	c.mu.Lock()
	if c.paused || c.provider == nil {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.mu.Unlock()

	c.conn.SetOpusFrameProvider(nil)
	c.conn.SetSpeaking(context.TODO(), 0)
}

func (c *voiceConn) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	provider := c.provider
	c.mu.Unlock()

	if provider != nil {
		c.conn.SetOpusFrameProvider(provider)
		c.conn.SetSpeaking(context.TODO(), voice.SpeakingFlagMicrophone)
	}
}

func (c *voiceConn) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *voiceConn) StopAll() {
	c.mu.Lock()
	c.pending = nil
	cancel := c.streamCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *voiceConn) worker() {
	for {
		select {
		case <-c.cancelCtx.Done():
			return
		case <-c.wake:
		}
		for {
			c.mu.Lock()
			if len(c.pending) == 0 || c.isClosed() {
				c.mu.Unlock()
				break
			}
			in := c.pending[0]
			c.pending = c.pending[1:]
			c.playing = true
			c.mu.Unlock()

			c.playOne(in)

			c.mu.Lock()
			c.playing = false
			c.mu.Unlock()
			if c.events != nil {
				c.events.TrackFinished(c.guildID)
			}
		}
	}
}

func (c *voiceConn) playOne(in PlayableInput) {
	streamURL, err := c.resolveStreamURL(in)
	if err != nil {
		name := in.URL
		if name == "" {
			name = in.Query
		}
		sys.LogVoice(sys.MsgMusicResolveFail, name, err)
		return
	}

	ctx, cancel := context.WithCancel(c.cancelCtx)
	c.mu.Lock()
	c.streamCancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.streamCancel = nil
		c.mu.Unlock()
	}()

	if c.events != nil {
		c.events.TrackStarted(c.guildID)
	}
	if err := c.stream(ctx, streamURL); err != nil && ctx.Err() == nil {
		sys.LogVoice(sys.MsgMusicStreamFail, streamURL, c.guildID, err)
	}
}

// resolveStreamURL turns the submitted input into a direct audio URL.
// Query inputs (Spotify playback) are first resolved to a video through a
// YouTube Music search, falling back to plain YouTube.
func (c *voiceConn) resolveStreamURL(in PlayableInput) (string, error) {
	target := in.URL
	if target == "" {
		resolved, err := c.searchVideoURL(in.Query)
		if err != nil {
			return "", err
		}
		target = resolved
	}
	target = strings.Replace(target, "music.youtube.com", "www.youtube.com", 1)

	ctx, cancel := context.WithTimeout(c.cancelCtx, submitTimeout)
	defer cancel()

	args := append(ytdlpArgs(),
		"--print", "url",
		"-f", "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best",
		"--skip-download",
		"--ignore-config",
		"-4",
	)
	if c.proxy != "" {
		args = append(args, "--proxy", c.proxy)
	}
	cmd := exec.CommandContext(ctx, "yt-dlp", append(args, target)...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	streamURL := strings.TrimSpace(string(out))
	if i := strings.IndexByte(streamURL, '\n'); i > 0 {
		streamURL = streamURL[:i]
	}
	if !strings.HasPrefix(streamURL, "http") {
		return "", errors.New("no stream url")
	}
	return streamURL, nil
}

func (c *voiceConn) searchVideoURL(query string) (string, error) {
	ctx, cancel := context.WithTimeout(c.cancelCtx, submitTimeout)
	defer cancel()

	searchURL := "https://music.youtube.com/search?q=" + url.QueryEscape(query)
	args := append(ytdlpArgs(true),
		"--flat-playlist",
		"--print", "url",
		"--playlist-items", "1",
		"--ignore-config",
		"-4",
	)
	cmd := exec.CommandContext(ctx, "yt-dlp", append(args, searchURL)...)
	if out, err := cmd.Output(); err == nil {
		line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		if strings.HasPrefix(line, "http") {
			return line, nil
		}
	}

	sc := ytsearch.NewClient(nil)
	res, err := sc.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		return "", ErrNoResults
	}
	return "https://www.youtube.com/watch?v=" + res.Results[0].VideoID, nil
}

// stream pipes the source through ffmpeg into an Ogg/Opus container and
// feeds parsed packets to the voice gateway. Blocks until the track ends or
// ctx is cancelled.
func (c *voiceConn) stream(ctx context.Context, input string) error {
	args := []string{
		"-reconnect", "1",
		"-reconnect_at_eof", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "2",
		"-user_agent", "Mozilla/5.0",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-i", input,
		"-map", "0:a",
		"-acodec", "libopus",
		"-b:a", "128k",
		"-vbr", "on",
		"-compression_level", "10",
		"-analyzeduration", "0",
		"-probesize", "32",
		"-f", "opus",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			sys.LogDebug("ffmpeg: %s", scanner.Text())
		}
	}()

	provider := newOpusStreamProvider(stdout)
	done := make(chan struct{})
	provider.OnFinish = func() {
		close(done)
	}

	c.mu.Lock()
	c.provider = provider
	c.paused = false
	c.mu.Unlock()

	c.conn.SetOpusFrameProvider(provider)
	c.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone)

	select {
	case <-done:
		time.Sleep(100 * time.Millisecond)
	case <-ctx.Done():
	}

	_ = cmd.Process.Kill()
	_ = cmd.Wait()

	c.mu.Lock()
	c.provider = nil
	c.paused = false
	c.mu.Unlock()

	c.conn.SetOpusFrameProvider(nil)
	c.conn.SetSpeaking(context.TODO(), 0)
	return nil
}

// opusStreamProvider implements voice.OpusFrameProvider by parsing Opus
// packets out of an Ogg container.
type opusStreamProvider struct {
	reader    *bufio.Reader
	header    []byte
	segBuf    []byte
	packetBuf bytes.Buffer
	queue     [][]byte
	OnFinish  func()
	once      sync.Once
}

func newOpusStreamProvider(r io.Reader) *opusStreamProvider {
	return &opusStreamProvider{
		reader: bufio.NewReaderSize(r, 16384),
		header: make([]byte, 27),
		segBuf: make([]byte, 255),
	}
}

func (p *opusStreamProvider) Close() {}

func (p *opusStreamProvider) triggerFinish() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}

func (p *opusStreamProvider) ProvideOpusFrame() ([]byte, error) {
	if len(p.queue) > 0 {
		frame := p.queue[0]
		p.queue = p.queue[1:]
		return frame, nil
	}

	for {
		sig, err := p.reader.Peek(4)
		if err != nil {
			p.triggerFinish()
			return nil, err
		}

		if string(sig) != "OggS" {
			_, _ = p.reader.Discard(1)
			continue
		}
		if _, err := io.ReadFull(p.reader, p.header); err != nil {
			p.triggerFinish()
			return nil, err
		}

		numSegs := int(p.header[26])
		segTable := p.segBuf[:numSegs]
		if _, err := io.ReadFull(p.reader, segTable); err != nil {
			p.triggerFinish()
			return nil, err
		}

		for _, segLen := range segTable {
			l := int(segLen)
			if _, err := io.CopyN(&p.packetBuf, p.reader, int64(l)); err != nil {
				p.triggerFinish()
				return nil, err
			}

			// Segments shorter than 255 bytes terminate a packet.
			if l < 255 {
				payload := p.packetBuf.Bytes()
				frame := make([]byte, len(payload))
				copy(frame, payload)
				p.packetBuf.Reset()

				if len(frame) > 8 && (string(frame[:8]) == "OpusHead" || string(frame[:8]) == "OpusTags") {
					continue
				}
				p.queue = append(p.queue, frame)
			}
		}

		if len(p.queue) > 0 {
			frame := p.queue[0]
			p.queue = p.queue[1:]
			return frame, nil
		}
	}
}
