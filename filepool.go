package gosfzplayer

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GeoffreyPlitt/debuggo"
)

var poolDebug = debuggo.Debug("sfizz:filepool")

// PreloadedEntry is the decoded, oversampled preload window (not the
// whole file) for one sample file, shared by every Promise requesting
// that file.
type PreloadedEntry struct {
	Data            [][]float32
	SampleRate      float32
	Info            FileInformation
	PreloadedFrames uint32 // raw (pre-oversample) frames actually decoded
}

// Promise is the handle a Voice holds on a requested sample file. It
// is served immediately from preloaded data and transparently starts
// returning the fully loaded file once the background loader marks it
// ready. Data() is safe to call from the audio thread at any time.
type Promise struct {
	Filename           string
	Preloaded          [][]float32
	FileData           [][]float32
	SampleRate         float32
	OversamplingFactor Oversampling

	dataReady atomic.Bool
	refcount  int32
}

// DataReady reports whether the background loader has finished
// supplying the full file.
func (p *Promise) DataReady() bool {
	return p.dataReady.Load()
}

// Data returns the full decoded file if ready, otherwise the preloaded
// head of the file. Never blocks.
func (p *Promise) Data() [][]float32 {
	if p.dataReady.Load() && p.FileData != nil {
		return p.FileData
	}
	return p.Preloaded
}

// Retain increments the promise's reference count. Voice calls this
// once when it starts using the promise.
func (p *Promise) Retain() {
	atomic.AddInt32(&p.refcount, 1)
}

// Release decrements the promise's reference count. Voice calls this
// once when it stops needing the sample data.
func (p *Promise) Release() {
	atomic.AddInt32(&p.refcount, -1)
}

// RefCount reports the current reference count. CleanupPromises uses
// this to detect promises no voice references anymore.
func (p *Promise) RefCount() int32 {
	return atomic.LoadInt32(&p.refcount)
}

// FilePool loads and caches sample files. GetFilePromise serves a
// request synchronously from whatever is already preloaded, then hands
// the promise to a pool of background goroutines that fill in the
// complete file data. CleanupPromises, called once per audio block
// from the render thread, drains finished promises out of the filled
// queue and frees any that no voice references anymore.
type FilePool struct {
	mu                 sync.Mutex
	preloaded          map[string]PreloadedEntry
	rootDirectory      string
	preloadSize        uint32
	oversamplingFactor Oversampling

	promiseQueue chan *Promise
	filledQueue  chan *Promise
	quit         chan struct{}
	wg           sync.WaitGroup

	threadsLoading atomic.Int32

	pending []*Promise
}

// NewFilePool starts numThreads background loader goroutines. maxVoices
// sizes the request/fill queues, matching the bound on how many voices
// can be in flight at once.
func NewFilePool(numThreads, maxVoices int) *FilePool {
	fp := &FilePool{
		preloaded:          make(map[string]PreloadedEntry),
		preloadSize:        PreloadSize,
		oversamplingFactor: Oversampling1x,
		promiseQueue:       make(chan *Promise, maxInt(maxVoices, 1)),
		filledQueue:        make(chan *Promise, maxInt(maxVoices, 1)),
		quit:               make(chan struct{}),
	}
	for i := 0; i < numThreads; i++ {
		fp.wg.Add(1)
		go fp.loadingThread()
	}
	return fp
}

// Close stops the background loader goroutines and waits for them to
// exit. Not safe to call from the audio thread.
func (fp *FilePool) Close() {
	close(fp.quit)
	fp.wg.Wait()
}

// SetRootDirectory sets the directory sample paths are resolved
// relative to.
func (fp *FilePool) SetRootDirectory(dir string) {
	fp.mu.Lock()
	fp.rootDirectory = dir
	fp.mu.Unlock()
}

// NumPreloadedSamples returns how many distinct files are cached.
func (fp *FilePool) NumPreloadedSamples() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.preloaded)
}

// GetFileInformation probes a file's shape without requesting a
// playback promise for it, preloading it as a side effect if it isn't
// cached yet.
func (fp *FilePool) GetFileInformation(filename string) (FileInformation, error) {
	entry, err := fp.ensurePreloaded(filename, 0)
	if err != nil {
		return FileInformation{}, err
	}
	return entry.Info, nil
}

// PreloadFile decodes filename (if not already cached) and keeps its
// preload window in memory: min(total frames, preload_size+maxOffset),
// the same bounded synchronous read GetFilePromise triggers on first
// use. maxOffset widens that window for a caller that knows it will
// need to start reading further into the file than preload_size alone
// covers (e.g. a region with a large offset= opcode). The rest of the
// file is left to the background loader.
func (fp *FilePool) PreloadFile(filename string, maxOffset uint32) error {
	_, err := fp.ensurePreloaded(filename, maxOffset)
	return err
}

func (fp *FilePool) ensurePreloaded(filename string, maxOffset uint32) (PreloadedEntry, error) {
	fp.mu.Lock()
	entry, ok := fp.preloaded[filename]
	root := fp.rootDirectory
	factor := fp.oversamplingFactor
	preloadSize := fp.preloadSize
	fp.mu.Unlock()

	maxFrames := preloadSize + maxOffset
	if ok {
		// A cache hit is only a no-op if the cached entry already
		// covers the newly requested window (or already holds the
		// whole file); otherwise widen it by redecoding, the same way
		// a fresh preload would, per spec.md's "min(total_frames,
		// preload_size + max_offset)" preload rule.
		if entry.PreloadedFrames >= maxFrames || entry.PreloadedFrames >= entry.Info.Frames {
			return entry, nil
		}
	}

	path := filename
	if root != "" {
		path = filepath.Join(root, filename)
	}

	decoder, err := decoderFor(path)
	if err != nil {
		return PreloadedEntry{}, err
	}
	channels, info, err := decoder.decode(path, maxFrames)
	if err != nil {
		return PreloadedEntry{}, err
	}
	preloadedFrames := maxFrames
	if maxFrames == 0 || info.Frames < maxFrames {
		preloadedFrames = info.Frames
	}
	channels = oversampleChannels(channels, factor)

	entry = PreloadedEntry{
		Data:            channels,
		SampleRate:      info.SampleRate * float32(factor),
		Info:            info,
		PreloadedFrames: preloadedFrames,
	}

	fp.mu.Lock()
	fp.preloaded[filename] = entry
	fp.mu.Unlock()

	poolDebug("preloaded %s up to %d frames of %d total (%d channels, maxOffset=%d)", filename, maxFrames, info.Frames, info.Channels, maxOffset)
	return entry, nil
}

// GetFilePromise returns a promise for filename, serving it
// immediately from cache and queuing it for background confirmation.
// Never blocks on I/O on the calling goroutine beyond the initial
// decode if the file has never been seen before. maxOffset widens the
// preload window the same way PreloadFile does, so a region whose
// offset= opcode starts well past the default preload window is still
// served real sample data, not the silence/clamp fillFromSample falls
// back to, on its very first block.
func (fp *FilePool) GetFilePromise(filename string, maxOffset uint32) (*Promise, error) {
	entry, err := fp.ensurePreloaded(filename, maxOffset)
	if err != nil {
		return nil, fmt.Errorf("sfizz: get file promise for %s: %w", filename, err)
	}

	fp.mu.Lock()
	factor := fp.oversamplingFactor
	fp.mu.Unlock()

	promise := &Promise{
		Filename:           filename,
		Preloaded:          entry.Data,
		SampleRate:         entry.SampleRate,
		OversamplingFactor: factor,
	}
	promise.Retain()

	select {
	case fp.promiseQueue <- promise:
	default:
		poolDebug("promise queue full, serving %s from preload only", filename)
	}

	return promise, nil
}

func (fp *FilePool) loadingThread() {
	defer fp.wg.Done()
	for {
		select {
		case <-fp.quit:
			return
		case p := <-fp.promiseQueue:
			fp.threadsLoading.Add(1)
			fp.loadFull(p)
			fp.threadsLoading.Add(-1)
			select {
			case fp.filledQueue <- p:
			case <-fp.quit:
				return
			}
		case <-time.After(QueueDequeueWait * time.Millisecond):
		}
	}
}

// loadFull performs the real, unbounded decode of p's file off the
// audio thread: the synchronous preload that served p on creation only
// ever read up to preload_size+max_offset frames, so this is the first
// point the rest of the file actually gets read from disk.
func (fp *FilePool) loadFull(p *Promise) {
	fp.mu.Lock()
	root := fp.rootDirectory
	fp.mu.Unlock()

	path := p.Filename
	if root != "" {
		path = filepath.Join(root, p.Filename)
	}

	decoder, err := decoderFor(path)
	if err != nil {
		poolDebug("background load of %s failed: %v", p.Filename, err)
		return
	}
	channels, _, err := decoder.decode(path, 0)
	if err != nil {
		poolDebug("background load of %s failed: %v", p.Filename, err)
		return
	}
	channels = oversampleChannels(channels, p.OversamplingFactor)

	p.FileData = channels
	p.dataReady.Store(true)
}

// CleanupPromises must be called once per audio block from the render
// thread. It moves newly finished promises out of the filled queue and
// frees any previously-finished promise that no voice references
// anymore (refcount dropped to zero).
func (fp *FilePool) CleanupPromises() {
	for {
		select {
		case p := <-fp.filledQueue:
			fp.pending = append(fp.pending, p)
		default:
			goto drained
		}
	}
drained:
	kept := fp.pending[:0]
	for _, p := range fp.pending {
		if p.RefCount() <= 0 {
			p.FileData = nil
			continue
		}
		kept = append(kept, p)
	}
	fp.pending = kept
}

// Clear drops every cached file. Not safe to call from the audio
// thread.
func (fp *FilePool) Clear() {
	fp.mu.Lock()
	fp.preloaded = make(map[string]PreloadedEntry)
	fp.mu.Unlock()
}

// SetPreloadSize changes the preload window. Triggers no immediate
// reload; new sizes take effect the next time a file is preloaded.
func (fp *FilePool) SetPreloadSize(size uint32) {
	fp.mu.Lock()
	fp.preloadSize = size
	fp.mu.Unlock()
}

// PreloadSize returns the current preload window size.
func (fp *FilePool) PreloadSize() uint32 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.preloadSize
}

// SetOversamplingFactor changes the factor applied to newly decoded
// files and forces every already-cached file to be redecoded at the
// new factor. Not safe to call from the audio thread.
func (fp *FilePool) SetOversamplingFactor(factor Oversampling) {
	fp.mu.Lock()
	preloadedFrames := make(map[string]uint32, len(fp.preloaded))
	for name, entry := range fp.preloaded {
		preloadedFrames[name] = entry.PreloadedFrames
	}
	fp.preloaded = make(map[string]PreloadedEntry)
	fp.oversamplingFactor = factor
	root := fp.rootDirectory
	preloadSize := fp.preloadSize
	fp.mu.Unlock()

	for name, prevFrames := range preloadedFrames {
		path := name
		if root != "" {
			path = filepath.Join(root, name)
		}
		decoder, err := decoderFor(path)
		if err != nil {
			continue
		}
		maxFrames := maxUint32(prevFrames, preloadSize)
		channels, info, err := decoder.decode(path, maxFrames)
		if err != nil {
			continue
		}
		newPreloadedFrames := maxFrames
		if maxFrames == 0 || info.Frames < maxFrames {
			newPreloadedFrames = info.Frames
		}
		channels = oversampleChannels(channels, factor)
		fp.mu.Lock()
		fp.preloaded[name] = PreloadedEntry{
			Data:            channels,
			SampleRate:      info.SampleRate * float32(factor),
			Info:            info,
			PreloadedFrames: newPreloadedFrames,
		}
		fp.mu.Unlock()
	}
}

// OversamplingFactor returns the current oversampling factor.
func (fp *FilePool) OversamplingFactor() Oversampling {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.oversamplingFactor
}

// EmptyFileLoadingQueues drops every request currently queued for
// background loading without loading them; any in-flight promises are
// left unfulfilled. Not safe to call from the audio thread: it busy
// waits for the queues to drain.
func (fp *FilePool) EmptyFileLoadingQueues() {
	for {
		select {
		case <-fp.promiseQueue:
		case <-fp.filledQueue:
		default:
			if fp.threadsLoading.Load() == 0 {
				return
			}
		}
	}
}

// WaitForBackgroundLoading blocks until the promise queue is empty and
// no loader goroutine is decoding.
func (fp *FilePool) WaitForBackgroundLoading() {
	for len(fp.promiseQueue) > 0 || fp.threadsLoading.Load() > 0 {
		time.Sleep(time.Millisecond)
	}
}
