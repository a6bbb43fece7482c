package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/service/orchestrator"
)

// Acquirer is the orchestrator surface exposed over stdio
type Acquirer interface {
	CheckInstallation(ctx context.Context) domain.DetectionResult
	RequestDownload(ctx context.Context) (string, error)
	Cancel() bool
	State() orchestrator.Snapshot
}

// Bridge serves requests read from one stream and writes responses and
// download events to another. Long-running requests run on their own
// goroutine so cancel can be read while a download is in flight.
type Bridge struct {
	acq    Acquirer
	events event.EventDispatcher
	dec    *FrameDecoder
	enc    *FrameEncoder
	logger *zap.Logger
	wg     sync.WaitGroup
}

// Ensure Bridge implements event.EventHandler
var _ event.EventHandler = (*Bridge)(nil)

// NewBridge creates a bridge reading frames from r and writing frames to w
func NewBridge(r io.Reader, w io.Writer, acq Acquirer, events event.EventDispatcher, logger *zap.Logger) *Bridge {
	return &Bridge{
		acq:    acq,
		events: events,
		dec:    NewFrameDecoder(r),
		enc:    NewFrameEncoder(w),
		logger: logger,
	}
}

// Serve processes frames until the input ends, a fatal frame error occurs
// or ctx is cancelled. In-flight requests are cancelled and awaited before
// it returns. A clean end of input returns nil.
func (b *Bridge) Serve(ctx context.Context) error {
	var sub *event.Subscription
	if b.events != nil {
		sub = b.events.Subscribe(b)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		b.wg.Wait()
		if sub != nil {
			b.events.Unsubscribe(sub)
		}
	}()

	b.logger.Info("stdio bridge started")
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			payload, err := b.dec.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				b.logger.Info("stdio bridge input closed")
				return nil
			}
			return fmt.Errorf("stdio bridge: %w", err)
		case payload := <-frames:
			b.handleFrame(ctx, payload)
		}
	}
}

func (b *Bridge) handleFrame(ctx context.Context, payload []byte) {
	req, err := DecodeRequest(payload)
	if err != nil {
		b.logger.Warn("undecodable frame", zap.Error(err))
		b.respond(Response{Type: TypeResponse, Error: &ErrorBody{Message: err.Error(), Kind: kindInvalidRequest}})
		return
	}

	switch req.Method {
	case MethodCancel:
		b.respond(Response{Type: TypeResponse, ID: req.ID, Result: CancelResult{Cancelled: b.acq.Cancel()}})

	case MethodState:
		b.respond(Response{Type: TypeResponse, ID: req.ID, Result: b.acq.State()})

	case MethodDetect:
		b.async(func() {
			b.respond(Response{Type: TypeResponse, ID: req.ID, Result: b.acq.CheckInstallation(ctx)})
		})

	case MethodStartDownload:
		b.async(func() {
			path, err := b.acq.RequestDownload(ctx)
			if err != nil {
				b.respond(Response{Type: TypeResponse, ID: req.ID, Error: &ErrorBody{Message: err.Error(), Kind: domain.Kind(err)}})
				return
			}
			b.respond(Response{Type: TypeResponse, ID: req.ID, Result: PathResult{Path: path}})
		})

	default:
		b.respond(Response{Type: TypeResponse, ID: req.ID, Error: &ErrorBody{
			Message: fmt.Sprintf("unknown method %q", req.Method),
			Kind:    kindInvalidRequest,
		}})
	}
}

func (b *Bridge) async(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Bridge) respond(resp Response) {
	if err := b.enc.Encode(resp); err != nil {
		b.logger.Error("failed to write response", zap.Uint64("id", resp.ID), zap.Error(err))
	}
}

// Handle writes relayed download events as event frames
func (b *Bridge) Handle(ev event.DomainEvent) error {
	channel, payload, ok := event.ToWire(ev)
	if !ok {
		return nil
	}
	return b.enc.Encode(EventFrame{Type: TypeEvent, Name: channel, Payload: payload})
}

// HandledEvents returns the events relayed over stdio
func (b *Bridge) HandledEvents() []string {
	return event.RelayEvents()
}
