package face

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMultiSourceMergesFrames(t *testing.T) {
	one := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		emit(Frame{Blendshapes: BlendshapeFrame{"a": 1}})
		return nil
	})
	two := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		emit(Frame{Blendshapes: BlendshapeFrame{"b": 1}})
		emit(Frame{Blendshapes: BlendshapeFrame{"c": 1}})
		return nil
	})

	var mu sync.Mutex
	got := 0
	err := MultiSource{one, nil, two}.Run(context.Background(), func(Frame) {
		mu.Lock()
		got++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 3 {
		t.Errorf("frames = %d, want 3", got)
	}
}

func TestMultiSourceFailureCancelsOthers(t *testing.T) {
	boom := errors.New("bind failed")
	failing := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		return boom
	})
	waiting := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		<-ctx.Done()
		return ctx.Err()
	})

	done := make(chan error, 1)
	go func() { done <- MultiSource{waiting, failing}.Run(context.Background(), func(Frame) {}) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a source failed")
	}
}

func TestMultiSourceCancelIsClean(t *testing.T) {
	waiting := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (MultiSource{waiting}).Run(ctx, func(Frame) {}); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

func TestMultiSourceEmpty(t *testing.T) {
	if err := (MultiSource{nil}).Run(context.Background(), func(Frame) {}); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
}

func TestMultiSourceOptionalFailureKeepsOthers(t *testing.T) {
	boom := errors.New("address already in use")
	failing := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		return boom
	})
	reported := make(chan error, 1)
	frames := make(chan Frame, 1)
	// 可选来源失败后，另一个来源仍要能继续出帧
	keyboard := FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		<-reported
		emit(Frame{Blendshapes: BlendshapeFrame{"mouthSmileLeft": 1}})
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	src := MultiSource{keyboard, Optional(failing, func(err error) { reported <- err })}
	go func() { done <- src.Run(ctx, func(f Frame) { frames <- f }) }()

	select {
	case <-frames:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame from the remaining source")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOptional(t *testing.T) {
	boom := errors.New("bind failed")
	tests := []struct {
		name       string
		err        error
		cancelled  bool
		wantReport bool
	}{
		{"出错时回调", boom, false, true},
		{"正常结束不回调", nil, false, false},
		{"取消不回调", context.Canceled, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelled {
				cancel()
			}
			var got error
			src := Optional(FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
				return tt.err
			}), func(err error) { got = err })

			if err := src.Run(ctx, func(Frame) {}); err != nil {
				t.Errorf("Run = %v, want nil", err)
			}
			if (got != nil) != tt.wantReport {
				t.Errorf("reported = %v, want report %v", got, tt.wantReport)
			}
		})
	}
}
