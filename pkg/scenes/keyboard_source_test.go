package scenes

import (
	"context"
	"testing"
	"time"

	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/types"
)

// fakeClock 每次调用前进固定步长
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0), step: time.Second / 60}
}

func TestSynthesizeBlendshapesClassify(t *testing.T) {
	tests := []struct {
		name string
		in   types.Emotion
		want types.Emotion
	}{
		{"开心", types.EmotionHappy, types.EmotionHappy},
		{"难过", types.EmotionSad, types.EmotionSad},
		{"生气", types.EmotionAngry, types.EmotionAngry},
		{"厌恶", types.EmotionDisgusted, types.EmotionDisgusted},
		{"惊讶", types.EmotionSurprised, types.EmotionSurprised},
		{"没有按键", types.EmotionNone, types.EmotionNeutral},
		{"中性", types.EmotionNeutral, types.EmotionNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shapes := SynthesizeBlendshapes(tt.in)
			if len(shapes) == 0 {
				t.Fatal("blendshapes must not be empty (empty means no face)")
			}
			got, conf := face.NewEmotionClassifier().Classify(shapes)
			if got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
			if conf <= 0 {
				t.Errorf("confidence = %v, want > 0", conf)
			}
		})
	}
}

func TestKeyboardStepEmitsOnlyWhileHeld(t *testing.T) {
	k := NewKeyboardSource(newFakeClock().now)
	dt := 1.0 / 60

	if _, ok := k.Step(KeyState{}, dt); ok {
		t.Error("idle keyboard should not emit")
	}

	frame, ok := k.Step(KeyState{Emotion: types.EmotionHappy}, dt)
	if !ok || frame.Blendshapes["mouthSmileLeft"] == 0 {
		t.Fatalf("held key frame = %+v, %v", frame, ok)
	}
	if frame.Landmarks != nil {
		t.Error("emotion key alone should not move the head")
	}

	frame, ok = k.Step(KeyState{}, dt)
	if !ok {
		t.Fatal("release should emit a neutral frame")
	}
	if got, _ := face.NewEmotionClassifier().Classify(frame.Blendshapes); got != types.EmotionNeutral {
		t.Errorf("release frame classified as %v", got)
	}

	if _, ok := k.Step(KeyState{}, dt); ok {
		t.Error("keyboard should stay silent after the release frame")
	}
}

func TestKeyboardHeadGestures(t *testing.T) {
	tests := []struct {
		name string
		keys KeyState
		want types.HeadGesture
	}{
		{"上下键点头", KeyState{Nod: true}, types.GestureNod},
		{"左右键摇头", KeyState{Shake: true}, types.GestureShake},
		{"同时按住时点头优先", KeyState{Nod: true, Shake: true}, types.GestureNod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			k := NewKeyboardSource(clock.now)
			tracker := face.NewGestureTracker(clock.now)

			for i := 0; i < 30; i++ {
				frame, ok := k.Step(tt.keys, 1.0/60)
				if !ok || len(frame.Landmarks) != 1 {
					t.Fatalf("step %d: frame = %+v, %v", i, frame, ok)
				}
				tracker.Update(face.LandmarkFrame{Time: frame.Time, Faces: frame.Landmarks})
			}
			if got := tracker.Last(); got != tt.want {
				t.Errorf("gesture = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesizeLandmarksAtRest(t *testing.T) {
	lm := SynthesizeLandmarks(KeyState{}, 0.3)
	if len(lm) <= face.NoseTipIndex {
		t.Fatalf("got %d landmarks", len(lm))
	}
	if lm[face.NoseTipIndex] != keyboardNoseRest {
		t.Errorf("nose = %+v, want rest position", lm[face.NoseTipIndex])
	}
}

func TestKeyboardRunForwardsFrames(t *testing.T) {
	k := NewKeyboardSource(nil)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan face.Frame, 1)
	done := make(chan error, 1)
	go func() {
		done <- k.Run(ctx, func(f face.Frame) { got <- f })
	}()

	k.frames <- face.Frame{Blendshapes: SynthesizeBlendshapes(types.EmotionAngry)}
	select {
	case f := <-got:
		if f.Blendshapes["browDownLeft"] == 0 {
			t.Errorf("forwarded frame = %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame was not forwarded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
