package systems

import (
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
)

// fakeEngine 记录系统调用的引擎替身
// 完成类操作把阶段切到 dialog 并推进 generation
type fakeEngine struct {
	state      game.GameState
	generation uint64
	calls      []string
	progress   []float64
	warnings   []bool
	countdowns []int
}

func newFakeEngine(phase game.Phase) *fakeEngine {
	return &fakeEngine{state: game.GameState{Phase: phase}, generation: 1}
}

func (f *fakeEngine) State() game.GameState { return f.state }
func (f *fakeEngine) Generation() uint64    { return f.generation }
func (f *fakeEngine) Phase() game.Phase     { return f.state.Phase }

func (f *fakeEngine) UpdateFaceProgress(p float64) error {
	f.progress = append(f.progress, p)
	f.state.FaceCheckProgress = p
	return nil
}

func (f *fakeEngine) SetFaceWarning(w bool, c int) error {
	f.warnings = append(f.warnings, w)
	f.countdowns = append(f.countdowns, c)
	return nil
}

func (f *fakeEngine) finish(op string) error {
	f.calls = append(f.calls, op)
	f.state.Phase = game.PhaseDialog
	f.generation++
	return nil
}

func (f *fakeEngine) CompleteFaceCheck() error          { return f.finish("CompleteFaceCheck") }
func (f *fakeEngine) CompleteWrongActionPenalty() error { return f.finish("CompleteWrongActionPenalty") }
func (f *fakeEngine) CompleteHeadGesture() error        { return f.finish("CompleteHeadGesture") }
func (f *fakeEngine) AdvanceLine() error                { return f.finish("AdvanceLine") }

// FailFaceCheck 停留在 face_check 并显示妈妈台词，与真实引擎一致
func (f *fakeEngine) FailFaceCheck() error {
	f.calls = append(f.calls, "FailFaceCheck")
	f.state.ShowMom = true
	f.generation++
	return nil
}

func (f *fakeEngine) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// fakeDetector 固定输出的表情与手势来源
type fakeDetector struct {
	emotion types.Emotion
	gesture types.HeadGesture
	clears  int
}

func (f *fakeDetector) CurrentEmotion() types.Emotion  { return f.emotion }
func (f *fakeDetector) LastGesture() types.HeadGesture { return f.gesture }
func (f *fakeDetector) ClearGesture() {
	f.clears++
	f.gesture = types.GestureNone
}

// fakeTicker 记录收到的帧间隔
type fakeTicker struct {
	total float64
	calls int
}

func (f *fakeTicker) Update(dt float64) {
	f.total += dt
	f.calls++
}

// fakeDrainer 每次返回固定数量
type fakeDrainer struct{ n int }

func (f fakeDrainer) Drain() int { return f.n }
