package scenes

import (
	"context"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/types"
)

const (
	// 模拟头部动作时鼻尖的摆动幅度和频率
	keyboardSwingAmplitude = 0.04
	keyboardSwingHz        = 3.0
	// 按住表情键时的系数强度
	keyboardShapeStrength = 0.85
	keyboardQueueSize     = 4
)

// 模拟人脸的静止位置（归一化坐标）
var (
	keyboardForehead = face.Landmark{X: 0.5, Y: 0.3}
	keyboardNoseRest = face.Landmark{X: 0.5, Y: 0.5}
)

// emotionKeys 表情键位
var emotionKeys = []struct {
	key     ebiten.Key
	emotion types.Emotion
}{
	{ebiten.KeyH, types.EmotionHappy},
	{ebiten.KeyS, types.EmotionSad},
	{ebiten.KeyA, types.EmotionAngry},
	{ebiten.KeyD, types.EmotionDisgusted},
	{ebiten.KeyU, types.EmotionSurprised},
}

// KeyState 一帧中按住的模拟键
type KeyState struct {
	Emotion types.Emotion // EmotionNone 表示没有按表情键
	Nod     bool          // 上下方向键
	Shake   bool          // 左右方向键
}

// Idle 是否没有按任何模拟键
func (k KeyState) Idle() bool {
	return k.Emotion == types.EmotionNone && !k.Nod && !k.Shake
}

// KeyboardSource 用键盘模拟人脸追踪，没有摄像头时也能玩
//
// Feed 在游戏 goroutine 中接收按键状态并生成帧；Run 在检测器的来源
// goroutine 中把这些帧转交给 emit。只在按住模拟键时产生帧，
// 松开后补一帧中性表情，所以可以和追踪桥接同时使用。
type KeyboardSource struct {
	now    func() time.Time
	frames chan face.Frame

	clock float64 // 摆动相位用的累计时间
	prev  KeyState
}

// NewKeyboardSource 创建键盘来源，now 为 nil 时使用 time.Now
func NewKeyboardSource(now func() time.Time) *KeyboardSource {
	if now == nil {
		now = time.Now
	}
	return &KeyboardSource{
		now:    now,
		frames: make(chan face.Frame, keyboardQueueSize),
	}
}

// Run 实现 face.FrameSource
func (k *KeyboardSource) Run(ctx context.Context, emit func(face.Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-k.frames:
			emit(frame)
		}
	}
}

// Feed 按当前按键推送一帧，每个 tick 调用一次
func (k *KeyboardSource) Feed(keys KeyState, dt float64) {
	frame, ok := k.Step(keys, dt)
	if !ok {
		return
	}
	// 来源没在运行时丢掉最旧的帧
	for {
		select {
		case k.frames <- frame:
			return
		default:
		}
		select {
		case <-k.frames:
		default:
		}
	}
}

// Step 根据按键状态推进一帧，第二个返回值表示这一帧是否需要发送
func (k *KeyboardSource) Step(keys KeyState, dt float64) (face.Frame, bool) {
	prev := k.prev
	k.prev = keys

	if keys.Idle() {
		k.clock = 0
		if prev.Idle() {
			return face.Frame{}, false
		}
		// 刚松开：回到中性表情
		return face.Frame{Time: k.now(), Blendshapes: SynthesizeBlendshapes(types.EmotionNone)}, true
	}

	k.clock += max(dt, 0)
	frame := face.Frame{
		Time:        k.now(),
		Blendshapes: SynthesizeBlendshapes(keys.Emotion),
	}
	if keys.Nod || keys.Shake {
		frame.Landmarks = [][]face.Landmark{SynthesizeLandmarks(keys, k.clock)}
	}
	return frame, true
}

// SynthesizeBlendshapes 生成能被分类为指定表情的系数
// EmotionNone 和 EmotionNeutral 返回全零的非空表（有脸、中性），不是“没有脸”
func SynthesizeBlendshapes(emotion types.Emotion) face.BlendshapeFrame {
	v := keyboardShapeStrength
	switch emotion {
	case types.EmotionHappy:
		return face.BlendshapeFrame{"mouthSmileLeft": v, "mouthSmileRight": v}
	case types.EmotionSad:
		return face.BlendshapeFrame{"mouthFrownLeft": v, "mouthFrownRight": v, "browInnerUp": 0.5}
	case types.EmotionAngry:
		return face.BlendshapeFrame{"browDownLeft": v, "browDownRight": v}
	case types.EmotionDisgusted:
		return face.BlendshapeFrame{"noseSneerLeft": v, "noseSneerRight": v}
	case types.EmotionSurprised:
		return face.BlendshapeFrame{"eyeWideLeft": v, "eyeWideRight": v, "jawOpen": 0.6}
	default:
		return face.BlendshapeFrame{"mouthSmileLeft": 0, "mouthSmileRight": 0}
	}
}

// SynthesizeLandmarks 生成一张脸的关键点（额头、鼻尖），鼻尖按时间 t 摆动
// 点头时上下摆，摇头时左右摆；两者同时按下时优先点头
func SynthesizeLandmarks(keys KeyState, t float64) []face.Landmark {
	nose := keyboardNoseRest
	offset := keyboardSwingAmplitude * math.Sin(2*math.Pi*keyboardSwingHz*t)
	switch {
	case keys.Nod:
		nose.Y += offset
	case keys.Shake:
		nose.X += offset
	}
	return []face.Landmark{keyboardForehead, nose}
}

// ReadKeyState 读取 ebiten 按键状态
func ReadKeyState() KeyState {
	var keys KeyState
	for _, ek := range emotionKeys {
		if ebiten.IsKeyPressed(ek.key) {
			keys.Emotion = ek.emotion
			break
		}
	}
	keys.Nod = ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyArrowDown)
	keys.Shake = ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyArrowRight)
	return keys
}
