package face

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decker502/tindahan/pkg/types"
	"go.uber.org/zap"
)

// ErrNoSource 没有配置帧来源
var ErrNoSource = errors.New("no frame source configured")

// DefaultQueueSize 默认帧队列长度
const DefaultQueueSize = 8

// DetectorOptions 检测器选项
type DetectorOptions struct {
	Source    FrameSource
	QueueSize int              // 队列满时丢弃最旧的帧
	Now       func() time.Time // 手势识别使用的时钟，nil 表示 time.Now
	Logger    *zap.Logger
}

// Detector 人脸检测器
// 观察接口和 Submit*/Drain/ClearGesture 只能在游戏 goroutine 调用；
// 帧来源在独立 goroutine 中运行，只负责入队
type Detector struct {
	logger     *zap.Logger
	source     FrameSource
	classifier *EmotionClassifier
	gestures   *GestureTracker
	queue      chan Frame

	// 以下字段只在游戏 goroutine 中读写
	emotion       types.Emotion
	confidence    float64
	lastLandmarks [][]Landmark

	// 生命周期
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	frameSeen atomic.Bool
	dropped   atomic.Int64
	errMu     sync.Mutex
	errMsg    string
}

// NewDetector 创建检测器
func NewDetector(opts DetectorOptions) *Detector {
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		logger:     logger.Named("Detector"),
		source:     opts.Source,
		classifier: NewEmotionClassifier(),
		gestures:   NewGestureTracker(opts.Now),
		queue:      make(chan Frame, opts.QueueSize),
		emotion:    types.EmotionNeutral,
	}
}

// CurrentEmotion 当前表情，没有数据时为 neutral
func (d *Detector) CurrentEmotion() types.Emotion {
	return d.emotion
}

// Confidence 当前置信度（0-1）
func (d *Detector) Confidence() float64 {
	return d.confidence
}

// LastGesture 最近识别到的头部动作，没有时为 GestureNone
func (d *Detector) LastGesture() types.HeadGesture {
	return d.gestures.Last()
}

// LastLandmarks 最近一帧的关键点，相机关闭后为 nil
func (d *Detector) LastLandmarks() [][]Landmark {
	return d.lastLandmarks
}

// IsModelReady 本次启动后是否已收到过帧
func (d *Detector) IsModelReady() bool {
	return d.frameSeen.Load()
}

// IsCameraOn 帧来源是否已启动
func (d *Detector) IsCameraOn() bool {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	return d.done != nil
}

// IsRunning 帧来源是否仍在运行（来源自行结束后为 false）
func (d *Detector) IsRunning() bool {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if d.done == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// Err 返回面向玩家的错误信息，没有错误时为空字符串
func (d *Detector) Err() string {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.errMsg
}

// Dropped 因队列满而丢弃的帧数
func (d *Detector) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Detector) setErr(msg string) {
	d.errMu.Lock()
	d.errMsg = msg
	d.errMu.Unlock()
}

// ReportSourceError 记录某个可选来源的失败，其他来源照常运行
// 可在任意 goroutine 调用
func (d *Detector) ReportSourceError(name string, err error) {
	d.logger.Warn("frame source failed", zap.String("source", name), zap.Error(err))
	d.setErr(fmt.Sprintf("%s is not available: %v", name, err))
}

// Start 启动帧来源，重复调用不会启动第二个来源
func (d *Detector) Start(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.source == nil {
		d.setErr("Face tracking is not available: " + ErrNoSource.Error())
		return ErrNoSource
	}

	if d.done != nil {
		select {
		case <-d.done:
			// 上一个来源已经自行结束，可以重新启动
			d.cancel()
		default:
			return nil
		}
	}

	d.setErr("")
	d.frameSeen.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel, d.done = cancel, done

	go d.pump(runCtx, done)
	d.logger.Info("frame source started")
	return nil
}

func (d *Detector) pump(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := d.source.Run(ctx, d.enqueue)
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("frame source failed", zap.Error(err))
		d.setErr(fmt.Sprintf("Face tracking is not available: %v", err))
		return
	}
	d.logger.Debug("frame source finished")
}

// Stop 停止帧来源并等待其退出，重复调用是安全的
// 和关闭摄像头一样，会清空关键点、手势轨迹和队列中未处理的帧
func (d *Detector) Stop() {
	d.lifecycle.Lock()
	if d.done == nil {
		d.lifecycle.Unlock()
		return
	}
	d.cancel()
	<-d.done
	d.cancel, d.done = nil, nil
	d.lifecycle.Unlock()

	d.frameSeen.Store(false)
	d.lastLandmarks = nil
	d.gestures.Clear()
	for {
		select {
		case <-d.queue:
		default:
			d.logger.Info("frame source stopped")
			return
		}
	}
}

// enqueue 由来源 goroutine 调用，队列满时丢弃最旧的帧
func (d *Detector) enqueue(frame Frame) {
	d.frameSeen.Store(true)
	for {
		select {
		case d.queue <- frame:
			return
		default:
		}
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
		}
	}
}

// Drain 把队列中的帧依次应用到分类器，返回处理的帧数
func (d *Detector) Drain() int {
	n := 0
	for {
		select {
		case frame := <-d.queue:
			d.SubmitFrame(frame)
			n++
		default:
			return n
		}
	}
}

// SubmitFrame 直接应用一帧
func (d *Detector) SubmitFrame(frame Frame) {
	if frame.Blendshapes != nil {
		d.SubmitBlendshapeFrame(frame.Blendshapes)
	}
	if frame.Landmarks != nil {
		d.SubmitLandmarkFrame(LandmarkFrame{Time: frame.Time, Faces: frame.Landmarks})
	}
}

// SubmitBlendshapeFrame 用一帧表情系数更新当前表情
func (d *Detector) SubmitBlendshapeFrame(shapes BlendshapeFrame) {
	d.emotion, d.confidence = d.classifier.Classify(shapes)
}

// SubmitLandmarkFrame 用一帧关键点更新手势识别
func (d *Detector) SubmitLandmarkFrame(frame LandmarkFrame) {
	d.lastLandmarks = frame.Faces
	before := d.gestures.Last()
	if g, ok := d.gestures.Update(frame); ok && g != before {
		d.logger.Debug("head gesture detected", zap.String("gesture", g.String()))
	}
}

// ClearGesture 清空手势轨迹和识别结果，每次开始新的头部动作检查时调用
func (d *Detector) ClearGesture() {
	d.gestures.Clear()
}
