package face

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordedFrame 录像中的一帧，T 为相对录像开始的毫秒数
type RecordedFrame struct {
	T           int64           `yaml:"t"`
	Blendshapes BlendshapeFrame `yaml:"blendshapes,omitempty"`
	Landmarks   [][]Landmark    `yaml:"landmarks,omitempty"`
}

// Recording 一段人脸追踪录像
type Recording struct {
	Name   string          `yaml:"name"`
	Frames []RecordedFrame `yaml:"frames"`
}

// Duration 录像总时长
func (r *Recording) Duration() time.Duration {
	if len(r.Frames) == 0 {
		return 0
	}
	return time.Duration(r.Frames[len(r.Frames)-1].T) * time.Millisecond
}

// FrameAt 把第 i 帧转换为以 base 为起点的 Frame
func (r *Recording) FrameAt(i int, base time.Time) Frame {
	rf := r.Frames[i]
	return Frame{
		Time:        base.Add(time.Duration(rf.T) * time.Millisecond),
		Blendshapes: rf.Blendshapes,
		Landmarks:   rf.Landmarks,
	}
}

// LoadRecording 解析 YAML 录像，帧按时间排序
func LoadRecording(r io.Reader) (*Recording, error) {
	var rec Recording
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse recording: %w", err)
	}
	for i, f := range rec.Frames {
		if f.T < 0 {
			return nil, fmt.Errorf("frame %d: negative timestamp %d", i, f.T)
		}
	}
	sort.SliceStable(rec.Frames, func(i, j int) bool {
		return rec.Frames[i].T < rec.Frames[j].T
	})
	return &rec, nil
}

// LoadRecordingFile 从文件加载录像
func LoadRecordingFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", path, err)
	}
	defer f.Close()
	return LoadRecording(f)
}

// ReplaySource 按录像时间轴播放帧的来源
type ReplaySource struct {
	rec   *Recording
	speed float64
	loop  bool
	now   func() time.Time
}

// ReplayOption 回放选项
type ReplayOption func(*ReplaySource)

// WithSpeed 播放倍速，0 表示不等待，尽快播放
func WithSpeed(speed float64) ReplayOption {
	return func(s *ReplaySource) { s.speed = speed }
}

// WithLoop 播放结束后从头循环
func WithLoop() ReplayOption {
	return func(s *ReplaySource) { s.loop = true }
}

// WithClock 指定帧时间的起点时钟
func WithClock(now func() time.Time) ReplayOption {
	return func(s *ReplaySource) { s.now = now }
}

// NewReplaySource 创建回放来源，默认 1 倍速、不循环
func NewReplaySource(rec *Recording, opts ...ReplayOption) *ReplaySource {
	s := &ReplaySource{rec: rec, speed: 1, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 实现 FrameSource
func (s *ReplaySource) Run(ctx context.Context, emit func(Frame)) error {
	if s.rec == nil || len(s.rec.Frames) == 0 {
		return fmt.Errorf("recording is empty")
	}

	for {
		base := s.now()
		var prevT int64
		for i, rf := range s.rec.Frames {
			if s.speed > 0 && rf.T > prevT {
				wait := time.Duration(float64(time.Duration(rf.T-prevT)*time.Millisecond) / s.speed)
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
			prevT = rf.T
			emit(s.rec.FrameAt(i, base))
		}
		if !s.loop {
			return nil
		}
	}
}
