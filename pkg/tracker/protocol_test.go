package tracker

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   error
		anyErr    bool
		wantShape int // 期望的 blendshape 数，-1 表示 nil
		wantFaces int
	}{
		{
			name:      "完整消息",
			input:     `{"t":1700000000000,"blendshapes":{"mouthSmileLeft":0.8,"mouthSmileRight":0.7},"landmarks":[[{"x":0.5,"y":0.4,"z":0},{"x":0.5,"y":0.5,"z":-0.1}]]}`,
			wantShape: 2,
			wantFaces: 1,
		},
		{
			name:      "只有关键点",
			input:     `{"landmarks":[[{"x":0.1,"y":0.1},{"x":0.2,"y":0.2}]]}`,
			wantShape: -1,
			wantFaces: 1,
		},
		{
			name:      "空 blendshapes 表示没有脸",
			input:     `{"blendshapes":{}}`,
			wantShape: 0,
		},
		{
			name:    "两个字段都缺失",
			input:   `{"t":5}`,
			wantErr: ErrEmptyMessage,
		},
		{
			name:    "负时间戳",
			input:   `{"t":-1,"blendshapes":{}}`,
			wantErr: ErrNegativeTime,
		},
		{
			name:    "系数超出范围",
			input:   `{"blendshapes":{"jawOpen":1.5}}`,
			wantErr: ErrBlendshapeRange,
		},
		{
			name:    "关键点不足",
			input:   `{"landmarks":[[{"x":0.1,"y":0.1}]]}`,
			wantErr: ErrLandmarkTooShort,
		},
		{
			name:   "不是 JSON",
			input:  `hello`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.input))
			if tt.wantErr != nil || tt.anyErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", msg)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}

			frame := msg.Frame(time.Unix(0, 0))
			if tt.wantShape < 0 {
				if frame.Blendshapes != nil {
					t.Errorf("Blendshapes = %v, want nil", frame.Blendshapes)
				}
			} else if frame.Blendshapes == nil || len(frame.Blendshapes) != tt.wantShape {
				t.Errorf("Blendshapes = %v, want %d entries", frame.Blendshapes, tt.wantShape)
			}
			if len(frame.Landmarks) != tt.wantFaces {
				t.Errorf("faces = %d, want %d", len(frame.Landmarks), tt.wantFaces)
			}
		})
	}
}

func TestMessageFrameTime(t *testing.T) {
	received := time.UnixMilli(42_000)

	withT := TrackerMessage{T: 1_000, Blendshapes: map[string]float64{}}
	if got := withT.Frame(received).Time; !got.Equal(time.UnixMilli(1_000)) {
		t.Errorf("frame time = %v, want message time", got)
	}

	withoutT := TrackerMessage{Blendshapes: map[string]float64{}}
	if got := withoutT.Frame(received).Time; !got.Equal(received) {
		t.Errorf("frame time = %v, want receive time", got)
	}
}
