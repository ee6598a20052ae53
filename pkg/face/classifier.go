package face

import (
	"math"

	"github.com/decker502/tindahan/pkg/types"
)

const (
	// neutralBaseline 中性表情的基准分，其他表情越强中性分越低
	neutralBaseline = 0.5
	// minNonNeutralScore 非中性表情的最低分，低于该值强制为中性
	minNonNeutralScore = 0.1
	// 平滑系数：上一次置信度与本次原始分的权重
	smoothingPrevWeight = 0.4
	smoothingRawWeight  = 0.6
	// confidenceGain 平滑后乘的放大系数
	confidenceGain = 2.0
)

// EmotionClassifier 把 blendshape 系数映射为表情和置信度
// 持有上一次的置信度用于平滑，不是并发安全的
type EmotionClassifier struct {
	prevConfidence float64
}

// NewEmotionClassifier 创建分类器
func NewEmotionClassifier() *EmotionClassifier {
	return &EmotionClassifier{}
}

// Scores 计算六种表情的原始分
func Scores(shapes BlendshapeFrame) map[types.Emotion]float64 {
	avg := func(a, b string) float64 {
		return (shapes[a] + shapes[b]) / 2
	}

	scores := map[types.Emotion]float64{
		types.EmotionHappy: avg("mouthSmileLeft", "mouthSmileRight"),
		types.EmotionSad:   avg("mouthFrownLeft", "mouthFrownRight") + shapes["browInnerUp"]*0.3,
		types.EmotionAngry: avg("browDownLeft", "browDownRight") +
			shapes["mouthShrugUpper"]*0.2 + shapes["jawForward"]*0.2,
		types.EmotionDisgusted: avg("noseSneerLeft", "noseSneerRight") + shapes["mouthUpperUpLeft"]*0.3,
		types.EmotionSurprised: avg("eyeWideLeft", "eyeWideRight") +
			(shapes["browOuterUpLeft"]+shapes["browOuterUpRight"])/4 + shapes["jawOpen"]*0.3,
	}

	maxOther := 0.0
	for _, s := range scores {
		maxOther = math.Max(maxOther, s)
	}
	scores[types.EmotionNeutral] = math.Max(0, neutralBaseline-maxOther)
	return scores
}

// Classify 返回表情和平滑后的置信度（0-1）
// 空帧返回 neutral / 0，并清空平滑记忆
func (c *EmotionClassifier) Classify(shapes BlendshapeFrame) (types.Emotion, float64) {
	if len(shapes) == 0 {
		c.prevConfidence = 0
		return types.EmotionNeutral, 0
	}

	scores := Scores(shapes)

	// 按固定顺序取最大值，只有严格大于才替换
	best := types.EmotionNeutral
	bestScore := 0.0
	for _, e := range types.AllEmotions {
		if scores[e] > bestScore {
			best = e
			bestScore = scores[e]
		}
	}

	if best != types.EmotionNeutral && bestScore < minNonNeutralScore {
		best = types.EmotionNeutral
		bestScore = scores[types.EmotionNeutral]
	}

	smoothed := smoothingPrevWeight*c.prevConfidence + smoothingRawWeight*bestScore
	confidence := math.Min(math.Max(smoothed*confidenceGain, 0), 1)
	c.prevConfidence = confidence
	return best, confidence
}

// Reset 清空平滑记忆
func (c *EmotionClassifier) Reset() {
	c.prevConfidence = 0
}
