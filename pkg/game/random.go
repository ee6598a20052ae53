package game

import (
	"math/rand/v2"
	"time"
)

// RandomSource 随机数来源，测试时注入确定的序列
type RandomSource interface {
	// IntN 返回 [0, n) 内的整数，n > 0
	IntN(n int) int
}

// NewRandomSource 返回基于 PCG 的随机来源，seed 为 0 时按当前时间生成
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// shuffle 均匀打乱（Fisher-Yates）
func shuffle[T any](rng RandomSource, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// pickRandom 随机取一个元素，空切片返回零值
func pickRandom[T any](rng RandomSource, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[rng.IntN(len(items))]
}
