package game

import (
	"fmt"
	"slices"

	"github.com/decker502/tindahan/pkg/config"
)

// TierRange 返回关卡可抽取的顾客档位范围（闭区间），见 config.TierRange
func TierRange(level int) (lo, hi int) {
	return config.TierRange(level)
}

// BandFor 顾客档位对应的对话难度
func BandFor(tier int) []config.SequenceDifficulty {
	return config.BandFor(tier)
}

// CustomerPool 关卡档位范围内的顾客，excludeUsed 时排除已出场的
func CustomerPool(customers []config.Customer, level int, used []string, excludeUsed bool) []config.Customer {
	lo, hi := TierRange(level)
	var pool []config.Customer
	for _, c := range customers {
		if c.Difficulty < lo || c.Difficulty > hi {
			continue
		}
		if excludeUsed && slices.Contains(used, c.ID) {
			continue
		}
		pool = append(pool, c)
	}
	return pool
}

// SelectCustomer 为关卡随机抽取顾客
// 优先选没出场过的，全部出场过时允许重复
func SelectCustomer(rng RandomSource, customers []config.Customer, level int, used []string) (*config.Customer, error) {
	pool := CustomerPool(customers, level, used, true)
	if len(pool) == 0 {
		pool = CustomerPool(customers, level, used, false)
	}
	if len(pool) == 0 {
		lo, hi := TierRange(level)
		return nil, fmt.Errorf("level %d tier [%d,%d]: %w", level, lo, hi, ErrNoCustomers)
	}
	chosen := pickRandom(rng, pool)
	return &chosen, nil
}

// SelectSequences 根据顾客档位和标签为关卡挑选对话序列
// 标签匹配（性格或年龄段）的序列优先；不够时用同难度的其他序列补足；
// 顺序随机，数量为 max(1, SequenceCount)
func SelectSequences(rng RandomSource, all []config.ConversationSequence, level config.LevelData, customer *config.Customer) ([]config.ConversationSequence, error) {
	want := max(1, level.SequenceCount)
	band := BandFor(customer.Difficulty)

	var tagged, others []config.ConversationSequence
	for _, seq := range all {
		if !slices.Contains(band, seq.Difficulty) {
			continue
		}
		if seq.HasAnyTag(customer.Temperament, customer.AgeGroup) {
			tagged = append(tagged, seq)
		} else {
			others = append(others, seq)
		}
	}
	if len(tagged)+len(others) == 0 {
		return nil, fmt.Errorf("customer %s band %v: %w", customer.ID, band, ErrNoSequences)
	}

	shuffle(rng, tagged)
	picked := tagged
	if len(picked) < want {
		shuffle(rng, others)
		picked = append(picked, others[:min(len(others), want-len(picked))]...)
	}
	if len(picked) > want {
		picked = picked[:want]
	}
	shuffle(rng, picked)
	return slices.Clone(picked), nil
}
