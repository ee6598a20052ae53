package config

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/decker502/tindahan/pkg/types"
	"gopkg.in/yaml.v3"
)

// 内容文件在数据目录下的相对路径
const (
	CustomersFile = "content/customers.yaml"
	SequencesFile = "content/sequences.yaml"
	LevelsFile    = "content/levels.yaml"
	ReactionsFile = "content/reactions.yaml"
)

// 顾客难度档位范围
const (
	MinCustomerTier = 1
	MaxCustomerTier = 6
)

// SequenceDifficulty 对话序列难度
type SequenceDifficulty string

const (
	DifficultyEasy    SequenceDifficulty = "easy"
	DifficultyMedium  SequenceDifficulty = "medium"
	DifficultyHard    SequenceDifficulty = "hard"
	DifficultyExtreme SequenceDifficulty = "extreme"
)

// Valid 是否为已定义的难度
func (d SequenceDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExtreme:
		return true
	}
	return false
}

// Customer 顾客数据
type Customer struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Difficulty  int      `yaml:"difficulty"`  // 1-6 档
	Description string   `yaml:"description"`
	Temperament string   `yaml:"temperament"` // 用作对话序列标签
	AgeGroup    string   `yaml:"ageGroup"`    // 用作对话序列标签
	Gender      string   `yaml:"gender"`
	Greetings   []string `yaml:"greetings"`
	Farewells   []string `yaml:"farewells"`
}

// ConversationSequence 一段完整的顾客对话
type ConversationSequence struct {
	ID         string             `yaml:"id"`
	Difficulty SequenceDifficulty `yaml:"difficulty"`
	Tags       []string           `yaml:"tags"`
	Lines      []DialogLine       `yaml:"lines"`
}

// HasAnyTag 序列标签是否包含任意一个给定标签
func (s *ConversationSequence) HasAnyTag(tags ...string) bool {
	for _, have := range s.Tags {
		for _, want := range tags {
			if want != "" && have == want {
				return true
			}
		}
	}
	return false
}

// LevelData 关卡参数
type LevelData struct {
	Level                  int     `yaml:"level"`
	SequenceCount          int     `yaml:"sequenceCount"`
	HoldDurationMultiplier float64 `yaml:"holdDurationMultiplier"`
	Description            string  `yaml:"description"`
}

// MomReactions 妈妈的反应台词池
type MomReactions struct {
	Fail        []string `yaml:"fail"`
	WrongAction []string `yaml:"wrongAction"`
	Success     []string `yaml:"success"`
	GameOver    []string `yaml:"gameOver"`
	Victory     []string `yaml:"victory"`
}

// ContentConfig 全部静态内容，加载后只读
type ContentConfig struct {
	Customers []Customer
	Sequences []ConversationSequence
	Levels    []LevelData
	Reactions MomReactions
}

// Level 返回第 n 关（从 1 开始）的参数
func (c *ContentConfig) Level(n int) (LevelData, bool) {
	if n < 1 || n > len(c.Levels) {
		return LevelData{}, false
	}
	return c.Levels[n-1], true
}

// LevelCount 关卡总数
func (c *ContentConfig) LevelCount() int {
	return len(c.Levels)
}

// LoadContent 从文件系统加载全部内容文件
// 参数：
//
//	fsys - 数据根目录（包含 content/ 子目录），可以是嵌入文件系统或 os.DirFS
//
// 返回：
//
//	*ContentConfig - 解析并校验后的内容
//	error - 读取、解析或校验失败时返回
func LoadContent(fsys fs.FS) (*ContentConfig, error) {
	var customers struct {
		Customers []Customer `yaml:"customers"`
	}
	if err := decodeFile(fsys, CustomersFile, &customers); err != nil {
		return nil, err
	}

	var sequences struct {
		Sequences []ConversationSequence `yaml:"sequences"`
	}
	if err := decodeFile(fsys, SequencesFile, &sequences); err != nil {
		return nil, err
	}

	var levels struct {
		Levels []LevelData `yaml:"levels"`
	}
	if err := decodeFile(fsys, LevelsFile, &levels); err != nil {
		return nil, err
	}

	var reactions MomReactions
	if err := decodeFile(fsys, ReactionsFile, &reactions); err != nil {
		return nil, err
	}

	content := &ContentConfig{
		Customers: customers.Customers,
		Sequences: sequences.Sequences,
		Levels:    levels.Levels,
		Reactions: reactions,
	}
	applyContentDefaults(content)

	if err := ValidateContent(content); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return content, nil
}

func decodeFile(fsys fs.FS, name string, out interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read content file %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse content YAML from %s: %w", path.Base(name), err)
	}
	return nil
}

// applyContentDefaults 填充可省略的字段
func applyContentDefaults(c *ContentConfig) {
	for i := range c.Levels {
		if c.Levels[i].HoldDurationMultiplier <= 0 {
			c.Levels[i].HoldDurationMultiplier = 1
		}
		if c.Levels[i].SequenceCount < 1 {
			c.Levels[i].SequenceCount = 1
		}
	}
}

// ValidateContent 校验内容的完整性
func ValidateContent(c *ContentConfig) error {
	if len(c.Customers) == 0 {
		return fmt.Errorf("at least one customer is required")
	}
	if len(c.Sequences) == 0 {
		return fmt.Errorf("at least one sequence is required")
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("at least one level is required")
	}

	seen := make(map[string]bool, len(c.Customers))
	for i, customer := range c.Customers {
		if customer.ID == "" {
			return fmt.Errorf("customer %d: id is required", i)
		}
		if seen[customer.ID] {
			return fmt.Errorf("customer %s: duplicate id", customer.ID)
		}
		seen[customer.ID] = true
		if customer.Difficulty < MinCustomerTier || customer.Difficulty > MaxCustomerTier {
			return fmt.Errorf("customer %s: difficulty %d out of range [%d,%d]",
				customer.ID, customer.Difficulty, MinCustomerTier, MaxCustomerTier)
		}
	}

	seen = make(map[string]bool, len(c.Sequences))
	for i, seq := range c.Sequences {
		if seq.ID == "" {
			return fmt.Errorf("sequence %d: id is required", i)
		}
		if seen[seq.ID] {
			return fmt.Errorf("sequence %s: duplicate id", seq.ID)
		}
		seen[seq.ID] = true
		if !seq.Difficulty.Valid() {
			return fmt.Errorf("sequence %s: unknown difficulty %q", seq.ID, seq.Difficulty)
		}
		if len(seq.Lines) == 0 {
			return fmt.Errorf("sequence %s: at least one line is required", seq.ID)
		}
		for j, line := range seq.Lines {
			if err := validateLine(line); err != nil {
				return fmt.Errorf("sequence %s, line %d: %w", seq.ID, j, err)
			}
		}
	}

	for i, level := range c.Levels {
		if level.Level != i+1 {
			return fmt.Errorf("level %d: levels must be numbered consecutively from 1 (got %d)", i+1, level.Level)
		}
	}

	if err := validatePools(c); err != nil {
		return err
	}

	pools := map[string][]string{
		"fail":        c.Reactions.Fail,
		"wrongAction": c.Reactions.WrongAction,
		"success":     c.Reactions.Success,
		"gameOver":    c.Reactions.GameOver,
		"victory":     c.Reactions.Victory,
	}
	for name, pool := range pools {
		if len(pool) == 0 {
			return fmt.Errorf("reactions: %s pool is empty", name)
		}
	}
	return nil
}

// TierRange 返回关卡可抽取的顾客档位范围（闭区间）
// 档位范围随关卡上移并逐渐放宽，第 6 关及以后固定为 [5,6]
func TierRange(level int) (lo, hi int) {
	switch {
	case level <= 1:
		return 1, 1
	case level == 2:
		return 1, 2
	case level == 3:
		return 2, 3
	case level == 4:
		return 3, 4
	case level == 5:
		return 4, 5
	default:
		return 5, 6
	}
}

// BandFor 顾客档位对应的对话难度
func BandFor(tier int) []SequenceDifficulty {
	switch {
	case tier <= 2:
		return []SequenceDifficulty{DifficultyEasy}
	case tier <= 4:
		return []SequenceDifficulty{DifficultyMedium}
	default:
		return []SequenceDifficulty{DifficultyHard, DifficultyExtreme}
	}
}

// validatePools 每一关都要能抽到顾客，抽到的每个档位都要有对应难度的序列
func validatePools(c *ContentConfig) error {
	tiers := make(map[int]bool, len(c.Customers))
	for _, customer := range c.Customers {
		tiers[customer.Difficulty] = true
	}
	bands := make(map[SequenceDifficulty]bool, len(c.Sequences))
	for _, seq := range c.Sequences {
		bands[seq.Difficulty] = true
	}

	for _, level := range c.Levels {
		lo, hi := TierRange(level.Level)
		found := false
		for tier := lo; tier <= hi; tier++ {
			if !tiers[tier] {
				continue
			}
			found = true
			if !slices.ContainsFunc(BandFor(tier), func(d SequenceDifficulty) bool { return bands[d] }) {
				return fmt.Errorf("level %d tier %d: no %s sequences", level.Level, tier, bandName(tier))
			}
		}
		if !found {
			return fmt.Errorf("level %d: no customers in tiers %d-%d", level.Level, lo, hi)
		}
	}
	return nil
}

// bandName 档位对应难度的显示名，如 "hard/extreme"
func bandName(tier int) string {
	band := BandFor(tier)
	names := make([]string, len(band))
	for i, d := range band {
		names[i] = string(d)
	}
	return strings.Join(names, "/")
}

func validateLine(line DialogLine) error {
	if !line.Speaker.Valid() {
		return fmt.Errorf("unknown speaker %q", line.Speaker)
	}
	if line.Text == "" {
		return fmt.Errorf("text is required")
	}

	action, ok := line.Check.(ActionCheck)
	if !ok {
		return nil
	}
	seen := map[types.ActionType]bool{action.Correct: true}
	for _, wrong := range action.Wrong {
		if seen[wrong] {
			return fmt.Errorf("action %s listed twice in choices", wrong)
		}
		seen[wrong] = true
	}
	return nil
}
