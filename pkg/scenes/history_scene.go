package scenes

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"

	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/history"
)

const (
	historyLimit        = 12
	historyQueryTimeout = 2 * time.Second
)

// RunLister 对局记录的只读查询
type RunLister interface {
	ListRecent(ctx context.Context, n int) ([]history.Run, error)
	Best(ctx context.Context) (history.Run, bool, error)
}

// HistoryScene 对局记录：最近几局和最高分
// 每次显示时重新查询
type HistoryScene struct {
	runs   RunLister // nil 表示没有启用记录
	scenes *game.SceneManager
	logger *zap.Logger
	font   text.Face

	width, height int

	recent  []history.Run
	best    history.Run
	hasBest bool
	loadErr error
}

// NewHistoryScene 创建对局记录场景
func NewHistoryScene(runs RunLister, scenes *game.SceneManager, width, height int, logger *zap.Logger) *HistoryScene {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryScene{
		runs:   runs,
		scenes: scenes,
		logger: logger.Named("HistoryScene"),
		font:   text.NewGoXFace(basicfont.Face7x13),
		width:  width,
		height: height,
	}
}

// OnEnter 实现 game.Enterer
func (s *HistoryScene) OnEnter() {
	s.Refresh()
}

// Refresh 重新读取记录
func (s *HistoryScene) Refresh() {
	s.recent, s.hasBest, s.loadErr = nil, false, nil
	if s.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()

	recent, err := s.runs.ListRecent(ctx, historyLimit)
	if err != nil {
		s.loadErr = err
		s.logger.Warn("failed to list runs", zap.Error(err))
		return
	}
	best, ok, err := s.runs.Best(ctx)
	if err != nil {
		s.loadErr = err
		s.logger.Warn("failed to load best run", zap.Error(err))
		return
	}
	s.recent, s.best, s.hasBest = recent, best, ok
}

// Update 任意返回键回到游戏
func (s *HistoryScene) Update(deltaTime float64) {
	for _, key := range []ebiten.Key{ebiten.KeyTab, ebiten.KeyEscape, ebiten.KeyEnter} {
		if inpututil.IsKeyJustPressed(key) {
			s.back()
			return
		}
	}
}

func (s *HistoryScene) back() {
	if s.scenes != nil {
		s.scenes.Show(game.SceneGameplay)
	}
}

// Lines 要显示的文字行
func (s *HistoryScene) Lines() []string {
	switch {
	case s.runs == nil:
		return []string{"Run history is disabled."}
	case s.loadErr != nil:
		return []string{"Could not load run history: " + s.loadErr.Error()}
	case len(s.recent) == 0:
		return []string{"No runs yet. Finish a shift to see it here."}
	}

	var lines []string
	if s.hasBest {
		lines = append(lines, "Best: "+formatRun(s.best), "")
	}
	lines = append(lines, "Recent runs:")
	for _, r := range s.recent {
		lines = append(lines, "  "+formatRun(r))
	}
	return lines
}

// formatRun 一局的单行摘要
func formatRun(r history.Run) string {
	return fmt.Sprintf("%s  %-11s  level %d  score %4d  lives %d  customers %d",
		r.StartedAt.Local().Format("2006-01-02 15:04"), r.Outcome, r.Level, r.Score, r.Lives, len(r.Customers))
}

// Draw 绘制场景
func (s *HistoryScene) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	s.drawText(screen, "Run history", marginX, 30, colorTextLight)

	y := 30.0 + lineHeight*2
	for _, line := range s.Lines() {
		s.drawText(screen, line, marginX, y, colorTextLight)
		y += lineHeight
	}
	s.drawText(screen, "Tab / Esc: back", marginX, float64(s.height)-30, colorHint)
}

func (s *HistoryScene) drawText(screen *ebiten.Image, str string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, str, s.font, op)
}
