package scenes

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
	"github.com/decker502/tindahan/pkg/utils"
)

// 布局
const (
	lineHeight    = 18
	marginX       = 40
	hudHeight     = 28
	barHeight     = 22
	momBoxHeight  = 64
	previewWidth  = 160
	previewHeight = 120
	qrScale       = 4
)

var (
	colorBackground = color.RGBA{R: 46, G: 32, B: 22, A: 255}
	colorPanel      = color.RGBA{R: 250, G: 240, B: 222, A: 255}
	colorHUD        = color.RGBA{R: 28, G: 20, B: 14, A: 255}
	colorText       = color.RGBA{R: 60, G: 36, B: 18, A: 255}
	colorTextLight  = color.RGBA{R: 250, G: 236, B: 210, A: 255}
	colorHint       = color.RGBA{R: 150, G: 110, B: 70, A: 255}
	colorBarEmpty   = color.RGBA{R: 210, G: 190, B: 160, A: 255}
	colorBarOK      = color.RGBA{R: 90, G: 170, B: 80, A: 255}
	colorBarWarn    = color.RGBA{R: 230, G: 140, B: 40, A: 255}
	colorMomBox     = color.RGBA{R: 120, G: 40, B: 60, A: 235}
	colorError      = color.RGBA{R: 230, G: 70, B: 60, A: 255}
	colorLandmark   = color.RGBA{R: 80, G: 220, B: 120, A: 255}
)

// screenText 当前阶段要显示的文字
type screenText struct {
	Title string
	Body  []string
	Hint  string
}

var tutorialLines = []string{
	"1. Customers approach the store. Read their lines carefully.",
	"2. When asked, make the right face and HOLD it until the bar fills.",
	"3. Losing the expression drains the bar and shows a countdown.",
	"4. Pick the correct action with keys 1-4. A wrong pick costs a life",
	"   and you must make a sad face for Mom.",
	"5. Nod for yes, shake for no.",
	"6. You have 2 lives.",
	"",
	"No camera? Hold H/S/A/D/U for happy/sad/angry/disgusted/surprised,",
	"arrow keys to nod (up/down) or shake (left/right).",
}

// describeState 根据状态生成标题、正文和按键提示
func describeState(st game.GameState) screenText {
	switch st.Phase {
	case game.PhaseSplash:
		return screenText{
			Title: "Tindahan: Sari-Sari Shift",
			Body:  []string{"Help Mom run the store with your face."},
			Hint:  "Enter: start   Tab: history   C: camera   L: landmarks",
		}
	case game.PhaseIntro:
		return screenText{
			Title: "Mom needs a hand today",
			Body: []string{
				"Customers are lining up. Keep your face lit and centered, match their vibe,",
				"pick the right prep action and answer with a nod or a shake.",
				"Two misses and Mom steps in.",
			},
			Hint: "Enter: begin the shift   T: tutorial",
		}
	case game.PhaseTutorial:
		return screenText{Title: "How to play", Body: tutorialLines, Hint: "Enter: begin the shift"}
	case game.PhaseSequenceIntro:
		out := screenText{Hint: "Enter: serve the customer"}
		if st.Customer != nil {
			out.Title = fmt.Sprintf("Level %d: %s", st.CurrentLevel, st.Customer.Name)
			if st.Customer.Description != "" {
				out.Body = append(out.Body, st.Customer.Description)
			}
		}
		if st.CurrentSequenceIndex == 0 && st.CustomerSays != "" {
			out.Body = append(out.Body, quote(st.CustomerSays))
		}
		out.Body = append(out.Body, fmt.Sprintf("Conversation %d of %d", st.CurrentSequenceIndex+1, len(st.Sequences)))
		return out
	case game.PhaseDialog:
		return lineText(st, "Enter: continue")
	case game.PhaseFaceCheck:
		out := lineText(st, "")
		out.Body = append(out.Body, "", fmt.Sprintf("Make a %s face and hold it!", emotionLabel(st.FaceCheckRequired)))
		return out
	case game.PhaseAction:
		out := lineText(st, "1-4: choose an action")
		out.Body = append(out.Body, "")
		for i, a := range st.ActionChoices {
			out.Body = append(out.Body, fmt.Sprintf("[%d] %s", i+1, actionLabel(a)))
		}
		return out
	case game.PhaseHeadGesture:
		out := lineText(st, "Arrow keys simulate head movement")
		switch st.HeadGestureRequired {
		case types.GestureNod:
			out.Body = append(out.Body, "", "Nod your head (yes)")
		case types.GestureShake:
			out.Body = append(out.Body, "", "Shake your head (no)")
		}
		return out
	case game.PhaseWrongActionPenalty:
		return screenText{
			Title: "Wrong action!",
			Body:  []string{"Make a SAD face to apologize to Mom."},
		}
	case game.PhaseSequenceEnd:
		return screenText{Title: "Conversation done", Hint: "Enter: continue"}
	case game.PhaseLevelComplete:
		out := screenText{
			Title: fmt.Sprintf("Level %d complete!", st.CurrentLevel),
			Hint:  "Enter: next customer",
		}
		if st.CustomerSays != "" {
			out.Body = append(out.Body, quote(st.CustomerSays))
		}
		out.Body = append(out.Body, fmt.Sprintf("Score: %d", st.Score))
		return out
	case game.PhaseGameOver:
		return screenText{
			Title: "Game over",
			Body:  []string{fmt.Sprintf("Final score: %d", st.Score), fmt.Sprintf("Reached level %d", st.CurrentLevel)},
			Hint:  "Enter or R: play again   Tab: history",
		}
	case game.PhaseVictory:
		return screenText{
			Title: "Victory! The store is in good hands.",
			Body:  []string{fmt.Sprintf("Final score: %d", st.Score)},
			Hint:  "Enter or R: play again   Tab: history",
		}
	}
	return screenText{Title: st.Phase.String()}
}

// lineText 当前台词，标题为说话人
func lineText(st game.GameState, hint string) screenText {
	out := screenText{Hint: hint}
	if st.CurrentLine == nil {
		return out
	}
	out.Title = speakerName(st)
	out.Body = []string{st.CurrentLine.Text}
	return out
}

func speakerName(st game.GameState) string {
	if st.CurrentLine == nil {
		return ""
	}
	switch st.CurrentLine.Speaker {
	case types.SpeakerCustomer:
		if st.Customer != nil {
			return st.Customer.Name
		}
		return "Customer"
	case types.SpeakerMom:
		return "Mom"
	}
	return ""
}

func quote(s string) string {
	return "\"" + s + "\""
}

func emotionLabel(e types.Emotion) string {
	if e == types.EmotionNone {
		e = types.EmotionNeutral
	}
	return strings.ToUpper(string(e))
}

func actionLabel(a types.ActionType) string {
	s := a.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// holdBarColor 表情保持进度条颜色
func holdBarColor(warning bool) color.Color {
	if warning {
		return colorBarWarn
	}
	return colorBarOK
}

// cameraStatus 右上角的检测器状态
func (s *GameplayScene) cameraStatus() string {
	switch {
	case s.detector == nil || !s.settings.GetSettings().CameraEnabled:
		return "camera off"
	case !s.detector.IsRunning():
		return "camera stopped"
	case !s.detector.IsModelReady():
		return "waiting for tracker"
	}
	return fmt.Sprintf("%s %.0f%%", s.detector.CurrentEmotion(), s.detector.Confidence()*100)
}

// Draw 绘制场景
func (s *GameplayScene) Draw(screen *ebiten.Image) {
	st := s.engine.State()
	screen.Fill(colorBackground)

	panelTop := float32(hudHeight + 12)
	vector.DrawFilledRect(screen, marginX/2, panelTop, float32(s.width-marginX), float32(s.height)-panelTop-20, colorPanel, false)

	s.drawHUD(screen, st)

	desc := describeState(st)
	y := float64(panelTop) + 20
	s.drawText(screen, desc.Title, marginX, y, colorText)
	y += lineHeight * 2
	for _, line := range desc.Body {
		for _, wrapped := range utils.WrapText(line, s.font, float64(s.width-marginX*2)) {
			s.drawText(screen, wrapped, marginX, y, colorText)
			y += lineHeight
		}
	}

	if st.Phase.IsFaceHold() {
		s.drawHoldBar(screen, st, y+lineHeight)
	}
	if st.Phase == game.PhaseSplash {
		s.drawQR(screen, y+lineHeight)
	}
	if st.ShowMom && st.MomMessage != "" {
		s.drawMom(screen, st.MomMessage)
	}
	if desc.Hint != "" {
		s.drawText(screen, desc.Hint, marginX, float64(s.height)-44, colorHint)
	}
	if msg := s.detectorErr(); msg != "" {
		s.drawText(screen, msg, marginX, float64(s.height)-18, colorError)
	}
	if s.settings.GetSettings().ShowLandmarks {
		s.drawLandmarks(screen)
	}
}

func (s *GameplayScene) detectorErr() string {
	if s.detector == nil {
		return ""
	}
	return s.detector.Err()
}

func (s *GameplayScene) drawHUD(screen *ebiten.Image, st game.GameState) {
	vector.DrawFilledRect(screen, 0, 0, float32(s.width), hudHeight, colorHUD, false)
	hud := fmt.Sprintf("Level %d   Lives %s   Score %d", st.CurrentLevel, strings.Repeat("<3 ", st.Lives), st.Score)
	if s.progress != nil {
		hud += fmt.Sprintf("   Best %d", s.progress.Progress().BestScore)
	}
	s.drawText(screen, hud, 10, 8, colorTextLight)

	status := s.cameraStatus()
	w := utils.MeasureTextWidth(status, s.font)
	s.drawText(screen, status, float64(s.width)-w-10, 8, colorTextLight)
}

func (s *GameplayScene) drawHoldBar(screen *ebiten.Image, st game.GameState, y float64) {
	x := float32(marginX)
	w := float32(s.width - marginX*2)
	vector.DrawFilledRect(screen, x, float32(y), w, barHeight, colorBarEmpty, false)
	vector.DrawFilledRect(screen, x, float32(y), w*float32(st.FaceCheckProgress), barHeight, holdBarColor(st.FaceCheckWarning), false)
	vector.StrokeRect(screen, x, float32(y), w, barHeight, 2, colorText, false)

	label := fmt.Sprintf("Hold %s  %d%%", emotionLabel(st.FaceCheckRequired), int(st.FaceCheckProgress*100))
	s.drawText(screen, label, marginX+8, y+5, colorText)

	if st.FaceCheckWarning {
		warn := fmt.Sprintf("Keep your %s face! %ds", strings.ToLower(emotionLabel(st.FaceCheckRequired)), st.FaceCheckWarningCountdown)
		s.drawText(screen, warn, marginX, y+barHeight+8, colorBarWarn)
	}
}

func (s *GameplayScene) drawMom(screen *ebiten.Image, msg string) {
	top := float32(s.height - 60 - momBoxHeight)
	vector.DrawFilledRect(screen, marginX, top, float32(s.width-marginX*2), momBoxHeight, colorMomBox, false)
	y := float64(top) + 10
	lines := utils.WrapText("Mom: "+msg, s.font, float64(s.width-marginX*2-20))
	for _, line := range lines {
		s.drawText(screen, line, marginX+10, y, colorTextLight)
		y += lineHeight
	}
}

func (s *GameplayScene) drawQR(screen *ebiten.Image, y float64) {
	if s.trackerURL == "" {
		return
	}
	if s.qrImage == nil && s.qrErr == nil {
		s.qrImage, s.qrErr = NewQRImage(s.trackerURL, qrScale)
		if s.qrErr != nil {
			s.logger.Warn("failed to render tracker QR code", zap.Error(s.qrErr))
		}
	}
	s.drawText(screen, "Tracker: "+s.trackerURL, marginX, y, colorHint)
	if s.qrImage == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(marginX, y+lineHeight)
	screen.DrawImage(s.qrImage, op)
}

// drawLandmarks 在右上角的预览框里绘制关键点
func (s *GameplayScene) drawLandmarks(screen *ebiten.Image) {
	if s.detector == nil {
		return
	}
	left := float32(s.width - previewWidth - 10)
	top := float32(hudHeight + 20)
	vector.StrokeRect(screen, left, top, previewWidth, previewHeight, 1, colorHint, false)
	for _, points := range s.detector.LastLandmarks() {
		for _, p := range points {
			cx := left + float32(p.X)*previewWidth
			cy := top + float32(p.Y)*previewHeight
			vector.DrawFilledCircle(screen, cx, cy, 1.5, colorLandmark, true)
		}
	}
}

func (s *GameplayScene) drawText(screen *ebiten.Image, str string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, str, s.font, op)
}
