package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/joho/godotenv"

	"github.com/decker502/tindahan/pkg/app"
	"github.com/decker502/tindahan/pkg/embedded"
)

func main() {
	configPath := flag.String("config", "", "覆盖内置 config.yaml 的配置文件")
	verbose := flag.Bool("verbose", false, "输出调试日志")
	seed := flag.Uint64("seed", 0, "随机种子，0 表示使用配置或按时间生成")
	noTracker := flag.Bool("no-tracker", false, "不启动追踪桥接，只用键盘模拟表情")
	flag.Parse()

	// .env 中的变量在读取配置前生效，已设置的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	embedded.Init(dataFS)

	game, err := app.NewApp(app.Config{
		Verbose:    *verbose,
		ConfigPath: *configPath,
		Seed:       *seed,
		NoTracker:  *noTracker,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer game.Close()

	win := game.WindowConfig()
	ebiten.SetWindowSize(win.Width, win.Height)
	ebiten.SetWindowTitle(win.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(game.StartFullscreen())

	if err := ebiten.RunGame(game); err != nil {
		game.Close()
		fmt.Fprintf(os.Stderr, "game exited with error: %v\n", err)
		os.Exit(1)
	}
}
