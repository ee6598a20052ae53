// replay 无窗口地跑完一局，用于检查内容和流水线能否从头走到结束
//
// 默认按每一行的要求自动模拟表情和头部动作；传入 -recording 时改用
// 录像提供人脸帧，操作阶段总是选对（-mistakes 指定前几次故意选错）。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/utils"
)

var (
	dataDir    = flag.String("data", "data", "数据目录（包含 config.yaml 和 content/）")
	configPath = flag.String("config", "", "覆盖配置文件")
	seed       = flag.Uint64("seed", 1, "随机种子")
	recording  = flag.String("recording", "", "人脸追踪录像 YAML，空表示自动模拟")
	mistakes   = flag.Int("mistakes", 0, "前几次操作故意选错")
	dwell      = flag.Float64("dwell", 0.5, "手动推进前的停留秒数")
	maxSeconds = flag.Float64("max-seconds", 1800, "最长模拟时间（秒）")
	verbose    = flag.Bool("verbose", false, "输出引擎和系统的调试日志")
)

func main() {
	flag.Parse()

	logger, err := utils.InitLogger(*verbose)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	data := os.DirFS(*dataDir)
	appCfg, err := config.LoadAppConfig(data, *configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	content, err := config.LoadContent(data)
	if err != nil {
		log.Fatalf("failed to load content: %v", err)
	}

	opts := Options{
		Content:   content,
		AppConfig: appCfg,
		Seed:      *seed,
		Mistakes:  *mistakes,
		Dwell:     *dwell,
	}
	if *verbose {
		opts.Logger = logger
	}
	if *recording != "" {
		rec, err := face.LoadRecordingFile(*recording)
		if err != nil {
			log.Fatalf("failed to load recording: %v", err)
		}
		opts.Recording = rec
		fmt.Printf("recording %q: %d frames, %v\n", rec.Name, len(rec.Frames), rec.Duration())
	}

	driver, err := NewDriver(opts)
	if err != nil {
		log.Fatalf("failed to create driver: %v", err)
	}
	res := driver.Run(*maxSeconds)

	for _, ev := range res.Events {
		fmt.Println(ev)
	}
	fmt.Println()
	fmt.Printf("final phase: %s\n", res.Final.Phase)
	fmt.Printf("level %d  score %d  lives %d  customers %d\n",
		res.Final.CurrentLevel, res.Final.Score, res.Final.Lives, len(res.Final.UsedCustomerIDs))
	fmt.Printf("simulated %.1fs, %d transitions\n", res.Elapsed, len(res.Events))

	if res.TimedOut {
		fmt.Printf("stopped after %.0fs without reaching an ending\n", *maxSeconds)
		os.Exit(1)
	}
}
