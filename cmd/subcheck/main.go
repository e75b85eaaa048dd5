package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/z-wentao/polysub/pkg/aligner"
	"github.com/z-wentao/polysub/pkg/models"
	"github.com/z-wentao/polysub/pkg/subtitle"
)

// subcheck: 独立的字幕轨道配对校验工具
// 对照原始轨道检查生成轨道的行数、时长、时间覆盖和阅读速度。
func main() {
	originalPath := flag.String("original", "", "原始字幕文件 (VTT/SRT)")
	generatedPath := flag.String("generated", "", "生成的字幕文件 (VTT/SRT)")
	flag.Parse()

	if *originalPath == "" || *generatedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	originalCues, err := subtitle.ParseFile(*originalPath)
	if err != nil {
		log.Fatalf("❌ 解析原始字幕失败: %v", err)
	}

	generatedCues, err := subtitle.ParseFile(*generatedPath)
	if err != nil {
		log.Fatalf("❌ 解析生成字幕失败: %v", err)
	}

	segments := make([]models.Segment, 0, len(generatedCues))
	for _, cue := range generatedCues {
		segments = append(segments, models.Segment{
			Start: cue.Start,
			End:   cue.End,
			Text:  cue.Text,
		})
	}

	report := aligner.Validate(originalCues, segments)

	fmt.Printf("原始轨道: %d 个 cue (%.1fs)\n", len(originalCues), report.Stats.OrigDuration)
	fmt.Printf("生成轨道: %d 个段 (%.1fs)\n", report.Stats.SegmentCount, report.Stats.TargetDuration)
	fmt.Printf("最大行数: %d\n", report.Stats.MaxLines)

	for _, e := range report.Errors {
		fmt.Printf("❌ %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Printf("⚠️ %s\n", w)
	}

	if !report.Valid {
		fmt.Printf("校验未通过: %d 个错误, %d 个警告\n", len(report.Errors), len(report.Warnings))
		os.Exit(1)
	}
	fmt.Printf("✅ 校验通过 (%d 个警告)\n", len(report.Warnings))
}
