package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/logger"
	"github.com/iabetor/scriptvoice/internal/mood"
	"github.com/iabetor/scriptvoice/internal/orchestrator"
	"github.com/iabetor/scriptvoice/internal/provider"
	"github.com/iabetor/scriptvoice/internal/script"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	inputPath := flag.String("input", "", "对话文稿路径")
	start := flag.Int("start", 1, "起始段落序号")
	end := flag.Int("end", 0, "结束段落序号（0 表示到最后）")
	flag.Parse()

	// .env 里的密钥会在配置展开 ${VAR} 时被取到
	_ = godotenv.Load()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "用法: scriptvoice -input <文稿.md> [-config <config.yaml>] [-start N] [-end N]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	content, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取文稿失败: %v\n", err)
		os.Exit(1)
	}

	parser := script.Parser{
		UseTextMood:       cfg.Emotion.UseEmotion,
		DefaultMood:       mood.Tag(cfg.Emotion.DefaultEmotion),
		RemoveParentheses: cfg.TextProcessing.RemoveParentheses,
		LocalizeFigures:   cfg.TextProcessing.LocalizeFigures,
	}
	segments := parser.Parse(string(content))
	if len(segments) == 0 {
		fmt.Fprintln(os.Stderr, "未找到对话内容，请检查文稿格式")
		os.Exit(1)
	}
	logger.Infof("[main] 共解析到 %d 段对话", len(segments))

	engine, err := provider.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化合成后端失败: %v\n", err)
		os.Exit(1)
	}

	runner, err := orchestrator.New(cfg, engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化批量任务失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，当前段落完成后停止（重跑可续传）", sig)
		cancel()
	}()

	report, err := runner.RunRange(ctx, segments, *start, *end)
	if err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "运行出错: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("[main] 成功 %d 段，失败 %d 段，输出目录: %s",
		report.Succeeded, report.Failed, report.OutputDir)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
