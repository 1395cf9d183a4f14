package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"animatronic/logger"
	"animatronic/motion"
	"animatronic/pkg/rig"
	"animatronic/scheduler"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "rig.yaml", "配置文件路径，不存在时写入默认配置")
	sequences := flag.String("play", "nod,blink,look_around", "依次播放的序列名称，用逗号分隔")
	library := flag.String("library", "", "额外的序列库 YAML 文件")
	gap := flag.Duration("gap", 300*time.Millisecond, "序列之间的间隔")
	list := flag.Bool("list", false, "列出可用序列后退出")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Parse()

	log := logger.New(*logLevel, "text")

	// 加载配置
	cfg, err := rig.LoadOrCreateConfig(*configPath, log)
	if err != nil {
		log.Error("❌ 加载配置失败", "error", err)
		os.Exit(1)
	}
	if *library != "" {
		cfg.SequenceLibrary = *library
	}

	r, err := rig.Assemble(context.Background(), cfg, log, nil)
	if err != nil {
		log.Error("❌ 装置初始化失败", "error", err)
		os.Exit(1)
	}

	if *list {
		for _, name := range r.Library.Names() {
			fmt.Printf("  %-14s %s\n", name, r.Library.Description(name))
		}
		_ = r.Close(context.Background())
		return
	}

	r.Scheduler.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range strings.Split(*sequences, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := play(ctx, r, name, log); err != nil {
			if ctx.Err() == nil {
				log.Error("❌ 播放失败", "sequence", name, "error", err)
			}
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(*gap):
		}
		if ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		r.Scheduler.EmergencyStopAll()
	}

	log.Info("应用程序正在关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(shutdownCtx); err != nil {
		log.Error("❌ 关闭失败", "error", err)
		os.Exit(1)
	}
}

// play 提交一个命名序列并等待完成。循环序列播放一个周期后取消。
func play(ctx context.Context, r *rig.Rig, name string, log *slog.Logger) error {
	seq, err := r.Library.Instantiate(name, r.Scheduler.Now())
	if err != nil {
		return err
	}
	id, err := r.Scheduler.Submit(seq)
	if err != nil {
		return err
	}
	log.Info("▶️ 开始播放", "sequence", name, "id", string(id), "duration", seq.Cycle().String())

	if seq.Loop {
		select {
		case <-ctx.Done():
		case <-time.After(seq.Cycle()):
		}
		return r.Scheduler.CancelSequence(id)
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !active(r.Scheduler.ActiveSequences(), id) {
				log.Info("✅ 播放完成", "sequence", name)
				return nil
			}
		}
	}
}

func active(list []scheduler.SequenceSnapshot, id motion.SequenceID) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}
