package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"simulacra-server/internal/agent"
	"simulacra-server/pkg/logger"
)

func init() {
	logger.Init()
}

// Сценарий по умолчанию: достаточно, чтобы увидеть всю цепочку
// команда -> оракул -> события -> рассылка. Директивы понимает в том
// числе встроенный скриптовый оракул, внешний не обязателен.
var defaultScript = []string{
	"say hello everyone",
	"go to 5 0 3",
	"pick up rock: a small gray rock",
	"say I found a rock",
	"check tasks",
}

func main() {
	var (
		serverURL  string
		worldID    string
		actorID    string
		name       string
		scriptPath string
		every      time.Duration
	)
	flag.StringVar(&serverURL, "server", "ws://localhost:8080/ws", "Server websocket URL")
	flag.StringVar(&worldID, "world", "default", "World to join")
	flag.StringVar(&actorID, "actor", "", "Actor ID (random if empty)")
	flag.StringVar(&name, "name", "", "Display name (actor ID if empty)")
	flag.StringVar(&scriptPath, "script", "", "Path to script file, one command per line")
	flag.DurationVar(&every, "every", 5*time.Second, "Delay between scripted commands")
	flag.Parse()

	if actorID == "" {
		actorID = "bot-" + uuid.NewString()[:8]
	}

	script := defaultScript
	if scriptPath != "" {
		lines, err := loadScript(scriptPath)
		if err != nil {
			logger.Log.Fatal("Failed to load script: ", err)
		}
		script = lines
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := agent.Dial(ctx, serverURL, actorID, worldID, name)
	if err != nil {
		logger.Log.Fatal("Failed to connect: ", err)
	}

	if err := bot.Run(ctx, script, every); err != nil && err != context.Canceled {
		logger.Log.Fatal("Bot stopped with error: ", err)
	}
	logger.Log.Info("Done.")
}

// loadScript читает сценарий из файла: одна инструкция на строку,
// пустые строки и строки с # пропускаются.
func loadScript(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("script %s is empty", path)
	}
	return lines, nil
}
