package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"simulacra-server/internal/archive"
	"simulacra-server/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "info":
		if len(os.Args) < 3 {
			fmt.Println("Usage: evlog info <file.sima>")
			return
		}
		runInfo(os.Args[2])
	case "dump":
		if len(os.Args) < 3 {
			fmt.Println("Usage: evlog dump <file.sima>")
			return
		}
		runDump(os.Args[2])
	case "tail":
		if len(os.Args) < 3 {
			fmt.Println("Usage: evlog tail <file.sima> [n]")
			return
		}
		n := 10
		if len(os.Args) > 3 {
			parsed, err := strconv.Atoi(os.Args[3])
			if err != nil || parsed <= 0 {
				fmt.Printf("Invalid count: %s\n", os.Args[3])
				return
			}
			n = parsed
		}
		runTail(os.Args[2], n)
	default:
		printHelp()
	}
}

// runInfo читает только несжатый заголовок - работает мгновенно
// даже на больших архивах
func runInfo(path string) {
	f, err := os.Open(path)
	if err != nil {
		fail(err)
	}
	defer f.Close()

	info, err := archive.ReadInfo(f)
	if err != nil {
		fail(err)
	}
	stat, err := f.Stat()
	if err != nil {
		fail(err)
	}

	fmt.Printf("world:    %s\n", info.WorldID)
	fmt.Printf("created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("events:   %d\n", info.EventCount)
	fmt.Printf("version:  %d\n", info.Version)
	fmt.Printf("size:     %d bytes\n", stat.Size())
}

func runDump(path string) {
	arc := load(path)
	for i := range arc.Events {
		printEvent(arc.Events[i])
	}
}

func runTail(path string, n int) {
	arc := load(path)
	start := len(arc.Events) - n
	if start < 0 {
		start = 0
	}
	for i := start; i < len(arc.Events); i++ {
		printEvent(arc.Events[i])
	}
}

func load(path string) *archive.Archive {
	f, err := os.Open(path)
	if err != nil {
		fail(err)
	}
	defer f.Close()

	arc, err := archive.Read(f)
	if err != nil {
		fail(err)
	}
	return arc
}

// printEvent выводит одно событие одной строкой: время, вид, актор, параметры
func printEvent(ev domain.GameEvent) {
	params := ""
	if ev.Params != nil {
		if raw, err := json.Marshal(ev.Params); err == nil && string(raw) != "{}" {
			params = string(raw)
		}
	}
	fmt.Printf("%s  %-14s  %-24s  %s\n",
		ev.CreatedAt.Format("2006-01-02 15:04:05.000"),
		ev.Kind.String(),
		ev.ActorID,
		params)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "evlog:", err)
	os.Exit(1)
}

func printHelp() {
	fmt.Println(`Event Log Utility - просмотр архивов журналов событий (.sima)
Commands:
  info <file>       - метаданные архива без распаковки тела
  dump <file>       - все события архива, по одному на строку
  tail <file> [n]   - последние n событий (по умолчанию 10)`)
}
