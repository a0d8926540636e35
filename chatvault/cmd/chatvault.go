// Command-line inspector for chatvault backup files
package main

import (
	"chatvault/chatvault/config"
	"chatvault/chatvault/sources/store"
	"chatvault/chatvault/utils/color"
	"chatvault/chatvault/utils/jsonutils"
	"fmt"
	"os"
	"strconv"
)

func main() {
	configPath := os.Getenv("CHATVAULT_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg := config.LoadConfig(configPath)
	reader := store.NewReader(cfg.DataDir)

	args := os.Args[1:]
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		chats, err := reader.ListChats()
		if err != nil {
			fmt.Println(color.ColorError("list failed: " + err.Error()))
			os.Exit(1)
		}
		if len(chats) == 0 {
			fmt.Println(color.ColorWarning("no backup files in " + cfg.DataDir))
			return
		}
		for _, c := range chats {
			fmt.Printf("%s  %s  %s\n",
				color.ColorPrompt(c.Filename),
				color.ColorInfo(fmt.Sprintf("%d messages, %.1f KB", c.MessageCount, c.SizeKB)),
				c.LastTime,
			)
		}

	case "stats":
		stats, err := reader.Stats()
		if err != nil {
			fmt.Println(color.ColorError("stats failed: " + err.Error()))
			os.Exit(1)
		}
		fmt.Println(jsonutils.ToJSON(stats))

	case "show":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		page := 1
		if len(args) >= 3 {
			if p, err := strconv.Atoi(args[2]); err == nil {
				page = p
			}
		}
		result, err := reader.ReadPage(args[1], page, 30)
		if err != nil {
			fmt.Println(color.ColorError("show failed: " + err.Error()))
			os.Exit(1)
		}
		for _, msg := range result.Messages {
			who := msg.Role
			if msg.SenderName != "" {
				who = msg.SenderName
			}
			header := fmt.Sprintf("[%s] %s", msg.Timestamp.Format("2006-01-02 15:04:05"), who)
			if msg.Role == store.RoleAssistant {
				fmt.Println(color.ColorAgentResponse(header))
			} else {
				fmt.Println(color.ColorPrompt(header))
			}
			fmt.Println(msg.Content)
			fmt.Println()
		}
		fmt.Println(color.ColorInfo(fmt.Sprintf("page %d, %d total messages", result.Page, result.Total)))

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("chatvault usage:")
	fmt.Println("  chatvault list                   # list backup files")
	fmt.Println("  chatvault stats                  # aggregate stats")
	fmt.Println("  chatvault show <file> [page]     # print records, newest first")
}
